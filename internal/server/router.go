// Package server assembles the chi router and the HTTP server.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ukydev/vitarenta/internal/authz"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/handlers"
	"github.com/ukydev/vitarenta/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Agencies      *handlers.AgencyHandler
	Vehicles      *handlers.VehicleHandler
	Reservations  *handlers.ReservationHandler
	EcoChallenges *handlers.EcoChallengeHandler
	Telemetry     *handlers.TelemetryHandler
	Analytics     *handlers.AnalyticsHandler
	Health        *handlers.HealthHandler
}

// Options configures NewRouter. Database may be nil, which disables the
// database guard on /api.
type Options struct {
	Config   config.Config
	Auth     *middleware.AuthMiddleware
	Database middleware.DatabaseHealth
	Handlers Handlers
}

// NewRouter builds the application router.
func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	h := opts.Handlers
	am := opts.Auth
	perm := am.RequirePermission
	adminOnly := am.RequireRole()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit("api", cfg.RateLimit.Requests, cfg.RateLimit.Window))
		if opts.Database != nil {
			r.Use(middleware.RequireDatabase(opts.Database, cfg.Mongo.ConnectTimeout))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit("login", cfg.RateLimit.LoginRequests, cfg.RateLimit.LoginWindow))
				r.Post("/signup", h.Auth.Signup)
				r.Post("/login", h.Auth.Login)
				r.Post("/refresh", h.Auth.Refresh)
			})
			r.Group(func(r chi.Router) {
				r.Use(am.Authenticate)
				r.Get("/profile", h.Auth.GetProfile)
				r.Put("/profile", h.Auth.UpdateProfile)
				r.Post("/change-password", h.Auth.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(am.Identify)

			r.Route("/users", func(r chi.Router) {
				r.Use(perm(authz.UsersManage))
				r.Get("/", h.Users.List)
				r.Get("/{id}", h.Users.Get)
				r.Patch("/{id}", h.Users.Update)
				r.Delete("/{id}", h.Users.Delete)
			})

			r.Route("/agencies", func(r chi.Router) {
				r.With(perm(authz.AgenciesRead)).Get("/", h.Agencies.List)
				r.With(perm(authz.AgenciesWrite)).Post("/", h.Agencies.Create)
				r.With(perm(authz.AgenciesRead)).Get("/{id}", h.Agencies.Get)
				r.With(perm(authz.AgenciesManage)).Put("/{id}", h.Agencies.Update)
				r.With(perm(authz.AgenciesWrite)).Delete("/{id}", h.Agencies.Delete)
				r.With(perm(authz.AgenciesManage)).Get("/{id}/stats", h.Agencies.Stats)
			})

			r.Route("/vehicles", func(r chi.Router) {
				r.With(perm(authz.VehiclesRead)).Get("/", h.Vehicles.List)
				r.With(perm(authz.VehiclesWrite)).Post("/", h.Vehicles.Create)
				r.With(perm(authz.RecommendationsRead)).Get("/recommendations", h.Vehicles.Recommendations)
				r.With(perm(authz.VehiclesRead)).Get("/{id}", h.Vehicles.Get)
				r.With(perm(authz.VehiclesWrite)).Put("/{id}", h.Vehicles.Update)
				r.With(perm(authz.VehiclesWrite)).Patch("/{id}", h.Vehicles.Patch)
				r.With(perm(authz.VehiclesWrite)).Delete("/{id}", h.Vehicles.Delete)
				r.With(perm(authz.VehiclesRead)).Get("/{id}/availability", h.Vehicles.Availability)
				r.With(perm(authz.VehiclesWrite)).Post("/{id}/image", h.Vehicles.UploadImage)
				r.With(perm(authz.TelemetryRead)).Get("/{id}/telemetry", h.Vehicles.Telemetry)
			})

			r.Route("/reservations", func(r chi.Router) {
				r.With(perm(authz.ReservationsRead)).Get("/", h.Reservations.List)
				r.With(perm(authz.ReservationsCreate)).Post("/", h.Reservations.Create)
				r.With(perm(authz.VehiclesRead)).Post("/quote", h.Reservations.Quote)
				r.With(perm(authz.ReservationsRead)).Get("/{id}", h.Reservations.Get)
				r.With(perm(authz.ReservationsCancel)).Patch("/{id}/status", h.Reservations.UpdateStatus)
				r.With(perm(authz.ReservationsCancel)).Post("/{id}/cancel", h.Reservations.Cancel)
				r.With(adminOnly).Delete("/{id}", h.Reservations.Delete)
			})

			r.Route("/eco-challenges", func(r chi.Router) {
				r.With(perm(authz.EcoChallengesRead)).Get("/", h.EcoChallenges.List)
				r.With(perm(authz.EcoChallengesWrite)).Post("/", h.EcoChallenges.Create)
				r.With(perm(authz.EcoChallengesParticipate)).Get("/mine", h.EcoChallenges.Mine)
				r.With(perm(authz.EcoChallengesRead)).Get("/leaderboard", h.EcoChallenges.Leaderboard)
				r.With(adminOnly).Get("/analytics", h.EcoChallenges.Analytics)

				r.Route("/participations/{id}", func(r chi.Router) {
					r.Use(perm(authz.EcoChallengesParticipate))
					r.Post("/progress", h.EcoChallenges.RecordProgress)
					r.Get("/progress", h.EcoChallenges.Progress)
					r.Post("/abandon", h.EcoChallenges.Abandon)
					r.Post("/claim", h.EcoChallenges.Claim)
				})

				r.With(perm(authz.EcoChallengesRead)).Get("/{id}", h.EcoChallenges.Get)
				r.With(perm(authz.EcoChallengesWrite)).Put("/{id}", h.EcoChallenges.Update)
				r.With(perm(authz.EcoChallengesWrite)).Delete("/{id}", h.EcoChallenges.Delete)
				r.With(perm(authz.EcoChallengesParticipate)).Post("/{id}/join", h.EcoChallenges.Join)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.With(perm(authz.AnalyticsRead)).Get("/demand-forecast", h.Analytics.DemandForecast)
				r.With(adminOnly).Get("/dashboard", h.Analytics.Dashboard)
			})

			r.With(perm(authz.TelemetryWrite)).Post("/telemetry", h.Telemetry.Ingest)
			r.With(perm(authz.TelemetryRead)).Get("/ws/telemetry", h.Telemetry.LiveFeed)
		})
	})

	return r
}

// NewHTTPServer returns an *http.Server for cfg serving handler.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Describe returns a one-line summary of the routes for startup logs.
func Describe(router http.Handler) string {
	routes, ok := router.(chi.Routes)
	if !ok {
		return "0 routes"
	}
	n := 0
	_ = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		n++
		return nil
	})
	return fmt.Sprintf("%d routes", n)
}
