package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/auth"
	"github.com/ukydev/vitarenta/internal/authz"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db/dbmock"
	"github.com/ukydev/vitarenta/internal/ecochallenge"
	"github.com/ukydev/vitarenta/internal/handlers"
	"github.com/ukydev/vitarenta/internal/middleware"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/rental"
	"github.com/ukydev/vitarenta/internal/storage"
	"github.com/ukydev/vitarenta/internal/telemetry"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubDatabase struct {
	healthy      bool
	reconnectErr error
}

func (s *stubDatabase) Healthy() bool                       { return s.healthy }
func (s *stubDatabase) Reconnect(ctx context.Context) error { return s.reconnectErr }
func (s *stubDatabase) Ping(ctx context.Context) error {
	if !s.healthy {
		return errors.New("no reachable servers")
	}
	return nil
}

type routerFixture struct {
	router   http.Handler
	auth     *auth.Service
	users    *dbmock.UserCollection
	vehicles *dbmock.VehicleCollection
	database *stubDatabase
}

func newRouterFixture(t *testing.T, mutate func(*config.Config)) *routerFixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "router-test-secret-0123456789"
	if mutate != nil {
		mutate(cfg)
	}

	authService, err := auth.NewService(cfg.Auth)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer()
	require.NoError(t, err)

	f := &routerFixture{
		auth:     authService,
		users:    new(dbmock.UserCollection),
		vehicles: new(dbmock.VehicleCollection),
		database: &stubDatabase{healthy: true},
	}
	agencies := new(dbmock.AgencyCollection)
	reservations := new(dbmock.ReservationCollection)
	samples := new(dbmock.TelemetryCollection)

	rentals := rental.NewService(cfg.Rental, f.vehicles, reservations, new(dbmock.LockCollection))
	stats := analytics.NewService(f.users, f.vehicles, reservations)
	eco := ecochallenge.NewService(new(dbmock.ChallengeCollection), new(dbmock.ParticipationCollection),
		new(dbmock.ProgressCollection), new(dbmock.RewardCollection), f.users, new(dbmock.LockCollection))
	hub := telemetry.NewHub()
	pipeline := telemetry.NewPipeline(f.vehicles, samples, hub)
	var images *storage.ImageStore

	f.router = NewRouter(Options{
		Config:   *cfg,
		Auth:     middleware.NewAuthMiddleware(authService, enforcer),
		Database: f.database,
		Handlers: Handlers{
			Auth:          handlers.NewAuthHandler(authService, f.users),
			Users:         handlers.NewUserHandler(f.users, agencies),
			Agencies:      handlers.NewAgencyHandler(agencies, f.vehicles, stats),
			Vehicles:      handlers.NewVehicleHandler(f.vehicles, reservations, f.users, rentals, stats, images, pipeline),
			Reservations:  handlers.NewReservationHandler(rentals, reservations),
			EcoChallenges: handlers.NewEcoChallengeHandler(eco),
			Telemetry:     handlers.NewTelemetryHandler(pipeline, f.vehicles, hub, cfg.Server.CORSOrigins),
			Analytics:     handlers.NewAnalyticsHandler(stats),
			Health:        handlers.NewHealthHandler(f.database, 0),
		},
	})
	return f
}

func (f *routerFixture) token(t *testing.T, role models.Role) string {
	t.Helper()
	user := &models.User{ID: primitive.NewObjectID(), Email: string(role) + "@vitarenta.fr", Role: role}
	if role == models.RoleAgence {
		user.AgenceID = primitive.NewObjectID().Hex()
	}
	token, err := f.auth.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_PublicCatalogue(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.vehicles.On("FindVehicles", mock.Anything, mock.Anything).Return([]models.Vehicule{}, int64(0), nil)

	w := f.do(http.MethodGet, "/api/vehicles", "")

	assert.Equal(t, http.StatusOK, w.Code)
	f.vehicles.AssertExpectations(t)
}

func TestRouter_Authorization(t *testing.T) {
	f := newRouterFixture(t, nil)
	client := f.token(t, models.RoleClient)
	agence := f.token(t, models.RoleAgence)
	reservationID := primitive.NewObjectID().Hex()

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{"anonymous vehicle create", http.MethodPost, "/api/vehicles", "", http.StatusUnauthorized},
		{"client vehicle create", http.MethodPost, "/api/vehicles", client, http.StatusForbidden},
		{"bad token on public route", http.MethodGet, "/api/vehicles", "not-a-jwt", http.StatusUnauthorized},
		{"anonymous recommendations", http.MethodGet, "/api/vehicles/recommendations", "", http.StatusUnauthorized},
		{"client lists users", http.MethodGet, "/api/users", client, http.StatusForbidden},
		{"agence deletes reservation", http.MethodDelete, "/api/reservations/" + reservationID, agence, http.StatusForbidden},
		{"agence reads dashboard", http.MethodGet, "/api/analytics/dashboard", agence, http.StatusForbidden},
		{"client ingests telemetry", http.MethodPost, "/api/telemetry", client, http.StatusForbidden},
		{"anonymous profile", http.MethodGet, "/api/auth/profile", "", http.StatusUnauthorized},
		{"anonymous live feed", http.MethodGet, "/api/ws/telemetry", "", http.StatusUnauthorized},
		{"client creates challenge", http.MethodPost, "/api/eco-challenges", client, http.StatusForbidden},
		{"visiteur joins challenge", http.MethodPost, "/api/eco-challenges/" + reservationID + "/join", f.token(t, models.RoleVisiteur), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.target, tt.token)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRouter_AdminListsUsers(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.users.On("FindUsers", mock.Anything, mock.Anything).Return([]models.User{}, nil)

	w := f.do(http.MethodGet, "/api/users", f.token(t, models.RoleAdmin))

	assert.Equal(t, http.StatusOK, w.Code)
	f.users.AssertExpectations(t)
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newRouterFixture(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/vehicles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_LoginRateLimit(t *testing.T) {
	f := newRouterFixture(t, func(cfg *config.Config) {
		cfg.RateLimit.LoginRequests = 2
	})

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, "/api/auth/login", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := f.do(http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_DatabaseDown(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.database.healthy = false
	f.database.reconnectErr = errors.New("server selection timeout")

	w := f.do(http.MethodGet, "/api/vehicles", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"down"`)
}

func TestDescribe(t *testing.T) {
	f := newRouterFixture(t, nil)
	assert.NotEqual(t, "0 routes", Describe(f.router))
	assert.Equal(t, "0 routes", Describe(http.NotFoundHandler()))
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.Defaults().Server
	srv := NewHTTPServer(cfg, http.NotFoundHandler())
	assert.Equal(t, cfg.Addr(), srv.Addr)
	assert.Equal(t, cfg.ReadTimeout, srv.ReadTimeout)
}
