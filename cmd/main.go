package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/auth"
	"github.com/ukydev/vitarenta/internal/authz"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/ecochallenge"
	"github.com/ukydev/vitarenta/internal/handlers"
	"github.com/ukydev/vitarenta/internal/logging"
	"github.com/ukydev/vitarenta/internal/middleware"
	"github.com/ukydev/vitarenta/internal/rental"
	"github.com/ukydev/vitarenta/internal/server"
	"github.com/ukydev/vitarenta/internal/storage"
	"github.com/ukydev/vitarenta/internal/supervisor"
	"github.com/ukydev/vitarenta/internal/telemetry"
)

// Database is what the API needs from the MongoDB connection.
type Database interface {
	db.CollectionSource
	middleware.DatabaseHealth
	supervisor.Database
}

// application holds the wired services of one API process.
type application struct {
	router   http.Handler
	hub      *telemetry.Hub
	pipeline *telemetry.Pipeline
	eco      *ecochallenge.Service
}

func newApplication(cfg *config.Config, database Database, images *storage.ImageStore) (*application, error) {
	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return nil, fmt.Errorf("init authorization: %w", err)
	}

	users := db.NewUserCollection(database)
	agencies := db.NewAgencyCollection(database)
	vehicles := db.NewVehicleCollection(database)
	reservations := db.NewReservationCollection(database)
	samples := db.NewTelemetryCollection(database)

	locks := db.NewLockCollection(database)

	rentals := rental.NewService(cfg.Rental, vehicles, reservations, locks)
	stats := analytics.NewService(users, vehicles, reservations)
	eco := ecochallenge.NewService(
		db.NewChallengeCollection(database),
		db.NewParticipationCollection(database),
		db.NewProgressCollection(database),
		db.NewRewardCollection(database),
		users,
		locks,
	)
	hub := telemetry.NewHub()
	pipeline := telemetry.NewPipeline(vehicles, samples, hub)
	pipeline.TrackDriving(reservations, eco)

	router := server.NewRouter(server.Options{
		Config:   *cfg,
		Auth:     middleware.NewAuthMiddleware(authService, enforcer),
		Database: database,
		Handlers: server.Handlers{
			Auth:          handlers.NewAuthHandler(authService, users),
			Users:         handlers.NewUserHandler(users, agencies),
			Agencies:      handlers.NewAgencyHandler(agencies, vehicles, stats),
			Vehicles:      handlers.NewVehicleHandler(vehicles, reservations, users, rentals, stats, images, pipeline),
			Reservations:  handlers.NewReservationHandler(rentals, reservations),
			EcoChallenges: handlers.NewEcoChallengeHandler(eco),
			Telemetry:     handlers.NewTelemetryHandler(pipeline, vehicles, hub, cfg.Server.CORSOrigins),
			Analytics:     handlers.NewAnalyticsHandler(stats),
			Health:        handlers.NewHealthHandler(database, cfg.Mongo.ConnectTimeout),
		},
	})

	return &application{router: router, hub: hub, pipeline: pipeline, eco: eco}, nil
}

// supervise registers the long-running services of app on a new tree.
func supervise(cfg *config.Config, database Database, app *application, srv supervisor.HTTPServer) *supervisor.Tree {
	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})

	tree.AddDataService(supervisor.NewHealthMonitor(database, cfg.Mongo.HealthInterval))
	tree.AddDataService(supervisor.NewSweepService(app.eco, cfg.EcoChallenge.SweepInterval))

	tree.AddMessagingService(app.hub)
	if cfg.MQTT.Enabled {
		tree.AddMessagingService(telemetry.NewSubscriber(cfg.MQTT, app.pipeline))
	}

	tree.AddAPIService(supervisor.NewHTTPService(srv, cfg.Server.ShutdownTimeout))
	return tree
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := db.NewManager(cfg.Mongo)
	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := manager.Disconnect(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()

	if err := db.EnsureIndexes(ctx, manager); err != nil {
		log.WithError(err).Warn("Failed to ensure indexes")
	}

	var images *storage.ImageStore
	if cfg.Storage.Enabled {
		images, err = storage.NewImageStore(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init image storage: %w", err)
		}
	}

	app, err := newApplication(cfg, manager, images)
	if err != nil {
		return err
	}
	srv := server.NewHTTPServer(cfg.Server, app.router)
	tree := supervise(cfg, manager, app, srv)

	log.WithFields(log.Fields{
		"addr":        srv.Addr,
		"environment": cfg.Environment,
		"routes":      server.Describe(app.router),
		"mqtt":        cfg.MQTT.Enabled,
		"storage":     images != nil,
	}).Info("Starting VitaRenta API")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		log.WithField("services", len(unstopped)).Warn("Some services did not stop in time")
	}
	log.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
