package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	sqlassets "github.com/zenGate-Global/palmyra-fleet-migrator/database"
	entitlementsrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/repo"
	entitlementsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/entitlements/be/service"
	migrationsengine "github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	migrationshandler "github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/handler"
	migrationsservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/service"
	registryrepo "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/repo"
	registryservice "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
	platformlogging "github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/logging"
	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	AdminSchema     string        `env:"ADMIN_SCHEMA" envDefault:"admin"`
	MigrateWorkers  int           `env:"MIGRATE_WORKERS" envDefault:"4"`
	MigrateTimeout  time.Duration `env:"MIGRATE_OP_TIMEOUT" envDefault:"30s"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "migration-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	catalog, err := migrationsengine.LoadCatalog(sqlassets.MigrationsFS, "migrations")
	if err != nil {
		logger.Fatal("load migration catalog", zap.Error(err))
	}

	registryRepo := registryrepo.NewPostgresRepository(pool, cfg.AdminSchema)
	registrySvc := registryservice.New(registryRepo)

	entitlementRepo := entitlementsrepo.NewPostgresRepository(pool, cfg.AdminSchema)
	entitlementSvc := entitlementsservice.New(entitlementRepo, logger)

	factory := migrationsengine.NewPostgresFactory(catalog, logger)

	migrationSvc := migrationsservice.New(
		registrySvc,
		entitlementSvc,
		factory,
		catalog,
		migrationsservice.Config{
			Workers:   cfg.MigrateWorkers,
			OpTimeout: cfg.MigrateTimeout,
		},
		logger,
	)
	migrationHTTPHandler := migrationshandler.New(migrationSvc, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rootRouter.Mount("/api/v1", migrationHTTPHandler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting migration api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
