package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/cache"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/config"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/database"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/handlers"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/logging"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/middleware"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/retry"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/seed"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("cache_backend", cfg.Cache.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		Retry:          retry.DefaultConfig(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := migrate(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories are stateless; every call runs on the connection in the request scope.
	catalogRepo := repositories.NewCatalogRepository()
	userRepo := repositories.NewUserRepository()
	caseRepo := repositories.NewCaseRepository()
	promiseRepo := repositories.NewPromiseRepository()
	activityRepo := repositories.NewActivityRepository()
	analyticsRepo := repositories.NewAnalyticsRepository()

	if err := bootstrap(ctx, cfg, db, catalogRepo, userRepo, logger); err != nil {
		logger.Fatal("Failed to seed database", zap.String("error", logging.SanitizeError(err)))
	}

	resultCache := newResultCache(ctx, cfg, logger)
	policies := cache.DefaultPolicies(cfg.Cache.KPITTL, cfg.Cache.StructuralTTL)
	auditor := audit.NewSecurityAuditor(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(tokens, logger), logger)

	catalogService := services.NewCatalogService(catalogRepo, logger)
	sessionService := services.NewSessionService(userRepo, tokens, auditor, logger)
	caseService := services.NewCaseService(caseRepo, catalogRepo, userRepo, promiseRepo, activityRepo, resultCache, auditor, logger)
	analyticsService := services.NewAnalyticsService(catalogRepo, analyticsRepo, caseRepo, promiseRepo, activityRepo, resultCache, policies, logger)

	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(sessionService, cfg, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewCatalogHandler(catalogService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewDashboardHandler(analyticsService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewCaseHandler(caseService, analyticsService, auditor, logger).RegisterRoutes(mux, authMiddleware, scope)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestID(middleware.RequestLogger(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting cobranzas-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// migrate applies pending migrations over a short-lived database/sql handle.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}

// bootstrap loads the default catalog and the first administrator.
func bootstrap(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	catalog repositories.CatalogRepository,
	users repositories.UserRepository,
	logger *zap.Logger,
) error {
	scopedCtx, cleanup, err := db.WithScopeContext(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seeder := seed.NewSeeder(catalog, users, logger)

	if cfg.SeedCatalog {
		defaults, err := seed.DefaultCatalog()
		if err != nil {
			return err
		}
		if _, err := seeder.SeedCatalog(scopedCtx, defaults); err != nil {
			return err
		}
	}

	_, err = seeder.EnsureAdmin(scopedCtx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword)
	return err
}

// newResultCache builds the dashboard cache. An unreachable Redis degrades to no caching.
func newResultCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Cache {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemoryCache()
	case config.CacheBackendNone:
		return cache.NewNoopCache()
	}

	if cfg.Redis.Host == "" {
		logger.Warn("Redis cache selected without REDIS_HOST, caching disabled")
		return cache.NewNoopCache()
	}

	client, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, caching disabled",
			zap.String("error", logging.SanitizeError(err)))
		return cache.NewNoopCache()
	}
	return cache.NewRedisCache(client, logger)
}
