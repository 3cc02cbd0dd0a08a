package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tenantapp "github.com/saas/controlplane/internal/application/tenant"
	usageapp "github.com/saas/controlplane/internal/application/usage"
	domainusage "github.com/saas/controlplane/internal/domain/usage"
	"github.com/saas/controlplane/internal/infrastructure/cache"
	"github.com/saas/controlplane/internal/infrastructure/config"
	"github.com/saas/controlplane/internal/infrastructure/event"
	"github.com/saas/controlplane/internal/infrastructure/logger"
	"github.com/saas/controlplane/internal/infrastructure/persistence"
	"github.com/saas/controlplane/internal/infrastructure/pool"
	"github.com/saas/controlplane/internal/infrastructure/provisioner"
	"github.com/saas/controlplane/internal/interfaces/http/handler"
	"github.com/saas/controlplane/internal/interfaces/http/middleware"
	"github.com/saas/controlplane/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting tenant control plane",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Metadata store
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to metadata store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing metadata store", zap.Error(err))
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate metadata store", zap.Error(err))
	}

	// Redis backs the distributed tenant cache tier and usage counters.
	// The control plane stays up without it; caches degrade to local.
	var tenantL2 *cache.RedisTenantCache
	var counters domainusage.CounterCache
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, running with in-process caches only", zap.Error(err))
		counters = cache.NewInMemoryCounterCache()
	} else {
		defer func() { _ = redisClient.Close() }()
		tenantL2 = cache.NewRedisTenantCache(redisClient, cfg.Cache.TenantTTL, cfg.Cache.RedisTimeout)
		counters = cache.NewRedisCounterCache(redisClient, cfg.Cache.RedisTimeout)
	}

	tenantL1 := cache.NewLocalTenantCache(cfg.Cache.LocalTTL)
	var tenantCache *cache.TieredTenantCache
	if tenantL2 != nil {
		tenantCache = cache.NewTieredTenantCache(tenantL1, tenantL2, log)
	} else {
		tenantCache = cache.NewTieredTenantCache(tenantL1, nil, log)
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	bindingRepo := persistence.NewGormBindingRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	usageRepo := persistence.NewGormUsageRecordRepository(db.DB)

	// Event bus
	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	// Tenant storage plumbing
	storageProvisioner := provisioner.NewPostgresProvisioner(cfg.TenantDB, cfg.Provision.Timeout, log)
	poolManager := pool.NewManager(cfg.Pool, log)
	defer poolManager.Close()

	// Application services
	lifecycle := tenantapp.NewLifecycleService(
		tenantRepo, bindingRepo, subscriptionRepo,
		storageProvisioner, tenantCache, poolManager, bus, log,
		tenantapp.LifecycleServiceConfig{
			DefaultTrialDays: cfg.Provision.DefaultTrialDays,
			BaseDomain:       cfg.App.BaseDomain,
		},
	)
	metering := usageapp.NewMeteringService(
		tenantRepo, subscriptionRepo, usageRepo, counters, bus, log,
		usageapp.MeteringServiceConfig{
			DefaultPeriod: domainusage.Period(cfg.Usage.DefaultPeriod),
			CounterTTL:    cfg.Cache.UsageTTL,
		},
	)

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewTenantHandler(lifecycle))
	r.Register(handler.NewUsageHandler(metering))
	r.Register(handler.NewSystemHandler(db, tenantCache, poolManager))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}

// healthHandler reports liveness of the process and its metadata store
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "metadata store unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}
