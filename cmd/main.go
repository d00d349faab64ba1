package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "marketplace/docs"
	"marketplace/internal/caching"
	"marketplace/internal/config"
	"marketplace/internal/handlers"
	"marketplace/internal/jobs"
	"marketplace/internal/jobs/background"
	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	"marketplace/internal/middleware"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	"marketplace/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("configuration loaded", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	pool, err := database.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DB.MigrateOnStart {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	// Redis backs the wizard session cache, the profile cache and draft locks
	redisClient := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient)
	if err := cacheSvc.Ping(ctx); err != nil {
		log.Warn("redis unavailable at startup, continuing without cache", zap.Error(err))
	}
	draftLocker := caching.NewRedisDraftLocker(redisClient, cfg.Redis.DraftLockTTL)

	uploader, err := services.NewMinioUploader(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
		cfg.Minio.Bucket, cfg.Minio.PublicURL, cfg.Minio.UseSSL)
	if err != nil {
		log.Fatal("failed to initialize MinIO uploader", zap.Error(err))
	}
	if err := uploader.EnsureBucketExists(ctx); err != nil {
		log.Warn("failed to ensure logo bucket exists", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
	}

	authCfg := middleware.AuthConfig{Issuer: cfg.Auth.Issuer, RoleClaim: cfg.Auth.RoleClaim}
	if cfg.Auth.JWKSURL != "" {
		keyFunc, err := middleware.NewJWKSKeyFunc(ctx, cfg.Auth.JWKSURL)
		if err != nil {
			log.Fatal("failed to load identity provider keys", zap.Error(err))
		}
		authCfg.KeyFunc = keyFunc
	} else {
		log.Warn("no JWKS endpoint configured, verifying HS256 tokens with JWT_SECRET")
		authCfg.SigningKey = []byte(cfg.Auth.JWTSecret)
	}

	// Create repositories
	applicationRepo := repositories.NewApplicationRepo(pool)
	storeRepo := repositories.NewStoreRepo(pool)
	profileRepo := repositories.NewProfileRepo(pool)

	// Create services
	wizardSvc := services.NewWizardService(applicationRepo, cacheSvc, draftLocker, cfg.Redis.WizardTTL)
	storeSvc := services.NewStoreService(storeRepo, profileRepo, cacheSvc, uploader, cfg.Redis.ProfileTTL, cfg.Minio.UploadTimeout)

	scheduler, err := background.NewJobScheduler(jobs.NewQuotaAuditService(storeRepo), cfg.Jobs.QuotaAuditInterval)
	if err != nil {
		log.Fatal("failed to create job scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error("failed to stop job scheduler", zap.Error(err))
		}
	}()

	// Create handlers
	healthHandlers := handlers.NewHealthHandlers(version,
		map[string]handlers.Pinger{"database": pool, "redis": cacheSvc},
		map[string]handlers.Pinger{"storage": uploader},
	)
	wizardHandlers := handlers.NewWizardHandlers(wizardSvc)
	applicationHandlers := handlers.NewApplicationHandlers(wizardSvc)
	storeHandlers := handlers.NewStoreHandlers(storeSvc)
	jobHandlers := handlers.NewJobHandlers(scheduler)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(metrics.Middleware)
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.HeaderSessionID},
	}))
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.BodyLimit("30M"))

	// Health, metrics and docs (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API routes
	versionMiddleware := middleware.NewVersionMiddleware()
	if cfg.Server.V1Sunset != nil {
		versionMiddleware.Deprecate("v1", "v1 is deprecated", *cfg.Server.V1Sunset)
		log.Warn("API v1 marked deprecated", zap.Time("sunset", *cfg.Server.V1Sunset))
	}
	auditMiddleware := middleware.NewAuditMiddleware(log)
	v1 := versionMiddleware.VersionRoute(e, "", versionMiddleware.GetCurrentVersion())
	v1.Use(middleware.JWTMiddleware(authCfg))
	v1.Use(middleware.WizardSession())

	seller := v1.Group("", auditMiddleware.AuditRequest("low"))

	// Registration wizard
	seller.GET("/wizard", wizardHandlers.GetWizard)
	seller.POST("/wizard/start", wizardHandlers.StartWizard)
	seller.POST("/wizard/next", wizardHandlers.NextStep)
	seller.POST("/wizard/back", wizardHandlers.PreviousStep)
	seller.PUT("/wizard/step", wizardHandlers.SetStep)
	seller.PUT("/wizard/sections/:name", wizardHandlers.SaveSection)
	seller.POST("/wizard/submit", wizardHandlers.SubmitApplication)
	seller.POST("/wizard/reset", wizardHandlers.ResetWizard)
	seller.DELETE("/wizard", wizardHandlers.DiscardWizard)

	seller.GET("/applications/:id", applicationHandlers.GetApplication)

	admin := v1.Group("/admin", auditMiddleware.AuditRequest("high"), middleware.RequireRole("admin"))
	admin.POST("/applications/:id/review", applicationHandlers.ReviewApplication)
	admin.PUT("/profiles/:id/plan", storeHandlers.ChangePlan)
	admin.GET("/jobs", jobHandlers.GetJobStatus)
	admin.POST("/jobs/:name/run", jobHandlers.RunJob)

	// Store routes
	seller.GET("/stores", storeHandlers.ListStores)
	seller.GET("/stores/usage", storeHandlers.GetUsage)
	seller.POST("/stores", storeHandlers.CreateStore)
	seller.GET("/stores/:id", storeHandlers.GetStore)
	seller.PATCH("/stores/:id", storeHandlers.UpdateStore)
	seller.DELETE("/stores/:id", storeHandlers.DeleteStore)

	go func() {
		log.Info("marketplace server starting", zap.String("version", version), zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
