package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-warden/voice/internal/config"
	"github.com/go-warden/voice/internal/dispatch"
	"github.com/go-warden/voice/internal/feed"
	"github.com/go-warden/voice/internal/handler"
	"github.com/go-warden/voice/internal/middleware"
	"github.com/go-warden/voice/internal/pkg/cache"
	"github.com/go-warden/voice/internal/pkg/database"
	"github.com/go-warden/voice/internal/pkg/utils"
	"github.com/go-warden/voice/internal/platform"
	"github.com/go-warden/voice/internal/platform/gateway"
	"github.com/go-warden/voice/internal/registry"
	"github.com/go-warden/voice/internal/repository"
	"github.com/go-warden/voice/internal/service"
	"github.com/go-warden/voice/internal/settings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(&cfg.Log)
	defer logger.Sync()

	logger.Info("Starting voice warden",
		zap.String("mode", cfg.Server.Mode),
		zap.Int("port", cfg.Server.Port),
	)

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := database.NewPostgres(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db, logger)

	// Initialize Redis
	redisClient, err := cache.NewRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer cache.Close(redisClient, logger)
	cacheStore := cache.NewCache(redisClient, logger)

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
	)

	// Load runtime settings (hot-reloaded on file change)
	settingsStore, err := settings.NewStore(cfg.Settings.Path, logger)
	if err != nil {
		logger.Fatal("Failed to load runtime settings", zap.Error(err))
	}

	// Initialize repositories
	auditRepo := repository.NewAuditRepository(db)
	separationRepo := repository.NewSeparationRepository(db)

	// In-memory registries of live platform state
	rooms := registry.NewRoomRegistry()
	requests := registry.NewRequestRegistry()
	annotations := registry.NewAnnotationTracker()

	// Platform REST client (shares the gateway bot token)
	platformClient := platform.NewRest(platform.RestConfig{
		BaseURL:        cfg.Platform.APIURL,
		Token:          cfg.Gateway.Token,
		Timeout:        cfg.Platform.Timeout,
		RequestsPerSec: cfg.Platform.RequestsPerSec,
		Burst:          cfg.Platform.Burst,
	}, logger)

	// Live dashboard feed
	hub := feed.NewHub(logger)

	// Initialize services
	notifier := service.NewNotifier(platformClient, auditRepo, hub, logger)
	botID := cfg.Gateway.BotIdentityID
	lifecycleService := service.NewLifecycleService(rooms, annotations, platformClient, settingsStore, notifier, botID, logger)
	claimService := service.NewClaimService(requests, platformClient, settingsStore, notifier, botID, logger)
	separationService := service.NewSeparationService(separationRepo, platformClient, settingsStore, notifier, logger)
	policyService := service.NewPolicyService(rooms, lifecycleService, claimService, platformClient, settingsStore, logger)
	sweeper := service.NewSweeper(rooms, requests, lifecycleService, claimService, platformClient, settingsStore, logger)

	// Event pipeline: gateway session -> deduper -> dispatcher
	deduper := dispatch.NewRedisDeduper(cacheStore, 10*time.Minute, logger)
	dispatcher := dispatch.NewDispatcher(
		lifecycleService,
		claimService,
		separationService,
		policyService,
		sweeper,
		deduper,
		platformClient,
		settingsStore,
		logger,
	)
	session := gateway.NewSession(cfg.Gateway, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go session.Run(ctx)
	go dispatcher.Run(ctx, session.Presence(), session.Interactions())

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg.Admin, jwtManager, logger)
	overviewHandler := handler.NewOverviewHandler(rooms, requests, separationRepo, auditRepo, platformClient, logger)
	settingsHandler := handler.NewSettingsHandler(settingsStore, logger)
	separationHandler := handler.NewSeparationHandler(separationRepo, logger)
	feedHandler := feed.NewHandler(hub, jwtManager, logger)

	// Setup router
	router := setupRouter(
		logger,
		jwtManager,
		redisClient,
		authHandler,
		overviewHandler,
		settingsHandler,
		separationHandler,
		feedHandler,
	)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server is running",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop the event pipeline before the HTTP surface
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initLogger(cfg *config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := cfg.Format
	if encoding != "console" {
		encoding = "json"
	}
	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}

	return logger
}

func setupRouter(
	logger *zap.Logger,
	jwtManager *utils.JWTManager,
	redisClient *redis.Client,
	authHandler *handler.AuthHandler,
	overviewHandler *handler.OverviewHandler,
	settingsHandler *handler.SettingsHandler,
	separationHandler *handler.SeparationHandler,
	feedHandler *feed.Handler,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Live dashboard feed
	router.GET("/ws", feedHandler.ServeWS)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit(redisClient))
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Dashboard routes (protected)
		dashboard := v1.Group("")
		dashboard.Use(middleware.Auth(jwtManager))
		dashboard.Use(middleware.APIRateLimit(redisClient))
		{
			dashboard.GET("/stats", overviewHandler.Stats)
			dashboard.GET("/rooms", overviewHandler.ListRooms)
			dashboard.GET("/requests", overviewHandler.ListRequests)
			dashboard.GET("/audit", overviewHandler.ListAudit)

			dashboard.GET("/settings", settingsHandler.Get)
			dashboard.PUT("/settings/rooms", middleware.SettingsRateLimit(redisClient), settingsHandler.UpdateRooms)
			dashboard.PUT("/settings/requests", middleware.SettingsRateLimit(redisClient), settingsHandler.UpdateRequests)
			dashboard.PUT("/settings/systems/:system", middleware.SettingsRateLimit(redisClient), settingsHandler.ToggleSystem)

			dashboard.GET("/separations", separationHandler.List)
			dashboard.POST("/separations", separationHandler.Create)
			dashboard.DELETE("/separations/:first/:second", separationHandler.Delete)
		}
	}

	return router
}
