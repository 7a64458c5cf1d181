package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"office-service/internal/config"
	"office-service/internal/database"
	"office-service/internal/handler"
	"office-service/internal/job"
	"office-service/internal/metrics"
	"office-service/internal/middleware"
	"office-service/internal/repository"
	"office-service/internal/router"
	"office-service/internal/service"
)

func main() {
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	corsOrigins := getEnv("CORS_ORIGINS", "*")

	logger.Info("Starting Office Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("basePath", cfg.Server.BasePath),
		zap.Duration("heartbeatTimeout", cfg.Office.HeartbeatTimeout),
		zap.Float64("proximityThreshold", cfg.Office.ProximityThreshold))

	// PostgreSQL is the optional presence mirror; the realtime layer runs
	// without it.
	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Warn("Running without PostgreSQL, presence mirror disabled", zap.Error(err))
	} else {
		logger.Info("PostgreSQL connected")
	}

	redisClient, err := database.InitRedis(cfg)
	if err != nil {
		logger.Warn("Running without Redis, presence pubsub disabled", zap.Error(err))
	} else {
		logger.Info("Redis connected")
	}

	m := metrics.New()

	// Repositories
	presenceRepo := repository.NewPresenceRepository(db)
	memberRepo := repository.NewMemberRepository(db, logger)

	// Core realtime services
	registry := service.NewConnectionRegistry(cfg.Office.HeartbeatTimeout, cfg.Office.SweepInterval, logger)
	office := service.NewOfficeService(cfg.Office, logger)
	presence := service.NewPresenceService(presenceRepo, redisClient, logger)

	// Fan-out hub and websocket handler
	hub := handler.NewHub(registry, office, presence, m, logger)
	validator := middleware.NewAuthServiceValidator(cfg.Auth.ServiceURL, cfg.Auth.SecretKey, logger)
	wsHandler := handler.NewWSHandler(logger, validator, memberRepo, hub, registry, office, presence, m)

	// REST handlers
	presenceHandler := handler.NewPresenceHandler(presence, presenceRepo, logger)
	officeHandler := handler.NewOfficeHandler(office, logger)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Heartbeat sweeper
	stop := make(chan struct{})
	defer close(stop)
	go registry.StartSweeper(stop)

	// Stale presence row cleanup
	if db != nil {
		c := cron.New()
		cleanup := job.NewPresenceCleanupJob(presenceRepo, 30*24*time.Hour, logger)
		if err := cleanup.Schedule(c, "@hourly"); err != nil {
			logger.Error("Failed to schedule presence cleanup", zap.Error(err))
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	r := router.Setup(cfg, logger, m, validator, wsHandler, presenceHandler, officeHandler, healthHandler, corsOrigins)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Office Service started", zap.String("address", addr))

	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Server.Env == "production" {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Server.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.Server.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Server.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
