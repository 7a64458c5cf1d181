// internal/database/postgres.go
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"office-service/internal/config"
	"office-service/internal/model"
)

// InitPostgres opens the database connection. Callers treat a nil *gorm.DB
// as "run without persistence": the realtime layer stays up even when the
// database is down.
func InitPostgres(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is not configured")
	}

	logLevel := gormlogger.Silent
	if cfg.Server.Env == "dev" {
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		conn *gorm.DB
		err  error
	)
	done := make(chan struct{})
	go func() {
		conn, err = gorm.Open(postgres.Open(cfg.Database.URL), gormConfig)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("database connection timeout")
	case <-done:
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	if err := conn.AutoMigrate(&model.UserPresence{}); err != nil {
		return nil, fmt.Errorf("failed to migrate presence table: %w", err)
	}

	return conn, nil
}
