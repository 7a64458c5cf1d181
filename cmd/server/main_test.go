package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"office-service/internal/config"
)

func TestNewLoggerHonorsConfiguredLevel(t *testing.T) {
	logger, err := newLogger(&config.Config{
		Server: config.ServerConfig{Env: "production", LogLevel: "warn"},
	})
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger(&config.Config{
		Server: config.ServerConfig{LogLevel: "loud"},
	})
	assert.Error(t, err)
}
