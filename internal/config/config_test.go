package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8004, cfg.Server.Port)
	assert.Equal(t, "/api/office", cfg.Server.BasePath)
	assert.Equal(t, 10*time.Second, cfg.Office.HeartbeatInterval)
	assert.Equal(t, 25*time.Second, cfg.Office.HeartbeatTimeout)
	assert.Equal(t, 50.0, cfg.Office.ProximityThreshold)
	assert.Equal(t, 50, cfg.Office.ChatHistorySize)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
office:
  heartbeat_interval: 2s
  heartbeat_timeout: 5s
  proximity_threshold: 80
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Office.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Office.HeartbeatTimeout)
	assert.Equal(t, 80.0, cfg.Office.ProximityThreshold)
}

func TestValidateRejectsTimeoutNotAboveInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
office:
  heartbeat_interval: 10s
  heartbeat_timeout: 10s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "heartbeat_timeout")
}

func TestValidateRejectsBadProximity(t *testing.T) {
	cfg := &Config{
		Office: OfficeConfig{
			HeartbeatInterval:  time.Second,
			HeartbeatTimeout:   2 * time.Second,
			SweepInterval:      time.Second,
			ProximityThreshold: 0,
		},
	}

	assert.ErrorContains(t, cfg.Validate(), "proximity_threshold")
}
