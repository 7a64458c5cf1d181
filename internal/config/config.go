package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Office   OfficeConfig   `yaml:"office"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
	SecretKey  string `yaml:"secret_key"`
}

// OfficeConfig tunes the realtime presence layer.
type OfficeConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout    time.Duration `yaml:"heartbeat_timeout"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	ProximityThreshold  float64       `yaml:"proximity_threshold"`
	ProximityHysteresis float64       `yaml:"proximity_hysteresis"`
	ChatHistorySize     int           `yaml:"chat_history_size"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     8004,
			BasePath: "/api/office",
			Env:      "dev",
			LogLevel: "debug",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		Office: OfficeConfig{
			HeartbeatInterval:   10 * time.Second,
			HeartbeatTimeout:    25 * time.Second,
			SweepInterval:       5 * time.Second,
			ProximityThreshold:  50,
			ProximityHysteresis: 10,
			ChatHistorySize:     50,
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Redis.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		cfg.Auth.SecretKey = secret
	}
	if interval := os.Getenv("OFFICE_HEARTBEAT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Office.HeartbeatInterval = d
		}
	}
	if timeout := os.Getenv("OFFICE_HEARTBEAT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Office.HeartbeatTimeout = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the realtime layer depends on.
func (c *Config) Validate() error {
	if c.Office.HeartbeatTimeout <= c.Office.HeartbeatInterval {
		return fmt.Errorf("office.heartbeat_timeout (%s) must be greater than office.heartbeat_interval (%s)",
			c.Office.HeartbeatTimeout, c.Office.HeartbeatInterval)
	}
	if c.Office.SweepInterval <= 0 {
		return fmt.Errorf("office.sweep_interval must be positive")
	}
	if c.Office.ProximityThreshold <= 0 {
		return fmt.Errorf("office.proximity_threshold must be positive")
	}
	if c.Office.ProximityHysteresis < 0 {
		return fmt.Errorf("office.proximity_hysteresis must not be negative")
	}
	if c.Office.ChatHistorySize < 0 {
		return fmt.Errorf("office.chat_history_size must not be negative")
	}
	return nil
}
