package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultWialonHost   = "https://hst-api.wialon.com"
	defaultSyncInterval = 30
	defaultHTTPPort     = "8085"
)

// Config defines fleetsync service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"FLEETSYNC_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"FLEETSYNC_POSTGRES_DSN"`
	} `yaml:"database"`
	Wialon struct {
		Host  string `yaml:"host" env:"WIALON_HOST"`
		Token string `yaml:"token" env:"WIALON_TOKEN"`
	} `yaml:"wialon"`
	Sync struct {
		IntervalMinutes int `yaml:"interval_minutes" env:"FLEETSYNC_SYNC_INTERVAL_MINUTES"`
	} `yaml:"sync"`
	Redis struct {
		Addr     string `yaml:"addr" env:"FLEETSYNC_REDIS_ADDR"`
		Password string `yaml:"password" env:"FLEETSYNC_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"FLEETSYNC_JWT_SECRET"`
	} `yaml:"auth"`
}

// Load configuration from optional YAML file plus env overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Wialon.Token) == "" {
		return nil, errors.New("config: wialon token required")
	}
	if strings.TrimSpace(cfg.Wialon.Host) == "" {
		cfg.Wialon.Host = defaultWialonHost
	}
	if cfg.Sync.IntervalMinutes <= 0 {
		cfg.Sync.IntervalMinutes = defaultSyncInterval
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultHTTPPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SyncInterval returns the rolling sync period.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}
