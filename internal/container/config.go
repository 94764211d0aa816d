// Package container provides dependency injection and lifecycle management
// for the timeline service.
package container

import (
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/service"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Cache    CacheConfig
	Lark     LarkConfig
	Sweeper  SweeperConfig
	Layout   LayoutConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig holds Redis settings for the layout cache.
// An empty Addr disables caching.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// LarkConfig holds Lark app credentials for chat notifications.
// An empty AppID disables chat pushes; in-app notifications are always stored.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// SweeperConfig holds the nightly routine materialization settings.
type SweeperConfig struct {
	Enabled    bool
	Schedule   string
	WindowDays int
	RunOnStart bool
}

// LayoutConfig holds timeline geometry.
type LayoutConfig struct {
	StartHour int
	PxPerHour float64
	MinHeight float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/timeline.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:    10 * time.Minute,
			Prefix: "timeline",
		},
		Sweeper: SweeperConfig{
			Enabled:    true,
			Schedule:   "0 1 * * *",
			WindowDays: service.BatchWindowDays,
		},
		Layout: LayoutConfig{
			StartHour: 8,
			PxPerHour: 80,
			MinHeight: 26,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Sweeper.WindowDays < 0 || c.Sweeper.WindowDays > service.BatchWindowDays {
		return fmt.Errorf("sweeper.window_days must not exceed %d", service.BatchWindowDays)
	}
	if c.Layout.StartHour < 0 || c.Layout.StartHour >= 24 {
		return fmt.Errorf("layout.start_hour must be within a day")
	}
	if c.Layout.PxPerHour <= 0 {
		return fmt.Errorf("layout.px_per_hour must be positive")
	}
	return nil
}
