package config

import (
	"github.com/officesync/timeline/internal/container"
	"github.com/officesync/timeline/pkg/utils"
)

// ToContainerConfig converts the file-based Config into the container's
// configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Cache: container.CacheConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			TTL:      c.Redis.TTL,
			Prefix:   c.Redis.KeyPrefix,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Sweeper: container.SweeperConfig{
			Enabled:    c.Sweeper.Enabled,
			Schedule:   c.Sweeper.Schedule,
			WindowDays: c.Sweeper.WindowDays,
			RunOnStart: c.Sweeper.RunOnStart,
		},
		Layout: container.LayoutConfig{
			StartHour: c.Layout.StartHour,
			PxPerHour: c.Layout.PxPerHour,
			MinHeight: c.Layout.MinHeight,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger.
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
