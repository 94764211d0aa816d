package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Layout   LayoutConfig   `mapstructure:"layout"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds layout cache configuration. Leave addr empty to run without a cache.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// SweeperConfig holds the routine sweeper schedule
type SweeperConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Schedule   string `mapstructure:"schedule"`
	WindowDays int    `mapstructure:"window_days"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// LayoutConfig holds timeline geometry shared with the client
type LayoutConfig struct {
	StartHour int     `mapstructure:"start_hour"`
	PxPerHour float64 `mapstructure:"px_per_hour"`
	MinHeight float64 `mapstructure:"min_height"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, a .env file in the
// working directory and the environment, in increasing precedence.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/timeline.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Keys without a default are invisible to Unmarshal unless bound, so
	// every optional key gets an empty one.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("redis.key_prefix", "timeline")

	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "0 1 * * *")
	v.SetDefault("sweeper.window_days", 30)
	v.SetDefault("sweeper.run_on_start", false)

	v.SetDefault("layout.start_hour", 8)
	v.SetDefault("layout.px_per_hour", 80)
	v.SetDefault("layout.min_height", 26)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps TIMELINE_SERVER_PORT style variables onto keys, plus the
// unprefixed names deployments already use for credentials.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("TIMELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("lark.app_id", "TIMELINE_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "TIMELINE_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("redis.addr", "TIMELINE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "TIMELINE_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("database.path", "TIMELINE_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Sweeper.Enabled && c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper.schedule is required when the sweeper is enabled")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
