package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitorConfig controls how a monitoring run executes checks.
type MonitorConfig struct {
	CookieName     string        `mapstructure:"cookie_name"`
	BatchSize      int           `mapstructure:"batch_size"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxErrorLength int           `mapstructure:"max_error_length"`
	ScreenshotDir  string        `mapstructure:"screenshot_dir"`
	RunLockTTL     time.Duration `mapstructure:"run_lock_ttl"`
}

type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"`
	ExecPath string `mapstructure:"exec_path"`
}

type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var errViper viper.ConfigFileNotFoundError
		if errors.As(err, &errViper) {
			slog.Warn("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// app defaults
	viper.SetDefault("app.name", "abwatch")
	viper.SetDefault("app.version", "1.0.0")

	// server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "abwatch")
	viper.SetDefault("database.password", "abwatch")
	viper.SetDefault("database.dbname", "abwatch")
	viper.SetDefault("database.sslmode", "disable")

	// redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// monitor defaults
	viper.SetDefault("monitor.cookie_name", "ab_test_failure")
	viper.SetDefault("monitor.batch_size", 5)
	viper.SetDefault("monitor.attempt_timeout", "30s")
	viper.SetDefault("monitor.max_retries", 3)
	viper.SetDefault("monitor.retry_delay", "2s")
	viper.SetDefault("monitor.max_error_length", 500)
	viper.SetDefault("monitor.screenshot_dir", "screenshots")
	viper.SetDefault("monitor.run_lock_ttl", "30m")

	// browser defaults
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.exec_path", "")

	// schedule defaults
	viper.SetDefault("schedule.enabled", true)
	viper.SetDefault("schedule.cron", "*/15 * * * *")
	viper.SetDefault("schedule.stale_after", "30m")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}

	if cfg.Database.DBName == "" {
		return errors.New("database name is required")
	}

	if cfg.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if cfg.Monitor.CookieName == "" {
		return errors.New("monitor cookie name is required")
	}

	if cfg.Monitor.BatchSize < 1 {
		return fmt.Errorf("invalid monitor batch size %d", cfg.Monitor.BatchSize)
	}

	if cfg.Monitor.MaxRetries < 1 {
		return fmt.Errorf("invalid monitor max retries %d", cfg.Monitor.MaxRetries)
	}

	if cfg.Monitor.MaxErrorLength < 4 {
		return fmt.Errorf("invalid monitor max error length %d", cfg.Monitor.MaxErrorLength)
	}

	if cfg.Monitor.ScreenshotDir == "" {
		return errors.New("monitor screenshot dir is required")
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetRedisOptions returns client options for the configured Redis.
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
