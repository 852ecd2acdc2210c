// Package config provides configuration management for tvfilter using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 10
	defaultMaxIdleConns      = 5
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultWorkers           = 4
	defaultBatchSize         = 1000
	defaultMaxExpansionDepth = 16
	defaultHTTPTimeout       = 60 * time.Second
	defaultMaxSourceBytes    = 512 * 1024 * 1024
	defaultRetryAttempts     = 3
	defaultRetryDelay        = time.Second
	defaultUserAgent         = "tvfilter"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "TVFILTER"

// CronParser parses the five-field cron expressions accepted in scheduler.cron.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig holds the connection used for watch snapshots.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir" yaml:"base_dir"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	TempDir   string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// PipelineConfig holds the filtering pipeline configuration.
type PipelineConfig struct {
	// Catalog is the path of the catalog YAML (templates, sources, targets).
	Catalog string `mapstructure:"catalog" yaml:"catalog"`

	// Workers bounds the number of targets processed concurrently.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// BatchSize is the number of channels between cancellation checks.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// MaxExpansionDepth bounds template expansion chains.
	MaxExpansionDepth int `mapstructure:"max_expansion_depth" yaml:"max_expansion_depth"`

	// WatchPersistence stores watched group contents and logs changes.
	WatchPersistence bool `mapstructure:"watch_persistence" yaml:"watch_persistence"`
}

// SourceConfig holds the acquisition settings used by the source loader.
type SourceConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxBytes caps the decompressed size of one playlist.
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
	// RetryAttempts is the number of retries after a failed HTTP request.
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// SchedulerConfig holds the periodic run trigger.
type SchedulerConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron       string `mapstructure:"cron" yaml:"cron"` // 5-field cron expression or descriptor (@hourly)
	RunOnStart bool   `mapstructure:"run_on_start" yaml:"run_on_start"`

	// RunTimeout bounds one scheduled run. Zero means no limit.
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TVFILTER_ and use underscores for nesting.
// Example: TVFILTER_PIPELINE_WORKERS=8.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tvfilter")
		v.AddConfigPath("$HOME/.tvfilter")
	}

	BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// BindEnv enables TVFILTER_ environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tvfilter.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Pipeline defaults
	v.SetDefault("pipeline.catalog", "catalog.yaml")
	v.SetDefault("pipeline.workers", defaultWorkers)
	v.SetDefault("pipeline.batch_size", defaultBatchSize)
	v.SetDefault("pipeline.max_expansion_depth", defaultMaxExpansionDepth)
	v.SetDefault("pipeline.watch_persistence", true)

	// Source defaults
	v.SetDefault("source.http_timeout", defaultHTTPTimeout)
	v.SetDefault("source.user_agent", defaultUserAgent)
	v.SetDefault("source.max_bytes", defaultMaxSourceBytes)
	v.SetDefault("source.retry_attempts", defaultRetryAttempts)
	v.SetDefault("source.retry_delay", defaultRetryDelay)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 */6 * * *")
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.run_timeout", time.Duration(0))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Pipeline validation
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.MaxExpansionDepth < 1 {
		return fmt.Errorf("pipeline.max_expansion_depth must be at least 1")
	}

	// Source validation
	if c.Source.RetryAttempts < 0 {
		return fmt.Errorf("source.retry_attempts must not be negative")
	}

	// Scheduler validation
	if c.Scheduler.RunTimeout < 0 {
		return fmt.Errorf("scheduler.run_timeout must not be negative")
	}
	if c.Scheduler.Enabled {
		if _, err := CronParser.Parse(c.Scheduler.Cron); err != nil {
			return fmt.Errorf("scheduler.cron is invalid: %w", err)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return filepath.Join(c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}
