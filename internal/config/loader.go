package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/bugboard/internal/db"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server        ServerConfig
	Database      db.Config
	Logging       LoggingConfig
	Normalization NormalizationConfig
	Ingestion     IngestionConfig
	ImageLink     ImageLinkConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string
	Format string
}

// NormalizationConfig points at an optional YAML rules file.
type NormalizationConfig struct {
	RulesFile string
}

// IngestionConfig bounds uploads.
type IngestionConfig struct {
	MaxUploadBytes int64
	Concurrency    int
	BatchSize      int
}

// ImageLinkConfig controls remote image checks.
type ImageLinkConfig struct {
	Timeout time.Duration
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Database: db.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Ingestion: IngestionConfig{
			MaxUploadBytes: 32 << 20,
			Concurrency:    4,
			BatchSize:      100,
		},
		ImageLink: ImageLinkConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// EnvPrefix is prepended to environment overrides, e.g. BUGBOARD_DATABASE_HOST.
const EnvPrefix = "BUGBOARD"

// Load reads config.yaml from configPath (when present) and applies
// environment overrides on top of DefaultConfig.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = v.GetDuration("server.idle_timeout")
	cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")

	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.Path = v.GetString("database.path")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")

	cfg.Normalization.RulesFile = v.GetString("normalization.rules_file")

	cfg.Ingestion.MaxUploadBytes = v.GetInt64("ingestion.max_upload_bytes")
	cfg.Ingestion.Concurrency = v.GetInt("ingestion.concurrency")
	cfg.Ingestion.BatchSize = v.GetInt("ingestion.batch_size")

	cfg.ImageLink.Timeout = v.GetDuration("imagelink.timeout")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ConfigFileUsed reports which file Load would read from configPath, or ""
// when none exists.
func ConfigFileUsed(configPath string) string {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.path", cfg.Database.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("normalization.rules_file", cfg.Normalization.RulesFile)

	v.SetDefault("ingestion.max_upload_bytes", cfg.Ingestion.MaxUploadBytes)
	v.SetDefault("ingestion.concurrency", cfg.Ingestion.Concurrency)
	v.SetDefault("ingestion.batch_size", cfg.Ingestion.BatchSize)

	v.SetDefault("imagelink.timeout", cfg.ImageLink.Timeout)
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == db.DriverSQLite && strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required for the sqlite driver")
	}
	if c.Ingestion.Concurrency <= 0 {
		return errors.New("ingestion.concurrency must be positive")
	}
	if c.Ingestion.BatchSize <= 0 {
		return errors.New("ingestion.batch_size must be positive")
	}
	if c.Ingestion.MaxUploadBytes <= 0 {
		return errors.New("ingestion.max_upload_bytes must be positive")
	}
	return nil
}
