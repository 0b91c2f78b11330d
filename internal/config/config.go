package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SPNAccessKey      string        `mapstructure:"spn_access_key"`
	SPNSecret         string        `mapstructure:"spn_secret"`
	SPNSecretFile     string        `mapstructure:"spn_secret_file"`
	SPNBaseURL        string        `mapstructure:"spn_base_url"`
	SPNTimeoutSeconds int64         `mapstructure:"spn_timeout_seconds"`
	SPNTimeout        time.Duration `mapstructure:"-"`
	HTTPDebug         bool          `mapstructure:"http_debug"`

	SourcesFile            string        `mapstructure:"sources_file"`
	PublishersFile         string        `mapstructure:"publishers_file"`
	ArchiveIntervalSeconds int64         `mapstructure:"archive_interval"`
	ArchiveInterval        time.Duration `mapstructure:"-"`
	PollIntervalSeconds    int64         `mapstructure:"poll_interval_seconds"`
	PollInterval           time.Duration `mapstructure:"-"`
	MaxInFlight            int           `mapstructure:"max_in_flight"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-page-archiver")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("spn_access_key", "")
	v.SetDefault("spn_secret", "")
	v.SetDefault("spn_secret_file", "")
	v.SetDefault("spn_base_url", "https://web.archive.org")
	v.SetDefault("spn_timeout_seconds", 30)
	v.SetDefault("http_debug", false)
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("archive_interval", 3600) // seconds
	v.SetDefault("poll_interval_seconds", 2)
	v.SetDefault("max_in_flight", 4)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/captures.db")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.resolveSecret(); err != nil {
		return nil, err
	}

	if cfg.SPNTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid spn_timeout_seconds (must be positive seconds)")
	}
	cfg.SPNTimeout = time.Duration(cfg.SPNTimeoutSeconds) * time.Second

	if cfg.ArchiveIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid archive_interval (must be positive seconds)")
	}
	cfg.ArchiveInterval = time.Duration(cfg.ArchiveIntervalSeconds) * time.Second

	if cfg.PollIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid poll_interval_seconds (must be positive seconds)")
	}
	cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second

	if cfg.MaxInFlight <= 0 {
		return nil, fmt.Errorf("invalid max_in_flight (must be positive)")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}

// resolveSecret reads the API secret from spn_secret_file when spn_secret is unset.
func (c *Config) resolveSecret() error {
	c.SPNSecret = strings.TrimSpace(c.SPNSecret)
	if c.SPNSecret != "" || strings.TrimSpace(c.SPNSecretFile) == "" {
		return nil
	}
	raw, err := os.ReadFile(c.SPNSecretFile)
	if err != nil {
		return fmt.Errorf("read spn_secret_file: %w", err)
	}
	c.SPNSecret = strings.TrimSpace(string(raw))
	return nil
}

// RequireCredentials fails when the API access key or secret is missing.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.SPNAccessKey) == "" {
		return fmt.Errorf("spn_access_key is required")
	}
	if c.SPNSecret == "" {
		return fmt.Errorf("spn_secret or spn_secret_file is required")
	}
	return nil
}

// MarshalLogObject logs the configuration without the API secret.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("app_name", c.AppName)
	enc.AddString("app_env", c.Env)
	enc.AddString("log_level", c.LogLevel)
	enc.AddString("spn_access_key", c.SPNAccessKey)
	enc.AddBool("spn_secret_set", c.SPNSecret != "")
	enc.AddString("spn_base_url", c.SPNBaseURL)
	enc.AddDuration("spn_timeout", c.SPNTimeout)
	enc.AddBool("http_debug", c.HTTPDebug)
	enc.AddString("sources_file", c.SourcesFile)
	enc.AddString("publishers_file", c.PublishersFile)
	enc.AddDuration("archive_interval", c.ArchiveInterval)
	enc.AddDuration("poll_interval", c.PollInterval)
	enc.AddInt("max_in_flight", c.MaxInFlight)
	enc.AddString("storage_type", c.StorageType)
	enc.AddString("bbolt_path", c.BBoltPath)
	enc.AddDuration("storage_ttl", c.StorageTTL)
	enc.AddDuration("storage_cleanup_interval", c.StorageCleanupInterval)
	return nil
}
