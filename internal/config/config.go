// Package config loads service configuration, environment-first with an
// optional config file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the backend needs to start.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	DatabaseURL    string        `mapstructure:"database_url"`
	SessionSecret  string        `mapstructure:"session_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CookieName     string        `mapstructure:"cookie_name"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
}

// Load reads configuration from DV_* environment variables, layered over an
// optional YAML file (path in DV_CONFIG_FILE).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("dv")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl", 12*time.Hour)
	v.SetDefault("cookie_name", "dv_session")
	v.SetDefault("max_upload_bytes", int64(512<<20)) // 512 MiB
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_bucket", "")

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("DV_SESSION_SECRET must be set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DV_DATABASE_URL must be set")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("DV_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
