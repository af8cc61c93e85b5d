// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/postergen/pkg/assets"
	"github.com/user/postergen/pkg/orchestrator"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for postergen.
type Config struct {
	// Output
	OutputDir   string  `yaml:"output_dir"`
	BrandPrefix string  `yaml:"brand_prefix"`
	Scale       float64 `yaml:"scale"`

	// Timeouts
	ProbeTimeoutMs  int `yaml:"probe_timeout_ms"`
	RecordTimeoutMs int `yaml:"record_timeout_ms"`

	// Browser
	Headless   bool   `yaml:"headless"`
	ChromePath string `yaml:"chrome_path"`

	// Backend
	DatabaseURL string        `yaml:"database_url"`
	Storage     StorageConfig `yaml:"storage"`
	UserID      string        `yaml:"user_id"`

	// Logging and debug
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
}

// StorageConfig represents the asset bucket connection.
// An empty Endpoint selects the in-memory storage.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		OutputDir:       ".",
		BrandPrefix:     "aeemci",
		Scale:           2,
		ProbeTimeoutMs:  3000,
		RecordTimeoutMs: 5000,
		Headless:        true,
		Storage: StorageConfig{
			Bucket: assets.DefaultBucket,
		},
		LogLevel: "info",
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads path when it is not empty, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL = "POSTERGEN_DATABASE_URL"
	EnvS3Endpoint  = "POSTERGEN_S3_ENDPOINT"
	EnvS3AccessKey = "POSTERGEN_S3_ACCESS_KEY"
	EnvS3SecretKey = "POSTERGEN_S3_SECRET_KEY"
	EnvS3Bucket    = "POSTERGEN_S3_BUCKET"
	EnvS3UseSSL    = "POSTERGEN_S3_USE_SSL"
	EnvUserID      = "POSTERGEN_USER_ID"
)

// ApplyEnv overrides fields with the non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(EnvDatabaseURL, &c.DatabaseURL)
	set(EnvS3Endpoint, &c.Storage.Endpoint)
	set(EnvS3AccessKey, &c.Storage.AccessKey)
	set(EnvS3SecretKey, &c.Storage.SecretKey)
	set(EnvS3Bucket, &c.Storage.Bucket)
	set(EnvUserID, &c.UserID)

	if v := strings.TrimSpace(getenv(EnvS3UseSSL)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvS3UseSSL, err)
		}
		c.Storage.UseSSL = b
	}
	return nil
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	var errs []error
	if c.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be positive, got %v", c.Scale))
	}
	if c.ProbeTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("probe_timeout_ms must be positive, got %d", c.ProbeTimeoutMs))
	}
	if c.RecordTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("record_timeout_ms must be positive, got %d", c.RecordTimeoutMs))
	}
	if c.BrandPrefix == "" {
		errs = append(errs, errors.New("brand_prefix is empty"))
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is empty"))
	}
	return errors.Join(errs...)
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		BrandPrefix:   c.BrandPrefix,
		Scale:         c.Scale,
		ProbeTimeout:  time.Duration(c.ProbeTimeoutMs) * time.Millisecond,
		RecordTimeout: time.Duration(c.RecordTimeoutMs) * time.Millisecond,
		HistoryLimit:  orchestrator.DefaultHistoryLimit,
	}
}
