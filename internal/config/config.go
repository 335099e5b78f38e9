// Package config loads herdcore settings from an optional YAML file with
// HERDCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"herdcore/internal/blob"
	"io"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the herdcore CLI.
// Environment variables always override YAML values.
type Config struct {
	// Farmer binds every operation to one owner when set.
	Farmer string `yaml:"farmer" env:"HERDCORE_FARMER" env-default:""`

	Storage StorageConfig `yaml:"storage"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"HERDCORE_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" env:"HERDCORE_SQLITE_PATH" env-default:"herdcore.db"`
	PostgresDSN string `yaml:"postgres_dsn" env:"HERDCORE_POSTGRES_DSN" env-default:""`
}

// JournalConfig controls archiving of committed cascades.
type JournalConfig struct {
	Enabled bool          `yaml:"enabled" env:"HERDCORE_JOURNAL_ENABLED" env-default:"false"`
	Driver  string        `yaml:"driver" env:"HERDCORE_JOURNAL_DRIVER" env-default:"fs"`
	FSRoot  string        `yaml:"fs_root" env:"HERDCORE_JOURNAL_FS_ROOT" env-default:"journal"`
	Prefix  string        `yaml:"prefix" env:"HERDCORE_JOURNAL_PREFIX" env-default:"journal"`
	S3      blob.S3Config `yaml:"s3"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"HERDCORE_LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"HERDCORE_LOG_DEVELOPMENT" env-default:"false"`
}

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"HERDCORE_METRICS_ENABLED" env-default:"false"`
	Namespace string `yaml:"namespace" env:"HERDCORE_METRICS_NAMESPACE" env-default:"herdcore"`
}

var (
	storageDrivers = []string{"memory", "sqlite", "postgres"}
	journalDrivers = []string{string(blob.DriverFilesystem), string(blob.DriverS3), string(blob.DriverMemory)}
)

// Load reads path (when non-empty) and applies environment overrides. A
// missing path is an error; an empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Farmer = strings.TrimSpace(c.Farmer)
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate reports every unsupported setting at once.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Storage.Driver, storageDrivers) {
		errs = append(errs, fmt.Errorf("storage.driver %q must be one of %s", c.Storage.Driver, strings.Join(storageDrivers, "|")))
	}
	if c.Journal.Enabled {
		if !oneOf(c.Journal.Driver, journalDrivers) {
			errs = append(errs, fmt.Errorf("journal.driver %q must be one of %s", c.Journal.Driver, strings.Join(journalDrivers, "|")))
		}
		if c.Journal.Driver == string(blob.DriverS3) && c.Journal.S3.Bucket == "" {
			errs = append(errs, errors.New("journal.s3.bucket is required for the s3 driver"))
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// JournalBlob returns the blob backend settings of the journal.
func (c *Config) JournalBlob() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Journal.Driver),
		FSRoot: c.Journal.FSRoot,
		S3:     c.Journal.S3,
	}
}

// Write renders the effective configuration as YAML. Credentials are masked.
func (c *Config) Write(w io.Writer) error {
	redacted := *c
	if redacted.Journal.S3.SecretAccessKey != "" {
		redacted.Journal.S3.SecretAccessKey = "***"
	}
	if redacted.Journal.S3.SessionToken != "" {
		redacted.Journal.S3.SessionToken = "***"
	}
	if redacted.Storage.PostgresDSN != "" {
		redacted.Storage.PostgresDSN = redactDSN(redacted.Storage.PostgresDSN)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(redacted); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
