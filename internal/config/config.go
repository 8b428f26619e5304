// Package config loads service settings. QBO_* environment variables override
// the optional YAML file, which overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/qbo-converter/internal/logger"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. QBO_STORAGE_BUCKET.
const EnvPrefix = "QBO"

type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Log         logger.Config   `mapstructure:"log"`
	Storage     storage.Config  `mapstructure:"storage"`
	Upload      UploadConfig    `mapstructure:"upload"`
	Institution ofx.Institution `mapstructure:"institution"`
	Dates       DatesConfig     `mapstructure:"dates"`
	Worker      WorkerConfig    `mapstructure:"worker"`
	ConfigPath  string          `mapstructure:"-"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type DatesConfig struct {
	// AssumedYear completes dates written as bare MM/DD. Zero means the
	// current year when the configuration is loaded.
	AssumedYear int `mapstructure:"assumed_year"`
}

type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	HistorySize  int           `mapstructure:"history_size"`
	Model        string        `mapstructure:"model"`
	// ParsePDF enables Gemini parsing of PDF uploads.
	ParsePDF bool `mapstructure:"parse_pdf"`
}

var defaults = map[string]interface{}{
	"server.port":          8080,
	"server.read_timeout":  "15s",
	"server.write_timeout": "60s",
	"server.idle_timeout":  "60s",

	"log.level":  "info",
	"log.format": logger.FormatConsole,

	"storage.backend": storage.BackendMemory,
	"storage.bucket":  "",

	"upload.max_bytes": 25 << 20,

	"institution.bank_id":      "",
	"institution.account_id":   "",
	"institution.account_type": "CHECKING",
	"institution.org":          "",
	"institution.fid":          "",
	"institution.intuit_bid":   "",

	"dates.assumed_year": 0,

	"worker.enabled":       false,
	"worker.poll_interval": "15s",
	"worker.concurrency":   5,
	"worker.queue_size":    100,
	"worker.max_retries":   3,
	"worker.history_size":  1000,
	"worker.model":         "gemini-2.5-flash",
	"worker.parse_pdf":     false,
}

// Load reads the configuration. An empty path looks for qbo-converter.yaml
// in the working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	return load(path, time.Now)
}

func load(path string, now func() time.Time) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("qbo-converter")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Dates.AssumedYear == 0 {
		cfg.Dates.AssumedYear = now().Year()
	}
	cfg.Institution.AccountType = strings.ToUpper(cfg.Institution.AccountType)

	return cfg, nil
}

// Validate reports the first setting that would stop the service from working.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if err := c.Institution.Validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case storage.BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s backend", storage.BackendGCS)
		}
	case storage.BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.Dates.AssumedYear < 1900 || c.Dates.AssumedYear > 9999 {
		return fmt.Errorf("dates.assumed_year %d is out of range", c.Dates.AssumedYear)
	}
	if c.Worker.Enabled {
		if c.Worker.Concurrency <= 0 || c.Worker.QueueSize <= 0 {
			return fmt.Errorf("worker.concurrency and worker.queue_size must be positive")
		}
		if c.Worker.PollInterval <= 0 {
			return fmt.Errorf("worker.poll_interval must be positive")
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
