package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ligustah/pfetch/internal/progress"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the pfetch CLI.
type Config struct {
	URL              string     `yaml:"url"`
	Output           string     `yaml:"output"`
	Workers          int        `yaml:"workers"`
	ChunkSize        int64      `yaml:"chunk_size"`
	Progress         bool       `yaml:"progress"`
	Preallocate      bool       `yaml:"preallocate"`
	CheckpointBucket string     `yaml:"checkpoint_bucket"`
	LogLevel         string     `yaml:"log_level"`
	HTTP             HTTPConfig `yaml:"http"`
}

// HTTPConfig defines transport settings.
type HTTPConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:   8,
		ChunkSize: 32 * 1024, // 32KiB read buffer
		LogLevel:  "info",
		HTTP: HTTPConfig{
			Timeout:             30 * time.Second,
			MaxIdleConnsPerHost: 100,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	URL              string         `yaml:"url"`
	Output           string         `yaml:"output"`
	Workers          int            `yaml:"workers"`
	ChunkSize        string         `yaml:"chunk_size"`
	Progress         bool           `yaml:"progress"`
	Preallocate      bool           `yaml:"preallocate"`
	CheckpointBucket string         `yaml:"checkpoint_bucket"`
	LogLevel         string         `yaml:"log_level"`
	HTTP             yamlHTTPConfig `yaml:"http"`
}

type yamlHTTPConfig struct {
	Timeout             string `yaml:"timeout"`
	MaxIdleConnsPerHost int    `yaml:"max_idle_conns_per_host"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	cfg.Progress = yc.Progress
	cfg.Preallocate = yc.Preallocate
	if yc.CheckpointBucket != "" {
		cfg.CheckpointBucket = yc.CheckpointBucket
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.HTTP.Timeout != "" {
		d, err := time.ParseDuration(yc.HTTP.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.timeout: %w", err)
		}
		cfg.HTTP.Timeout = d
	}
	if yc.HTTP.MaxIdleConnsPerHost != 0 {
		cfg.HTTP.MaxIdleConnsPerHost = yc.HTTP.MaxIdleConnsPerHost
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the PFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PFETCH_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("PFETCH_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("PFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("PFETCH_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse PFETCH_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("PFETCH_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("PFETCH_PREALLOCATE"); v != "" {
		c.Preallocate = v == "true" || v == "1"
	}
	if v := os.Getenv("PFETCH_CHECKPOINT_BUCKET"); v != "" {
		c.CheckpointBucket = v
	}
	if v := os.Getenv("PFETCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PFETCH_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse PFETCH_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if v := os.Getenv("PFETCH_HTTP_MAX_IDLE_CONNS_PER_HOST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PFETCH_HTTP_MAX_IDLE_CONNS_PER_HOST: %w", err)
		}
		c.HTTP.MaxIdleConnsPerHost = n
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.Output == "" {
		return errors.New("config: output is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.ChunkSize > 1<<30 {
		return errors.New("config: chunk_size must not exceed 1GiB")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if c.HTTP.MaxIdleConnsPerHost < 0 {
		return errors.New("config: http.max_idle_conns_per_host must not be negative")
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config: log_level: %w", err)
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Preallocate {
		c.Preallocate = override.Preallocate
	}
	if override.CheckpointBucket != "" {
		c.CheckpointBucket = override.CheckpointBucket
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.MaxIdleConnsPerHost != 0 {
		c.HTTP.MaxIdleConnsPerHost = override.HTTP.MaxIdleConnsPerHost
	}
	return c
}
