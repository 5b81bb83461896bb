package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Input      InputConfig      `yaml:"input" json:"input"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Web        WebConfig        `yaml:"web" json:"web"`
	Mock       MockConfig       `yaml:"mock" json:"mock"`
}

// ClassifierConfig configures the remote classification service
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"` // full URL of POST /predict/
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`   // per-request bound
}

// InputConfig configures file acquisition
type InputConfig struct {
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"` // bytes
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug|info|warn|error
	Format string `yaml:"format" json:"format"` // json|console
	File   string `yaml:"file" json:"file"`     // used by the interactive UI
}

// WebConfig configures the local browser surface
type WebConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// MockConfig configures the stand-in classifier
type MockConfig struct {
	Addr        string  `yaml:"addr" json:"addr"`
	Probability float64 `yaml:"probability" json:"probability"` // negative derives a value per image
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			Endpoint: "http://localhost:8000/predict/",
			Timeout:  30 * time.Second,
		},
		Input: InputConfig{
			MaxFileSize: 10 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			File:   "deepdefender.log",
		},
		Web: WebConfig{
			Addr: "127.0.0.1:3000",
		},
		Mock: MockConfig{
			Addr:        "127.0.0.1:8000",
			Probability: -1,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateClassifierConfig(); err != nil {
		return err
	}
	if c.Input.MaxFileSize < 1 {
		return fmt.Errorf("max_file_size must be greater than 0")
	}
	if err := c.validateLogConfig(); err != nil {
		return err
	}
	if c.Mock.Probability > 1 {
		return fmt.Errorf("mock probability must not exceed 1")
	}
	return nil
}

func (c *Config) validateClassifierConfig() error {
	endpoint := strings.TrimSpace(c.Classifier.Endpoint)
	if endpoint == "" {
		return fmt.Errorf("classifier endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid classifier endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid classifier endpoint scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("classifier endpoint must include a host")
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogConfig() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Log.Level)
	}
	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be one of: json, console)", c.Log.Format)
	}
	return nil
}
