package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./.deepdefender.yaml",               // Project-specific config (highest priority)
	"~/.config/deepdefender/config.yaml", // User config
	"/etc/deepdefender/config.yaml",      // System config (lowest priority)
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEEPDEFENDER_"

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
	envFile     string
	getenv      func(string) string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
		envFile:     ".env",
		getenv:      os.Getenv,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables (a .env file fills in unset ones)
// 3. ./.deepdefender.yaml
// 4. ~/.config/deepdefender/config.yaml
// 5. /etc/deepdefender/config.yaml
// 6. Built-in defaults
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	config := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		for i := len(l.configPaths) - 1; i >= 0; i-- {
			expandedPath := expandPath(l.configPaths[i])
			if !fileExists(expandedPath) {
				continue
			}
			if err := l.loadFromFile(config, expandedPath); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", expandedPath, err)
			}
		}
	}

	if l.envFile != "" {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", l.envFile, err)
		}
	}

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated or comes from the fixed search list
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfigs(config, &fileConfig)
	return nil
}

func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		"CLASSIFIER_ENDPOINT": func(v string) error { config.Classifier.Endpoint = v; return nil },
		"CLASSIFIER_TIMEOUT":  func(v string) error { return parseDuration(v, &config.Classifier.Timeout) },
		"INPUT_MAX_FILE_SIZE": func(v string) error { return parseInt64(v, &config.Input.MaxFileSize) },
		"LOG_LEVEL":           func(v string) error { config.Log.Level = v; return nil },
		"LOG_FORMAT":          func(v string) error { config.Log.Format = v; return nil },
		"LOG_FILE":            func(v string) error { config.Log.File = v; return nil },
		"WEB_ADDR":            func(v string) error { config.Web.Addr = v; return nil },
		"MOCK_ADDR":           func(v string) error { config.Mock.Addr = v; return nil },
		"MOCK_PROBABILITY":    func(v string) error { return parseFloat(v, &config.Mock.Probability) },
	}

	for suffix, setter := range envMappings {
		envVar := EnvPrefix + suffix
		if value := l.getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}
	return nil
}

func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mergeConfigs merges source config into destination config.
// Only non-zero values from source overwrite destination.
func mergeConfigs(dst, src *Config) {
	if src.Classifier.Endpoint != "" {
		dst.Classifier.Endpoint = src.Classifier.Endpoint
	}
	if src.Classifier.Timeout != 0 {
		dst.Classifier.Timeout = src.Classifier.Timeout
	}
	if src.Input.MaxFileSize != 0 {
		dst.Input.MaxFileSize = src.Input.MaxFileSize
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}
	if src.Web.Addr != "" {
		dst.Web.Addr = src.Web.Addr
	}
	if src.Mock.Addr != "" {
		dst.Mock.Addr = src.Mock.Addr
	}
	if src.Mock.Probability != 0 {
		dst.Mock.Probability = src.Mock.Probability
	}
}

func parseInt64(s string, dst *int64) error {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
