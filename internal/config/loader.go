// Package config provides configuration loading for codesync.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (BACKEND_HOST, SYNC_THROTTLE, ...)
//  2. YAML config file (~/.config/codesync/config.yaml by default)
//  3. Hardcoded defaults
//
// Environment variables use underscore separators and are uppercased;
// the first underscore splits section from field:
//
//	BACKEND_HOST        -> backend.host
//	SYNC_DIR_CACHE_TTL  -> sync.dir_cache_ttl
//	METRICS_ADDR        -> metrics.addr
//
// The config file must be owner-readable only (0600 or 0400); files with
// weaker permissions are rejected.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "codesync", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps environment variable names to config keys.
// The first underscore separates the section from the field name.
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// ConfigDir returns the codesync config directory, creating it with
// owner-only permissions if needed.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "codesync")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return dir, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has a different permission model; skip the check there.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Sync.DirCacheTTL == 0 {
		cfg.Sync.DirCacheTTL = 30 * time.Second
	}
	if cfg.Sync.Throttle == 0 {
		cfg.Sync.Throttle = 10 * time.Minute
	}
	if cfg.Sync.Debounce == 0 {
		cfg.Sync.Debounce = 5 * time.Second
	}
	if cfg.Sync.WalkConcurrency == 0 {
		cfg.Sync.WalkConcurrency = 10
	}
	if cfg.Sync.UploadTimeout == 0 {
		cfg.Sync.UploadTimeout = 30 * time.Second
	}
	if cfg.Sync.UploadRateLimit == 0 {
		cfg.Sync.UploadRateLimit = 100
	}
	if cfg.Sync.UploadRateInterval == 0 {
		cfg.Sync.UploadRateInterval = time.Minute
	}
	if cfg.Sync.MaxUploadAttempts == 0 {
		cfg.Sync.MaxUploadAttempts = 3
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9137"
	}
}
