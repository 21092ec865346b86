package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/codesync/internal/logging"
)

// Secret wraps strings that should be redacted in logs and serialization.
// The raw value is only reachable through Value().
type Secret string

// String implements fmt.Stringer. Always returns a redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer so %#v stays redacted too.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the raw secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON redacts the secret in JSON output.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// MarshalText redacts the secret in text output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config is the root configuration for codesync.
type Config struct {
	Backend BackendConfig  `koanf:"backend"`
	Sync    SyncConfig     `koanf:"sync"`
	Logging logging.Config `koanf:"logging"`
	Metrics MetricsConfig  `koanf:"metrics"`
}

// BackendConfig describes the remote indexing service.
type BackendConfig struct {
	// Host is the base URL of the backend, e.g. https://app.example.com.
	Host string `koanf:"host"`

	// ProjectID scopes codebases to a backend project.
	ProjectID string `koanf:"project_id"`

	// APIKey is the bearer token for all backend calls.
	APIKey Secret `koanf:"api_key"`
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// Workspaces are the workspace root directories to keep synchronized.
	Workspaces []string `koanf:"workspaces"`

	// IgnorePatterns are global gitignore-style patterns applied to every
	// workspace in addition to the built-in exclusions.
	IgnorePatterns []string `koanf:"ignore_patterns"`

	// DirCacheTTL bounds the age of cached directory listings.
	DirCacheTTL time.Duration `koanf:"dir_cache_ttl"`

	// Throttle is the minimum interval between unforced diff checks
	// for an unchanged branch.
	Throttle time.Duration `koanf:"throttle"`

	// Debounce collapses bursts of version-control events.
	Debounce time.Duration `koanf:"debounce"`

	// WalkConcurrency caps concurrent entry processing per directory.
	WalkConcurrency int `koanf:"walk_concurrency"`

	// UploadTimeout bounds a single artifact upload.
	UploadTimeout time.Duration `koanf:"upload_timeout"`

	// UploadRateLimit is the maximum uploads per UploadRateInterval.
	UploadRateLimit int `koanf:"upload_rate_limit"`

	// UploadRateInterval is the window UploadRateLimit applies to.
	UploadRateInterval time.Duration `koanf:"upload_rate_interval"`

	// MaxUploadAttempts is the per-file attempt cap before the file is
	// dropped for the rest of the cycle.
	MaxUploadAttempts int `koanf:"max_upload_attempts"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Backend.Host == "" {
		return fmt.Errorf("backend.host is required")
	}
	if c.Backend.ProjectID == "" {
		return fmt.Errorf("backend.project_id is required")
	}
	if !c.Backend.APIKey.IsSet() {
		return fmt.Errorf("backend.api_key is required")
	}
	if c.Sync.WalkConcurrency < 1 {
		return fmt.Errorf("sync.walk_concurrency must be at least 1")
	}
	if c.Sync.MaxUploadAttempts < 1 {
		return fmt.Errorf("sync.max_upload_attempts must be at least 1")
	}
	if c.Sync.UploadRateLimit < 1 {
		return fmt.Errorf("sync.upload_rate_limit must be at least 1")
	}
	return nil
}
