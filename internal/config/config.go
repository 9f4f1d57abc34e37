// Package config resolves the qamerge runtime configuration from
// defaults, an optional YAML file, and QAMERGE_* environment
// overrides, applied in that order. The Anthropic API key is
// deliberately not part of the file; it comes from ANTHROPIC_API_KEY
// only.
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

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/qamerge/internal/ai"
	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/merge"
	"github.com/steveyegge/qamerge/internal/types"
)

const (
	// DefaultDirName is the per-dataset config directory
	DefaultDirName = ".qamerge"

	// DefaultFileName is the config file inside DefaultDirName
	DefaultFileName = "config.yaml"
)

// DefaultPath returns the config file path under dir
func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultDirName, DefaultFileName)
}

// Config holds the resolved runtime configuration
type Config struct {
	// ConfidenceThreshold is the minimum oracle confidence for an
	// accepted merge candidate
	// Default: 0.8, Range: 0.0-1.0
	ConfidenceThreshold float64

	// CombineFields are the columns folded from secondaries into the
	// primary on merge. Every entry must be a combinable content
	// column; identity and merge-bookkeeping columns are rejected.
	// Default: merge.DefaultCombineFields
	CombineFields []string

	// AuditLogPath is where merge audit entries are appended
	// Default: merge_audit.jsonl
	AuditLogPath string

	// Model is the Anthropic model for suggestions and analysis
	// Default: ai.ModelSonnet
	Model string

	// MaxTokens caps the response size per oracle call
	// Default: 4096, Range: 256-64000
	MaxTokens int

	// RequestTimeout bounds a single oracle attempt
	// Default: 60s, minimum 1s
	RequestTimeout time.Duration

	// MaxRetries is how many times a failed oracle call is retried
	// 0 = fail on the first error
	// Default: 3, Range: 0-10
	MaxRetries int

	// MaxConcurrentCalls bounds in-flight oracle calls
	// Default: 3, Range: 1-16
	MaxConcurrentCalls int

	// RequestsPerMinute rate-limits oracle calls client side
	// 0 = unlimited
	// Default: 0, Range: 0-600
	RequestsPerMinute int
}

// DefaultConfig returns the default configuration
//
// The defaults match the merge policy the QA team runs with: only
// strong-similarity candidates (0.8+) surface for review, and oracle
// traffic stays inside the default API rate tier.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		CombineFields:       append([]string(nil), merge.DefaultCombineFields...),
		AuditLogPath:        audit.DefaultFileName,
		Model:               ai.ModelSonnet,
		MaxTokens:           4096,
		RequestTimeout:      60 * time.Second,
		MaxRetries:          3,
		MaxConcurrentCalls:  3,
		RequestsPerMinute:   0,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.ConfidenceThreshold)
	}

	if len(c.CombineFields) == 0 {
		return fmt.Errorf("combine_fields cannot be empty")
	}
	var probe types.IssueRecord
	for _, field := range c.CombineFields {
		if _, ok := probe.Field(field); !ok {
			return fmt.Errorf("combine_fields contains non-combinable column %q", field)
		}
	}

	if strings.TrimSpace(c.AuditLogPath) == "" {
		return fmt.Errorf("audit_log_path cannot be empty")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.MaxTokens < 256 || c.MaxTokens > 64000 {
		return fmt.Errorf("max_tokens must be between 256 and 64000 (got %d)", c.MaxTokens)
	}
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request_timeout must be at least 1s (got %s)", c.RequestTimeout)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 0 and 10 (got %d)", c.MaxRetries)
	}
	if c.MaxConcurrentCalls < 1 || c.MaxConcurrentCalls > 16 {
		return fmt.Errorf("max_concurrent_calls must be between 1 and 16 (got %d)", c.MaxConcurrentCalls)
	}
	if c.RequestsPerMinute < 0 || c.RequestsPerMinute > 600 {
		return fmt.Errorf("requests_per_minute must be between 0 and 600 (got %d)", c.RequestsPerMinute)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, CombineFields: %d, AuditLog: %s, Model: %s, "+
			"MaxTokens: %d, Timeout: %s, Retries: %d, Concurrency: %d, RPM: %d}",
		c.ConfidenceThreshold, len(c.CombineFields), c.AuditLogPath, c.Model,
		c.MaxTokens, c.RequestTimeout, c.MaxRetries, c.MaxConcurrentCalls,
		c.RequestsPerMinute,
	)
}

// OracleOptions maps the config onto oracle client options. The API
// key stays out: ai.NewClient reads ANTHROPIC_API_KEY itself.
func (c Config) OracleOptions() ai.Options {
	retry := ai.DefaultRetryConfig()
	retry.MaxRetries = c.MaxRetries
	retry.Timeout = c.RequestTimeout
	retry.MaxConcurrentCalls = c.MaxConcurrentCalls
	return ai.Options{
		Model:             c.Model,
		MaxTokens:         c.MaxTokens,
		Retry:             retry,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// ConfigFile is the YAML shape of the config file. Zero values mean
// "not set"; only set fields override the defaults.
type ConfigFile struct {
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`
	CombineFields       []string `yaml:"combine_fields,omitempty"`
	AuditLogPath        string   `yaml:"audit_log_path,omitempty"`
	Model               string   `yaml:"model,omitempty"`
	MaxTokens           int      `yaml:"max_tokens,omitempty"`
	RequestTimeout      string   `yaml:"request_timeout,omitempty"` // e.g. "60s", "2m"
	MaxRetries          *int     `yaml:"max_retries,omitempty"`
	MaxConcurrentCalls  int      `yaml:"max_concurrent_calls,omitempty"`
	RequestsPerMinute   int      `yaml:"requests_per_minute,omitempty"`
}

// apply overlays the file's set fields onto cfg
func (f *ConfigFile) apply(cfg *Config) error {
	if f.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *f.ConfidenceThreshold
	}
	if len(f.CombineFields) > 0 {
		cfg.CombineFields = append([]string(nil), f.CombineFields...)
	}
	if f.AuditLogPath != "" {
		cfg.AuditLogPath = f.AuditLogPath
	}
	if f.Model != "" {
		cfg.Model = f.Model
	}
	if f.MaxTokens != 0 {
		cfg.MaxTokens = f.MaxTokens
	}
	if f.RequestTimeout != "" {
		d, err := time.ParseDuration(f.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", f.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if f.MaxRetries != nil {
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.MaxConcurrentCalls != 0 {
		cfg.MaxConcurrentCalls = f.MaxConcurrentCalls
	}
	if f.RequestsPerMinute != 0 {
		cfg.RequestsPerMinute = f.RequestsPerMinute
	}
	return nil
}

// Load resolves the configuration: defaults, then the config file at
// path if one exists, then environment overrides, then validation. A
// missing file is not an error; a present but unreadable or invalid
// one is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("reading config file: %w", err)
	default:
		var file ConfigFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := file.apply(&cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays QAMERGE_* environment variables
//
// Environment variables:
//   - QAMERGE_CONFIDENCE_THRESHOLD: Minimum confidence for accepted candidates (default: 0.8)
//   - QAMERGE_AUDIT_LOG: Audit log path (default: merge_audit.jsonl)
//   - QAMERGE_MODEL: Anthropic model id
//   - QAMERGE_MAX_TOKENS: Response token cap (default: 4096)
//   - QAMERGE_REQUEST_TIMEOUT: Per-attempt timeout, e.g. "60s" (default: 60s)
//   - QAMERGE_MAX_RETRIES: Retries per oracle call (default: 3)
//   - QAMERGE_MAX_CONCURRENT_CALLS: In-flight oracle call cap (default: 3)
//   - QAMERGE_REQUESTS_PER_MINUTE: Client-side rate limit, 0 for unlimited (default: 0)
func applyEnv(cfg *Config) error {
	if err := parseEnvFloat("QAMERGE_CONFIDENCE_THRESHOLD", &cfg.ConfidenceThreshold); err != nil {
		return err
	}
	if err := parseEnvString("QAMERGE_AUDIT_LOG", &cfg.AuditLogPath); err != nil {
		return err
	}
	if err := parseEnvString("QAMERGE_MODEL", &cfg.Model); err != nil {
		return err
	}
	if err := parseEnvInt("QAMERGE_MAX_TOKENS", &cfg.MaxTokens); err != nil {
		return err
	}
	if err := parseEnvDuration("QAMERGE_REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := parseEnvInt("QAMERGE_MAX_RETRIES", &cfg.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvInt("QAMERGE_MAX_CONCURRENT_CALLS", &cfg.MaxConcurrentCalls); err != nil {
		return err
	}
	if err := parseEnvInt("QAMERGE_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute); err != nil {
		return err
	}
	return nil
}

// ExampleConfigFile is what qamerge init writes. Everything is
// commented out so the file documents the knobs without pinning any.
const ExampleConfigFile = `# qamerge configuration
#
# Values here override the built-in defaults. Environment variables
# (QAMERGE_*) override both. The Anthropic API key is read from
# ANTHROPIC_API_KEY and never belongs in this file.

# Minimum oracle confidence for an accepted merge candidate (0.0-1.0).
#confidence_threshold: 0.8

# Columns folded from secondaries into the primary on merge.
#combine_fields:
#  - "Input Prompt"
#  - "Failure Rationale"
#  - "Final Weighted Score (1-3)"
#  - "Investigation Notes"
#  - "Comments"

# Merge audit log path, relative to the working directory.
#audit_log_path: merge_audit.jsonl

# Anthropic model for suggestions and analysis.
#model: claude-sonnet-4-5-20250929

# Response token cap per oracle call (256-64000).
#max_tokens: 4096

# Per-attempt oracle timeout.
#request_timeout: 60s

# Retries per failed oracle call (0-10).
#max_retries: 3

# In-flight oracle call cap (1-16).
#max_concurrent_calls: 3

# Client-side oracle rate limit; 0 disables it.
#requests_per_minute: 0
`

// WriteExample writes the example config file at path, creating the
// parent directory. Refuses to overwrite unless force is set.
func WriteExample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(ExampleConfigFile), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a time.Duration from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
