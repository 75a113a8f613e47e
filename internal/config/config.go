// Package config loads the searchlight configuration from per-environment
// YAML files with ${VAR} expansion.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the searchlight service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Semantic    SemanticConfig    `yaml:"semantic"`
	Search      SearchConfig      `yaml:"search"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds keyword-store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SemanticConfig holds the semantic (vector) backend settings. The backend is
// considered configured only when an API key is present.
type SemanticConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	TimeoutSec int           `yaml:"timeout_sec"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the embedding hop.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	IntervalSec  int     `yaml:"interval_sec"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// Enabled reports whether the semantic backend is configured.
func (c SemanticConfig) Enabled() bool {
	return c.APIKey != ""
}

// WeightsConfig holds the four rank-fusion weights. They must sum to 1.0.
type WeightsConfig struct {
	Keyword    float64 `yaml:"keyword"`
	Semantic   float64 `yaml:"semantic"`
	Recency    float64 `yaml:"recency"`
	Popularity float64 `yaml:"popularity"`
}

// SearchConfig holds orchestrator settings.
type SearchConfig struct {
	Weights             WeightsConfig `yaml:"weights"`
	SuggestionThreshold int           `yaml:"suggestion_threshold"`
	CacheTTLSec         int           `yaml:"cache_ttl_sec"` // 0 disables the response cache
}

// SuggestionsConfig holds autocomplete store settings.
type SuggestionsConfig struct {
	MaxAgeDays    int    `yaml:"max_age_days"`
	MinFrequency  int64  `yaml:"min_frequency"`
	PruneSchedule string `yaml:"prune_schedule"`
}

// IndexingConfig holds indexing pipeline settings.
type IndexingConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// AnalyticsConfig holds query-log retention settings.
type AnalyticsConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// MaintenanceConfig holds background sweep settings.
type MaintenanceConfig struct {
	ReconcileSchedule string `yaml:"reconcile_schedule"`
	ReconcileBatch    int    `yaml:"reconcile_batch"`
}

// weightTolerance is the allowed drift of the fusion weight sum from 1.0.
const weightTolerance = 0.01

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Semantic.TimeoutSec <= 0 {
		c.Semantic.TimeoutSec = 10
	}
	if c.Semantic.Dimensions <= 0 {
		c.Semantic.Dimensions = 1536
	}
	if c.Semantic.Breaker.MaxRequests == 0 {
		c.Semantic.Breaker.MaxRequests = 3
	}
	if c.Semantic.Breaker.IntervalSec <= 0 {
		c.Semantic.Breaker.IntervalSec = 60
	}
	if c.Semantic.Breaker.TimeoutSec <= 0 {
		c.Semantic.Breaker.TimeoutSec = 30
	}
	if c.Semantic.Breaker.FailureRatio <= 0 {
		c.Semantic.Breaker.FailureRatio = 0.6
	}
	w := &c.Search.Weights
	if w.Keyword == 0 && w.Semantic == 0 && w.Recency == 0 && w.Popularity == 0 {
		w.Keyword = 0.4
		w.Semantic = 0.3
		w.Recency = 0.15
		w.Popularity = 0.15
	}
	if c.Search.SuggestionThreshold <= 0 {
		c.Search.SuggestionThreshold = 3
	}
	if c.Suggestions.MaxAgeDays <= 0 {
		c.Suggestions.MaxAgeDays = 90
	}
	if c.Suggestions.MinFrequency <= 0 {
		c.Suggestions.MinFrequency = 5
	}
	if c.Suggestions.PruneSchedule == "" {
		c.Suggestions.PruneSchedule = "0 3 * * *"
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 100
	}
	if c.Analytics.RetentionDays <= 0 {
		c.Analytics.RetentionDays = 30
	}
	if c.Maintenance.ReconcileSchedule == "" {
		c.Maintenance.ReconcileSchedule = "@hourly"
	}
	if c.Maintenance.ReconcileBatch <= 0 {
		c.Maintenance.ReconcileBatch = 200
	}
}

// Validate checks the configuration for correctness. Weight misconfiguration
// is fatal here, at start-up, and never re-checked per request.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}

	w := c.Search.Weights
	sum := w.Keyword + w.Semantic + w.Recency + w.Popularity
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf(
			"search.weights must sum to 1.0 (±%.2f), got %.4f (keyword=%.2f semantic=%.2f recency=%.2f popularity=%.2f)",
			weightTolerance, sum, w.Keyword, w.Semantic, w.Recency, w.Popularity,
		)
	}
	for name, v := range map[string]float64{
		"keyword": w.Keyword, "semantic": w.Semantic,
		"recency": w.Recency, "popularity": w.Popularity,
	} {
		if v < 0 {
			return fmt.Errorf("search.weights.%s must not be negative, got %.2f", name, v)
		}
	}

	if c.Semantic.Enabled() && c.Semantic.Model == "" {
		return fmt.Errorf("semantic.model is required when semantic.api_key is set")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
