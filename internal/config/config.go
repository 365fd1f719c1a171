package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the shopsync service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Sync      SyncConfig      `yaml:"sync"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds read-side API authentication settings.
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// WebhookConfig holds webhook intake settings.
type WebhookConfig struct {
	Secret           string `yaml:"secret"`
	SignatureHeader  string `yaml:"signature_header"`
	DeliveryIDHeader string `yaml:"delivery_id_header"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	DedupWindowSec   int    `yaml:"dedup_window_sec"`
	DedupMaxEntries  int    `yaml:"dedup_max_entries"`
}

// SyncConfig holds the sync engine settings.
type SyncConfig struct {
	MaxAttempts         int  `yaml:"max_attempts"`
	BackoffBaseMs       int  `yaml:"backoff_base_ms"`
	BackoffCeilingMs    int  `yaml:"backoff_ceiling_ms"`
	TrackTouches        bool `yaml:"track_touches"`
	ReflectionRetention int  `yaml:"reflection_retention"`
	DeadLetterCap       int  `yaml:"dead_letter_cap"`
	LaneQueueSize       int  `yaml:"lane_queue_size"`
	LaneIdleSec         int  `yaml:"lane_idle_sec"`
}

// IndexConfig holds HNSW index and query settings.
type IndexConfig struct {
	HNSWM              int `yaml:"hnsw_m"`
	HNSWEFConstruct    int `yaml:"hnsw_ef_construction"`
	DefaultSearchLimit int `yaml:"default_search_limit"`
	MaxSearchLimit     int `yaml:"max_search_limit"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // label for logs/metrics (default: openai)
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 = cache forever
}

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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.ShutdownSec = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Webhook.SignatureHeader == "" {
		c.Webhook.SignatureHeader = "X-Shopify-Hmac-Sha256"
	}
	if c.Webhook.DeliveryIDHeader == "" {
		c.Webhook.DeliveryIDHeader = "X-Shopify-Webhook-Id"
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		c.Webhook.MaxBodyBytes = 1 << 20
	}
	if c.Webhook.DedupWindowSec <= 0 {
		c.Webhook.DedupWindowSec = 24 * 60 * 60
	}
	if c.Webhook.DedupMaxEntries <= 0 {
		c.Webhook.DedupMaxEntries = 100_000
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = 5
	}
	if c.Sync.BackoffBaseMs <= 0 {
		c.Sync.BackoffBaseMs = 500
	}
	if c.Sync.BackoffCeilingMs <= 0 {
		c.Sync.BackoffCeilingMs = 30_000
	}
	if c.Sync.ReflectionRetention <= 0 {
		c.Sync.ReflectionRetention = 1000
	}
	if c.Sync.DeadLetterCap <= 0 {
		c.Sync.DeadLetterCap = 1000
	}
	if c.Sync.LaneQueueSize <= 0 {
		c.Sync.LaneQueueSize = 64
	}
	if c.Sync.LaneIdleSec <= 0 {
		c.Sync.LaneIdleSec = 300
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.DefaultSearchLimit <= 0 {
		c.Index.DefaultSearchLimit = 10
	}
	if c.Index.MaxSearchLimit <= 0 {
		c.Index.MaxSearchLimit = 100
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Sync.MaxAttempts > 20 {
		return fmt.Errorf("sync.max_attempts must be at most 20, got %d", c.Sync.MaxAttempts)
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
