package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names accepted in the configuration.
const (
	DriverRedis  = "redis"
	DriverLedger = "ledger"
	DriverBleve  = "bleve"
	DriverHNSW   = "hnsw"

	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Config holds the docvault configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Redis       RedisConfig       `yaml:"redis"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Keyword     KeywordConfig     `yaml:"keyword"`
	Vector      VectorConfig      `yaml:"vector"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Auth        AuthConfig        `yaml:"auth"`
	Reindex     ReindexConfig     `yaml:"reindex"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. With no keys and no JWT secret
// authentication is disabled and every caller is root.
type AuthConfig struct {
	// APIKeys maps a static bearer key to a role: viewer, manager, root.
	APIKeys   map[string]string `yaml:"api_keys"`
	JWTSecret string            `yaml:"jwt_secret"`
	JWTIssuer string            `yaml:"jwt_issuer"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds the shared Redis connection used by every redis driver.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecordStoreConfig selects the canonical record store.
type RecordStoreConfig struct {
	Driver     string `yaml:"driver"` // redis, ledger (default: redis)
	LedgerPath string `yaml:"ledger_path"`
	// CASAttempts bounds compare-and-swap retries on the enumeration and records.
	CASAttempts int `yaml:"cas_attempts"`
}

// KeywordConfig selects the full-text backend.
type KeywordConfig struct {
	Driver    string `yaml:"driver"` // redis, bleve (default: redis)
	IndexName string `yaml:"index_name"`
	BlevePath string `yaml:"bleve_path"` // empty: in-memory
}

// VectorConfig selects the similarity backend.
type VectorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Driver          string `yaml:"driver"` // redis, hnsw (default: redis)
	IndexName       string `yaml:"index_name"`
	Dimensions      int    `yaml:"dimensions"` // 0: probe the embedder
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	HNSWPath        string `yaml:"hnsw_path"` // hnsw driver snapshot; empty: in-memory
}

// EmbeddingConfig holds the embedding provider and its cache and pool.
type EmbeddingConfig struct {
	Provider      string  `yaml:"provider"` // openai, static
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Dimensions    int     `yaml:"dimensions"`
	CacheTTLSec   int     `yaml:"cache_ttl_sec"` // 0: no expiry
	LRUSize       int     `yaml:"lru_size"`
	Workers       int     `yaml:"workers"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// CacheTTL returns the Redis embedding cache TTL.
func (e EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSec) * time.Second
}

// ReindexConfig holds sweep settings.
type ReindexConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
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
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.RecordStore.Driver == "" {
		c.RecordStore.Driver = DriverRedis
	}
	if c.RecordStore.CASAttempts <= 0 {
		c.RecordStore.CASAttempts = 16
	}
	if c.Keyword.Driver == "" {
		c.Keyword.Driver = DriverRedis
	}
	if c.Keyword.IndexName == "" {
		c.Keyword.IndexName = "docvault-kw"
	}
	if c.Vector.Driver == "" {
		c.Vector.Driver = DriverRedis
	}
	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "docvault-vec"
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderStatic
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.LRUSize <= 0 {
		c.Embedding.LRUSize = 1000
	}
	if c.Reindex.Concurrency <= 0 {
		c.Reindex.Concurrency = 8
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "docvault:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.RecordStore.Driver {
	case DriverRedis:
	case DriverLedger:
		if c.RecordStore.LedgerPath == "" {
			return fmt.Errorf("record_store.ledger_path is required for the ledger driver")
		}
	default:
		return fmt.Errorf("record_store.driver must be %q or %q, got %q", DriverRedis, DriverLedger, c.RecordStore.Driver)
	}

	switch c.Keyword.Driver {
	case DriverRedis, DriverBleve:
	default:
		return fmt.Errorf("keyword.driver must be %q or %q, got %q", DriverRedis, DriverBleve, c.Keyword.Driver)
	}

	if c.Vector.Enabled {
		switch c.Vector.Driver {
		case DriverRedis, DriverHNSW:
		default:
			return fmt.Errorf("vector.driver must be %q or %q, got %q", DriverRedis, DriverHNSW, c.Vector.Driver)
		}
		if c.Vector.Dimensions < 0 {
			return fmt.Errorf("vector.dimensions must not be negative")
		}
		switch c.Embedding.Provider {
		case ProviderStatic:
		case ProviderOpenAI:
			if c.Embedding.Model == "" {
				return fmt.Errorf("embedding.model is required for the openai provider")
			}
		default:
			return fmt.Errorf("embedding.provider must be %q or %q, got %q",
				ProviderOpenAI, ProviderStatic, c.Embedding.Provider)
		}
	}

	if c.UsesRedis() && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required when a redis driver is selected")
	}

	for key, role := range c.Auth.APIKeys {
		switch role {
		case "viewer", "manager", "root":
		default:
			return fmt.Errorf("auth.api_keys: key %q has unknown role %q", redact(key), role)
		}
	}
	return nil
}

// UsesRedis reports whether any component needs the Redis connection.
func (c *Config) UsesRedis() bool {
	return c.RecordStore.Driver == DriverRedis ||
		c.Keyword.Driver == DriverRedis ||
		(c.Vector.Enabled && c.Vector.Driver == DriverRedis)
}

func redact(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
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
