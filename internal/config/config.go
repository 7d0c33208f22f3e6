package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Drivers accepted in backend.driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
)

// Providers accepted in embedding.provider.
const (
	ProviderNone    = ""
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
)

// Config holds the kbase configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Backend   BackendConfig   `yaml:"backend"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Loader    LoaderConfig    `yaml:"loader"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// BackendConfig selects and tunes the VectorDB backend.
type BackendConfig struct {
	Driver     string `yaml:"driver"` // memory, sqlite, postgres, redis, valkey (default: memory)
	Collection string `yaml:"collection"`

	// sqlite file path or ":memory:", postgres connection string
	DSN string `yaml:"dsn"`

	// redis / valkey
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	FilterFields     []string `yaml:"filter_fields"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	Dimensions  int    `yaml:"dimensions"`
	DefaultMode string `yaml:"default_mode"` // vector, keyword, hybrid; empty picks per backend
	Upsert      *bool  `yaml:"upsert"`       // memory only; nil keeps the backend default
	AutoCreate  bool   `yaml:"auto_create"`
}

// EmbeddingConfig holds embedding settings. An empty provider stores
// documents without vectors.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"` // openai, ollama, hashing
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"`
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig enables the embedding cache. It needs a redis or valkey backend.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = never expire
}

// LoaderConfig holds knowledge loading settings.
type LoaderConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	BatchSize       int     `yaml:"batch_size"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"`
	FetchTimeoutSec int     `yaml:"fetch_timeout_sec"`
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
	return Parse(data)
}

// Parse decodes YAML, substituting ${VAR} references, then applies defaults
// and validates.
func Parse(data []byte) (Config, error) {
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 10 << 20
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverMemory
	}
	if c.Backend.Collection == "" {
		c.Backend.Collection = "documents"
	}
	if c.Backend.Driver == DriverSQLite && c.Backend.DSN == "" {
		c.Backend.DSN = "kbase.sqlite"
	}
	if c.Backend.KeyPrefix == "" {
		c.Backend.KeyPrefix = "kbase:"
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider == ProviderHashing {
		c.Embedding.Dimensions = 256
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case ProviderOpenAI:
			c.Embedding.Model = "text-embedding-3-small"
		case ProviderOllama:
			c.Embedding.Model = "nomic-embed-text"
		}
	}
	if c.Backend.Dimensions <= 0 {
		c.Backend.Dimensions = c.Embedding.Dimensions
	}
	if c.Loader.ChunkSize <= 0 {
		c.Loader.ChunkSize = 1000
	}
	if c.Loader.ChunkOverlap < 0 {
		c.Loader.ChunkOverlap = 0
	}
	if c.Loader.BatchSize <= 0 {
		c.Loader.BatchSize = 32
	}
	if c.Loader.RequestsPerSec <= 0 {
		c.Loader.RequestsPerSec = 2
	}
	if c.Loader.FetchTimeoutSec <= 0 {
		c.Loader.FetchTimeoutSec = 30
	}
}

var (
	drivers   = []string{DriverMemory, DriverSQLite, DriverPostgres, DriverRedis, DriverValkey}
	providers = []string{ProviderNone, ProviderHashing, ProviderOpenAI, ProviderOllama}
	modes     = []string{"", "vector", "keyword", "hybrid"}
)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	b := c.Backend
	if !slices.Contains(drivers, b.Driver) {
		return fmt.Errorf("backend.driver must be one of %s, got %q", strings.Join(drivers, ", "), b.Driver)
	}
	switch b.Driver {
	case DriverPostgres:
		if b.DSN == "" {
			return fmt.Errorf("backend.dsn is required for postgres")
		}
	case DriverRedis, DriverValkey:
		if len(b.Addrs) == 0 {
			return fmt.Errorf("backend.addrs is required for %s", b.Driver)
		}
	}
	if b.Upsert != nil && b.Driver != DriverMemory {
		return fmt.Errorf("backend.upsert is only configurable for memory, got driver %q", b.Driver)
	}
	if !slices.Contains(modes, b.DefaultMode) {
		return fmt.Errorf("backend.default_mode must be vector, keyword or hybrid, got %q", b.DefaultMode)
	}
	if b.Dimensions < 0 {
		return fmt.Errorf("backend.dimensions must not be negative, got %d", b.Dimensions)
	}

	e := c.Embedding
	if !slices.Contains(providers, e.Provider) {
		return fmt.Errorf("embedding.provider must be openai, ollama or hashing, got %q", e.Provider)
	}
	if e.Provider == ProviderOpenAI && e.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for openai")
	}
	if e.Cache.Enabled && b.Driver != DriverRedis && b.Driver != DriverValkey {
		return fmt.Errorf("embedding.cache needs a redis or valkey backend, got %q", b.Driver)
	}

	if c.Loader.ChunkOverlap >= c.Loader.ChunkSize {
		return fmt.Errorf("loader.chunk_overlap (%d) must be smaller than loader.chunk_size (%d)",
			c.Loader.ChunkOverlap, c.Loader.ChunkSize)
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
