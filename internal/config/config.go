package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides api.api_key when set.
const APIKeyEnv = "TNG_API_KEY"

// ErrCredentialMissing is returned when no API key is configured.
var ErrCredentialMissing = errors.New("api key is not configured; set api.api_key or " + APIKeyEnv)

type Config struct {
	API           APIConfig           `yaml:"api"`
	Cache         CacheConfig         `yaml:"cache"`
	Mirror        MirrorConfig        `yaml:"mirror"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Bulk          BulkConfig          `yaml:"bulk"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type APIConfig struct {
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	Timeout         Duration `yaml:"timeout"`
	MaxResponseSize ByteSize `yaml:"max_response_size"`
}

type CacheConfig struct {
	Enabled       bool              `yaml:"enabled"`
	Path          string            `yaml:"path"`
	NoSync        bool              `yaml:"no_sync"`
	MaxAge        Duration          `yaml:"max_age"`
	PruneInterval Duration          `yaml:"prune_interval"`
	Memory        MemoryCacheConfig `yaml:"memory"`
}

// MemoryCacheConfig bounds the in-process document cache that sits in
// front of the on-disk one.
type MemoryCacheConfig struct {
	Enabled    bool     `yaml:"enabled"`
	MaxBytes   ByteSize `yaml:"max_bytes"`
	MaxEntries int      `yaml:"max_entries"`
}

type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	StorageClass    string `yaml:"storage_class"`
}

// Validate checks the settings an S3 client needs to reach the mirror.
func (m MirrorConfig) Validate() error {
	if m.Bucket == "" {
		return fmt.Errorf("mirror.bucket is required when the mirror is enabled")
	}
	if (m.AccessKeyID == "") != (m.SecretAccessKey == "") {
		return fmt.Errorf("mirror.access_key_id and mirror.secret_access_key must be set together")
	}
	if strings.Trim(m.Prefix, "/") != m.Prefix {
		return fmt.Errorf("mirror.prefix must not start or end with '/'")
	}
	return nil
}

type GatewayConfig struct {
	HTTP          HTTPConfig `yaml:"http"`
	NATS          NATSConfig `yaml:"nats"`
	NodeCacheSize int        `yaml:"node_cache_size"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type NATSConfig struct {
	Enabled         bool      `yaml:"enabled"`
	URL             string    `yaml:"url"`
	SubjectPrefix   string    `yaml:"subject_prefix"`
	CredentialsFile string    `yaml:"credentials_file"`
	NKeySeedFile    string    `yaml:"nkey_seed_file"`
	TLS             TLSConfig `yaml:"tls"`
	ConnectionName  string    `yaml:"connection_name"`
	MaxReconnects   int       `yaml:"max_reconnects"`
	ReconnectWait   Duration  `yaml:"reconnect_wait"`
}

type TLSConfig struct {
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type BulkConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Workers  int    `yaml:"workers"`
	PageSize int    `yaml:"page_size"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
	Logging LoggingConfig `yaml:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Listen        string `yaml:"listen"`
	LivenessPath  string `yaml:"liveness_path"`
	ReadinessPath string `yaml:"readiness_path"`
}

type LoggingConfig struct {
	Level     string          `yaml:"level"`
	Format    string          `yaml:"format"`
	Output    string          `yaml:"output"`
	Developer DeveloperConfig `yaml:"developer"`
}

// DeveloperConfig enables an additional debug-level log file per process.
type DeveloperConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OutputDirectory string `yaml:"output_directory"`
}

// Read parses the file at path over the defaults and applies environment
// overrides without validating the result.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// ReadOrDefault is Read, except that a missing file yields the defaults
// with environment overrides applied.
func ReadOrDefault(path string) (*Config, error) {
	cfg, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.API.APIKey = key
	}
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key: %w", ErrCredentialMissing)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when the cache is enabled")
	}

	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must be >= 0")
	}

	if c.Cache.Enabled && c.Cache.MaxAge > 0 && c.Cache.PruneInterval <= 0 {
		return fmt.Errorf("cache.prune_interval must be > 0 when cache.max_age is set")
	}

	if c.Cache.Memory.MaxBytes < 0 || c.Cache.Memory.MaxEntries < 0 {
		return fmt.Errorf("cache.memory limits must be >= 0")
	}

	if c.Mirror.Enabled {
		if err := c.Mirror.Validate(); err != nil {
			return err
		}
	}

	if c.Gateway.NATS.Enabled && c.Gateway.NATS.URL == "" {
		return fmt.Errorf("gateway.nats.url is required when the NATS gateway is enabled")
	}

	switch c.Bulk.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("bulk.driver must be sqlite or pgx, got %q", c.Bulk.Driver)
	}

	if c.Bulk.Workers <= 0 {
		return fmt.Errorf("bulk.workers must be > 0")
	}

	if c.Bulk.PageSize <= 0 {
		return fmt.Errorf("bulk.page_size must be > 0")
	}

	return nil
}

// Duration wraps time.Duration for YAML unmarshaling of strings like "5m", "24h".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ByteSize wraps int64 for YAML unmarshaling of strings like "256MB", "10GB".
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		// Try as integer
		var n int64
		if err2 := value.Decode(&n); err2 != nil {
			return err
		}
		*b = ByteSize(n)
		return nil
	}
	parsed, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

func parseByteSize(s string) (int64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty byte size")
	}

	var multiplier int64 = 1
	numStr := s

	switch {
	case len(s) >= 2 && s[len(s)-2:] == "KB":
		multiplier = 1024
		numStr = s[:len(s)-2]
	case len(s) >= 2 && s[len(s)-2:] == "MB":
		multiplier = 1024 * 1024
		numStr = s[:len(s)-2]
	case len(s) >= 2 && s[len(s)-2:] == "GB":
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case s[len(s)-1] == 'B':
		numStr = s[:len(s)-1]
	}

	var n int64
	_, err := fmt.Sscanf(numStr, "%d", &n)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return n * multiplier, nil
}
