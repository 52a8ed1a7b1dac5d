package config

import "time"

// DefaultBaseURL is the public archive API root.
const DefaultBaseURL = "https://www.tng-project.org/api"

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         DefaultBaseURL,
			Timeout:         Duration(60 * time.Second),
			MaxResponseSize: ByteSize(4 * 1024 * 1024 * 1024), // 4GB
		},
		Cache: CacheConfig{
			Enabled:       false,
			Path:          "tng-meta.db",
			PruneInterval: Duration(time.Hour),
			Memory: MemoryCacheConfig{
				Enabled:    true,
				MaxBytes:   ByteSize(64 * 1024 * 1024), // 64MB
				MaxEntries: 4096,
			},
		},
		Mirror: MirrorConfig{
			Region: "us-east-1",
		},
		Gateway: GatewayConfig{
			HTTP: HTTPConfig{
				Enabled: true,
				Listen:  ":8080",
			},
			NATS: NATSConfig{
				Enabled:        false,
				URL:            "nats://localhost:4222",
				SubjectPrefix:  "tng",
				ConnectionName: "tng-gateway",
				MaxReconnects:  -1,
				ReconnectWait:  Duration(2 * time.Second),
			},
			NodeCacheSize: 1024,
		},
		Bulk: BulkConfig{
			Driver:   "sqlite",
			DSN:      "tng.db",
			Workers:  4,
			PageSize: 100,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Listen:  ":9090",
				Path:    "/metrics",
			},
			Health: HealthConfig{
				Enabled:       true,
				Listen:        ":8081",
				LivenessPath:  "/healthz",
				ReadinessPath: "/readyz",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stderr",
			},
		},
	}
}
