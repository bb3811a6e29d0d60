// Package config provides hierarchical configuration loading for the
// prompt structure manager.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the psm service.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	Cache   Cache   `yaml:"cache"`
	NATS    NATS    `yaml:"nats"`
	Breaker Breaker `yaml:"breaker"`
	Watch   Watch   `yaml:"watch"`
	OTel    OTel    `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Store backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Store selects where prompt files live. The local backend keeps them in a
// directory; the remote backend talks to another server's /psm API.
type Store struct {
	Backend    string        `yaml:"backend"`     // "local" | "remote"
	DataDir    string        `yaml:"data_dir"`    // default save directory
	ConfigFile string        `yaml:"config_file"` // manager config.json
	RemoteURL  string        `yaml:"remote_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Cache holds the prompt document cache configuration.
type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	TTL         time.Duration `yaml:"ttl"`
	L2Bucket    string        `yaml:"l2_bucket"` // NATS KV bucket; used only when nats.url is set
}

// NATS holds NATS JetStream configuration. An empty URL disables NATS.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Watch holds the save directory watcher configuration.
type Watch struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// OTel holds OpenTelemetry configuration. Exporter endpoints use the
// standard OTEL_EXPORTER_OTLP_* variables.
type OTel struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "7861",
			CORSOrigin: "http://localhost:7860",
		},
		Logging: Logging{
			Level:   "info",
			Service: "psm",
		},
		Store: Store{
			Backend:    BackendLocal,
			DataDir:    "psm_data",
			ConfigFile: "config.json",
			Timeout:    10 * time.Second,
		},
		Cache: Cache{
			Enabled:     true,
			L1MaxSizeMB: 16,
			TTL:         10 * time.Minute,
			L2Bucket:    "PSM_PROMPTS",
		},
		NATS: NATS{
			Subject: "prompts.apply",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Watch: Watch{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		OTel: OTel{
			Service: "psm",
		},
	}
}
