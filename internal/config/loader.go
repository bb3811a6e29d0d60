package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "psm.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PSM_PORT")
	setString(&cfg.Server.CORSOrigin, "PSM_CORS_ORIGIN")

	setString(&cfg.Logging.Level, "PSM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PSM_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PSM_LOG_ASYNC")

	// Store
	setString(&cfg.Store.Backend, "PSM_STORE_BACKEND")
	setString(&cfg.Store.DataDir, "PSM_DATA_DIR")
	setString(&cfg.Store.ConfigFile, "PSM_CONFIG_FILE")
	setString(&cfg.Store.RemoteURL, "PSM_REMOTE_URL")
	setDuration(&cfg.Store.Timeout, "PSM_STORE_TIMEOUT")

	// Cache
	setBool(&cfg.Cache.Enabled, "PSM_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "PSM_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "PSM_CACHE_TTL")
	setString(&cfg.Cache.L2Bucket, "PSM_CACHE_L2_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "PSM_NATS_SUBJECT")

	setInt(&cfg.Breaker.MaxFailures, "PSM_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PSM_BREAKER_TIMEOUT")

	setBool(&cfg.Watch.Enabled, "PSM_WATCH_ENABLED")
	setDuration(&cfg.Watch.Debounce, "PSM_WATCH_DEBOUNCE")

	setBool(&cfg.OTel.Enabled, "PSM_OTEL_ENABLED")
	setString(&cfg.OTel.Service, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case BackendLocal:
		if strings.TrimSpace(cfg.Store.DataDir) == "" {
			return errors.New("store.data_dir is required")
		}
		if strings.TrimSpace(cfg.Store.ConfigFile) == "" {
			return errors.New("store.config_file is required")
		}
	case BackendRemote:
		if cfg.Store.RemoteURL == "" {
			return errors.New("store.remote_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q", BackendLocal, BackendRemote)
	}
	if cfg.Store.Timeout <= 0 {
		return errors.New("store.timeout must be > 0")
	}
	if cfg.Cache.Enabled && cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
