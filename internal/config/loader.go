package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "konsil.yaml"

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
	setString(&cfg.Server.Port, "KONSIL_PORT")
	setString(&cfg.Server.CORSOrigin, "KONSIL_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "KONSIL_REQUEST_TIMEOUT")
	setString(&cfg.Logging.Level, "KONSIL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "KONSIL_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "KONSIL_LOG_ASYNC")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "KONSIL_MODEL")
	setInt(&cfg.LiteLLM.MaxTokens, "KONSIL_MODEL_MAX_TOKENS")
	setInt(&cfg.Breaker.MaxFailures, "KONSIL_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "KONSIL_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "KONSIL_RATE_RPS")
	setInt(&cfg.Rate.Burst, "KONSIL_RATE_BURST")

	// Engine
	setDuration(&cfg.Engine.DefaultRoleTimeout, "KONSIL_ROLE_TIMEOUT")
	setDuration(&cfg.Engine.MaxRoleTimeout, "KONSIL_ROLE_TIMEOUT_MAX")
	setInt(&cfg.Engine.MinTaskLength, "KONSIL_MIN_TASK_LENGTH")
	setInt(&cfg.Engine.FactLimit, "KONSIL_FACT_LIMIT")

	// Consensus
	setFloat64(&cfg.Consensus.Green, "KONSIL_CONSENSUS_GREEN")
	setFloat64(&cfg.Consensus.Amber, "KONSIL_CONSENSUS_AMBER")
	setFloat64(&cfg.Consensus.ConsensusRatio, "KONSIL_CONSENSUS_RATIO")
	setFloat64(&cfg.Consensus.ConfidenceFloor, "KONSIL_CONFIDENCE_FLOOR")
	setFloat64(&cfg.Consensus.CostDeviation, "KONSIL_COST_DEVIATION")

	// Cache
	setBool(&cfg.Cache.Enabled, "KONSIL_CACHE_ENABLED")
	setInt64(&cfg.Cache.MaxSizeMB, "KONSIL_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "KONSIL_CACHE_TTL")

	// Knowledge
	setString(&cfg.Knowledge.Driver, "KONSIL_KNOWLEDGE_DRIVER")
	setString(&cfg.Knowledge.SQLitePath, "KONSIL_KNOWLEDGE_SQLITE_PATH")
	setString(&cfg.Knowledge.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Knowledge.Postgres.MaxConns, "KONSIL_PG_MAX_CONNS")
	setInt32(&cfg.Knowledge.Postgres.MinConns, "KONSIL_PG_MIN_CONNS")
	setDuration(&cfg.Knowledge.Postgres.MaxConnLifetime, "KONSIL_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Knowledge.Postgres.MaxConnIdleTime, "KONSIL_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Knowledge.Postgres.HealthCheck, "KONSIL_PG_HEALTH_CHECK")

	// NATS
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Embedded, "KONSIL_NATS_EMBEDDED")
	setString(&cfg.NATS.StoreDir, "KONSIL_NATS_STORE_DIR")

	// Telemetry
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "KONSIL_OTEL_INSECURE")

	// Auth
	setString(&cfg.Auth.APIKey, "KONSIL_API_KEY")

	// Roles
	setString(&cfg.Roles.CatalogPath, "KONSIL_ROLES_CATALOG")
}

// validate checks that required fields are set and thresholds are coherent.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Engine.DefaultRoleTimeout <= 0 {
		return errors.New("engine.default_role_timeout must be > 0")
	}
	if cfg.Engine.MaxRoleTimeout < cfg.Engine.DefaultRoleTimeout {
		return errors.New("engine.max_role_timeout must be >= engine.default_role_timeout")
	}
	if cfg.Engine.MinTaskLength < 1 {
		return errors.New("engine.min_task_length must be >= 1")
	}
	if cfg.Consensus.Green <= cfg.Consensus.Amber {
		return errors.New("consensus.green must be > consensus.amber")
	}
	if cfg.Consensus.Amber <= 0 || cfg.Consensus.Green > 1 {
		return errors.New("consensus thresholds must lie in (0, 1]")
	}
	if cfg.Consensus.ConsensusRatio <= 0 || cfg.Consensus.ConsensusRatio > 1 {
		return errors.New("consensus.consensus_ratio must lie in (0, 1]")
	}
	if cfg.Consensus.ConfidenceFloor < 0 || cfg.Consensus.ConfidenceFloor > 1 {
		return errors.New("consensus.confidence_floor must lie in [0, 1]")
	}
	if cfg.Consensus.CostDeviation <= 0 {
		return errors.New("consensus.cost_deviation must be > 0")
	}
	switch cfg.Knowledge.Driver {
	case "postgres":
		if cfg.Knowledge.Postgres.DSN == "" {
			return errors.New("knowledge.postgres.dsn is required for the postgres driver")
		}
		if cfg.Knowledge.Postgres.MaxConns < 1 {
			return errors.New("knowledge.postgres.max_conns must be >= 1")
		}
	case "sqlite":
		if cfg.Knowledge.SQLitePath == "" {
			return errors.New("knowledge.sqlite_path is required for the sqlite driver")
		}
	case "none", "":
	default:
		return fmt.Errorf("knowledge.driver must be postgres, sqlite or none, got %q", cfg.Knowledge.Driver)
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

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
