package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/TestForge/internal/secrets"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "testforge.yaml"

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
	setString(&cfg.Server.Port, "TESTFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "TESTFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TESTFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TESTFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TESTFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TESTFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TESTFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.WorkStream, "TESTFORGE_NATS_WORK_STREAM")
	setString(&cfg.Logging.Level, "TESTFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TESTFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TESTFORGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "TESTFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TESTFORGE_BREAKER_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "TESTFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "TESTFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "TESTFORGE_CACHE_L2_TTL")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "TESTFORGE_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "TESTFORGE_OTEL_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "TESTFORGE_OTEL_INSECURE")

	// Auth and surfaces
	setBool(&cfg.Auth.Enabled, "TESTFORGE_AUTH_ENABLED")
	setBool(&cfg.RateLimit.Enabled, "TESTFORGE_RATELIMIT_ENABLED")
	setFloat64(&cfg.RateLimit.RPS, "TESTFORGE_RATELIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, "TESTFORGE_RATELIMIT_BURST")
	setBool(&cfg.MCP.Enabled, "TESTFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "TESTFORGE_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "TESTFORGE_MCP_API_KEY")
	setString(&cfg.A2A.BaseURL, "TESTFORGE_A2A_BASE_URL")
	setString(&cfg.Notifier.Kind, "TESTFORGE_NOTIFIER_KIND")

	// Providers
	setString(&cfg.Providers.Primary, "TESTFORGE_PROVIDER_PRIMARY")
	loadSecrets(cfg)

	// Routing
	setString(&cfg.Routing.DefaultAgent, "TESTFORGE_ROUTING_DEFAULT")

	// Verification
	setFloat64(&cfg.Verification.RecommendationThreshold, "TESTFORGE_VERIFY_THRESHOLD")

	// Worker
	setString(&cfg.Worker.Agent, "TESTFORGE_WORKER_AGENT")
	setInt(&cfg.Worker.Concurrency, "TESTFORGE_WORKER_CONCURRENCY")
	setDuration(&cfg.Worker.QueueWait, "TESTFORGE_WORKER_QUEUE_WAIT")

	// Decompose
	setString(&cfg.Decompose.Mode, "TESTFORGE_DECOMPOSE_MODE")
	setString(&cfg.Decompose.Model, "TESTFORGE_DECOMPOSE_MODEL")
	setInt(&cfg.Decompose.MaxTokens, "TESTFORGE_DECOMPOSE_MAX_TOKENS")
}

// loadSecrets overlays credentials from the secret vault onto cfg.
// Secrets follow the conventional env names so they never need to live in
// the YAML file; a set env value overrides YAML like any other env key.
func loadSecrets(cfg *Config) {
	vault, err := secrets.NewVault(secrets.DefaultEnvLoader())
	if err != nil {
		return
	}
	for i := range cfg.Providers.Configs {
		p := &cfg.Providers.Configs[i]
		switch p.Type {
		case "openai":
			if v := vault.Get(secrets.EnvOpenAIKey); v != "" {
				p.APIKey = v
			}
		case "anthropic":
			if v := vault.Get(secrets.EnvAnthropicKey); v != "" {
				p.APIKey = v
			}
		}
	}
	if v := vault.Get(secrets.EnvSlackWebhook); v != "" {
		cfg.Notifier.WebhookURL = v
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.NATS.WorkStream == "" {
		return errors.New("nats.work_stream is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Routing.DefaultAgent == "" {
		return errors.New("routing.default_agent is required")
	}
	if !cfg.Verification.Weights.Valid() {
		return errors.New("verification.weights must all be in (0, 1]")
	}
	if t := cfg.Verification.RecommendationThreshold; t <= 0 || t > 1 {
		return errors.New("verification.recommendation_threshold must be in (0, 1]")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst < 1) {
		return errors.New("rate_limit.rps must be positive and rate_limit.burst >= 1 when enabled")
	}
	if cfg.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be >= 1")
	}
	if cfg.Worker.QueueWait <= 0 {
		return errors.New("worker.queue_wait must be positive")
	}
	if m := cfg.Decompose.Mode; m != "catalog" && m != "llm" {
		return fmt.Errorf("decompose.mode must be catalog or llm, got %q", m)
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
