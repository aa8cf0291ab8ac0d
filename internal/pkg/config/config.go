package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use "__",
// e.g. MEDSIM_SERVER__PORT.
const EnvPrefix = "MEDSIM_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	LLM       LLMConfig       `koanf:"llm"`
	Agents    AgentsConfig    `koanf:"agents"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Memory    MemoryConfig    `koanf:"memory"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // sqlite, postgres, memory
	Database DatabaseConfig `koanf:"database"`
}

// DatabaseConfig is the generic database configuration supporting multiple dialects.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres; defaults to storage.type
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type AuthConfig struct {
	SecretKey string        `koanf:"secret_key"`
	Algorithm string        `koanf:"algorithm"` // HS256, HS384, HS512
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // groq, openai, anthropic
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

type AgentsConfig struct {
	HistoryRuns int           `koanf:"history_runs"`
	MemoryLimit int           `koanf:"memory_limit"`
	Timeout     time.Duration `koanf:"timeout"` // Zero means no per-call timeout
	Retry       RetryConfig   `koanf:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"` // 1 disables retry
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
}

type KnowledgeConfig struct {
	Path           string `koanf:"path"`
	ChunkTokens    int    `koanf:"chunk_tokens"`
	ChunkOverlap   int    `koanf:"chunk_overlap"`
	TopK           int    `koanf:"top_k"`
	Embedder       string `koanf:"embedder"` // gemini, hash; empty picks gemini when a key is set
	GoogleAPIKey   string `koanf:"google_api_key"`
	EmbeddingModel string `koanf:"embedding_model"`
}

type MemoryConfig struct {
	Backend         string        `koanf:"backend"` // sql, redis
	Redis           RedisConfig   `koanf:"redis"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type RedisConfig struct {
	URL       string        `koanf:"url"`
	KeyPrefix string        `koanf:"key_prefix"`
	TTL       time.Duration `koanf:"ttl"`
}

type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Tracing     bool   `koanf:"tracing"`
	Metrics     bool   `koanf:"metrics"`
}

var defaults = map[string]any{
	"server.port":                  8080,
	"server.request_timeout":       "120s",
	"storage.type":                 "sqlite",
	"storage.database.dsn":         "file:data/diagnosis.db",
	"auth.secret_key":              "${SECRET_KEY}",
	"auth.algorithm":               "HS256",
	"auth.token_ttl":               "60m",
	"llm.provider":                 "groq",
	"llm.model":                    "qwen/qwen3-32b",
	"llm.api_key":                  "${GROQ_API_KEY}",
	"llm.max_tokens":               2048,
	"llm.temperature":              0.2,
	"agents.history_runs":          3,
	"agents.memory_limit":          10,
	"agents.timeout":               "0s",
	"agents.retry.max_attempts":    1,
	"agents.retry.initial_backoff": "500ms",
	"agents.retry.max_backoff":     "10s",
	"knowledge.path":               "data/pdfs",
	"knowledge.chunk_tokens":       512,
	"knowledge.chunk_overlap":      64,
	"knowledge.top_k":              5,
	"knowledge.google_api_key":     "${GOOGLE_API_KEY}",
	"knowledge.embedding_model":    "text-embedding-004",
	"memory.backend":               "sql",
	"memory.redis.key_prefix":      "diagnosis:memory",
	"memory.cleanup_interval":      "24h",
	"telemetry.service_name":       "diagnosis-gateway",
	"telemetry.metrics":            true,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (missing file is OK), then applies
// MEDSIM_ environment overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets and connection strings
	cfg.Auth.SecretKey = substituteEnvVars(cfg.Auth.SecretKey)
	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = substituteEnvVars(cfg.LLM.BaseURL)
	cfg.Knowledge.GoogleAPIKey = substituteEnvVars(cfg.Knowledge.GoogleAPIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)
	cfg.Memory.Redis.URL = substituteEnvVars(cfg.Memory.Redis.URL)

	if cfg.Storage.Database.Driver == "" && cfg.Storage.Type != "memory" {
		cfg.Storage.Database.Driver = cfg.Storage.Type
	}

	if cfg.Knowledge.Embedder == "" {
		cfg.Knowledge.Embedder = "hash"
		if cfg.Knowledge.GoogleAPIKey != "" {
			cfg.Knowledge.Embedder = "gemini"
		}
	}

	return &cfg, nil
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, fmt.Errorf("auth.secret_key is required (set SECRET_KEY)"))
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("auth.algorithm %q is not supported", c.Auth.Algorithm))
	}
	switch c.Storage.Type {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not supported", c.Storage.Type))
	}
	switch c.LLM.Provider {
	case "groq", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch c.Memory.Backend {
	case "sql":
	case "redis":
		if c.Memory.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("memory.redis.url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("memory.backend %q is not supported", c.Memory.Backend))
	}
	switch c.Knowledge.Embedder {
	case "gemini":
		if c.Knowledge.GoogleAPIKey == "" {
			errs = append(errs, fmt.Errorf("knowledge.google_api_key is required for the gemini embedder"))
		}
	case "hash":
	default:
		errs = append(errs, fmt.Errorf("knowledge.embedder %q is not supported", c.Knowledge.Embedder))
	}
	if c.Knowledge.ChunkTokens <= 0 || c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkTokens {
		errs = append(errs, fmt.Errorf("knowledge.chunk_overlap must be in [0, chunk_tokens)"))
	}
	if c.Memory.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("memory.cleanup_interval must be positive"))
	}

	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
