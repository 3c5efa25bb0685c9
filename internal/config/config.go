package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	KeyOpenAIAPIKey      = "OPENAI_API_KEY"
	KeyVectorStoreAPIKey = "VECTOR_STORE_API_KEY"

	DefaultEnvFile = ".env"
)

type Config struct {
	App       AppConfig
	Keys      APIKeys
	Ai        AIConfig
	Vector    VectorConfig
	Retrieval RetrievalConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	SessionSecret      string
	SessionTTL         time.Duration
	MaxUploadBytes     int
	NatsURL            string
}

// APIKeys holds the two credentials the process refuses to start without.
type APIKeys struct {
	OpenAI      string
	VectorStore string
}

type AIConfig struct {
	LLMProvider          string // "openai" or "ollama"
	LLMModel             string
	LLMTemperature       float64
	OpenAIBaseURL        string
	OllamaBaseURL        string
	EmbeddingProvider    string // "openai" or "ollama"
	EmbeddingModel       string
	EmbeddingDimensions  int
	EmbeddingBatchSize   int
	OllamaEmbeddingModel string
}

type VectorConfig struct {
	Store        string // "qdrant", "pgvector", "redis" or "memory"
	IndexName    string
	Metric       string
	QdrantURL    string
	DBConnection string
	RedisURL     string
}

type RetrievalConfig struct {
	TopK              int
	MemoryWindowTurns int
	CondenseQuestion  bool
}

type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
}

// ConfigurationError is fatal: the process must not serve anything after it.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error (%s): %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Path, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads KEY=VALUE pairs from path without touching the process
// environment. Values in the file win over the environment, which wins over
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "cannot read configuration file", Err: err}
	}

	src := source{file: values}

	cfg := &Config{
		App: AppConfig{
			Port:               src.get("APP_PORT", "3000"),
			Environment:        src.get("GO_ENV", "development"),
			LogFilePath:        src.get("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: src.get("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			SessionSecret:      src.get("SESSION_SECRET", uuid.NewString()),
			SessionTTL:         time.Duration(src.getInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
			MaxUploadBytes:     src.getInt("MAX_UPLOAD_MB", 50) * 1024 * 1024,
			NatsURL:            src.get("NATS_URL", ""),
		},
		Keys: APIKeys{
			OpenAI:      strings.TrimSpace(src.get(KeyOpenAIAPIKey, "")),
			VectorStore: strings.TrimSpace(src.get(KeyVectorStoreAPIKey, "")),
		},
		Ai: AIConfig{
			LLMProvider:          src.get("LLM_PROVIDER", "openai"),
			LLMModel:             src.get("LLM_MODEL", "gpt-3.5-turbo"),
			LLMTemperature:       src.getFloat("LLM_TEMPERATURE", 0.7),
			OpenAIBaseURL:        src.get("OPENAI_BASE_URL", ""),
			OllamaBaseURL:        src.get("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingProvider:    src.get("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:       src.get("EMBEDDING_MODEL", "text-embedding-ada-002"),
			EmbeddingDimensions:  src.getInt("EMBEDDING_DIMENSIONS", 1536),
			EmbeddingBatchSize:   src.getInt("EMBEDDING_BATCH_SIZE", 64),
			OllamaEmbeddingModel: src.get("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Vector: VectorConfig{
			Store:        src.get("VECTOR_STORE", "qdrant"),
			IndexName:    src.get("VECTOR_INDEX_NAME", "langchain-demo"),
			Metric:       src.get("VECTOR_METRIC", "cosine"),
			QdrantURL:    src.get("QDRANT_URL", "http://localhost:6333"),
			DBConnection: src.get("DB_CONNECTION_STRING", ""),
			RedisURL:     src.get("REDIS_URL", "redis://localhost:6379"),
		},
		Retrieval: RetrievalConfig{
			TopK:              src.getInt("RETRIEVAL_TOP_K", 4),
			MemoryWindowTurns: src.getInt("MEMORY_WINDOW_TURNS", 0),
			CondenseQuestion:  src.getBool("CONDENSE_QUESTION", true),
		},
		Retry: RetryConfig{
			MaxAttempts:     uint(src.getInt("RETRY_MAX_ATTEMPTS", 4)),
			InitialInterval: time.Duration(src.getInt("RETRY_INITIAL_INTERVAL_MS", 500)) * time.Millisecond,
			MaxInterval:     time.Duration(src.getInt("RETRY_MAX_INTERVAL_MS", 8000)) * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  src.getBool("OTEL_ENABLED", false),
			OtelEndpoint: src.get("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}

	if cfg.Keys.OpenAI == "" {
		return nil, &ConfigurationError{Path: path, Reason: KeyOpenAIAPIKey + " is not set"}
	}
	if cfg.Keys.VectorStore == "" {
		return nil, &ConfigurationError{Path: path, Reason: KeyVectorStoreAPIKey + " is not set"}
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

type source struct {
	file map[string]string
}

func (s source) get(key, fallback string) string {
	if value, ok := s.file[key]; ok {
		return value
	}
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func (s source) getInt(key string, fallback int) int {
	if value, err := strconv.Atoi(s.get(key, "")); err == nil {
		return value
	}
	return fallback
}

func (s source) getFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(s.get(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func (s source) getBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(s.get(key, "")); err == nil {
		return value
	}
	return fallback
}
