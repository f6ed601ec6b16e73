package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageGCS   = "gcs"
	StorageLocal = "local"
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPPort string

	DatabaseDriver string
	DatabaseURL    string
	JWTSecret      string
	RedisURL       string

	LLMProvider         string
	EmbeddingDimensions int
	OpenAI              OpenAIConfig
	Gemini              GeminiConfig
	Ollama              OllamaConfig

	Storage StorageConfig
	Tuning  Tuning
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type GeminiConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type OllamaConfig struct {
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	Backend       string
	GCSBucket     string
	GCSPublicBase string
	LocalDir      string
	LocalBaseURL  string
}

// Tuning holds the pipeline knobs that may also come from the YAML file.
type Tuning struct {
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	EmbedBatchSize int           `yaml:"embed_batch_size"`
	EmbedPause     time.Duration `yaml:"embed_batch_pause"`
	RetrievalK     int           `yaml:"retrieval_k"`
	IngestTimeout  time.Duration `yaml:"ingest_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ChatModel      string        `yaml:"chat_model"`
	EmbedModel     string        `yaml:"embed_model"`
}

func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE and
// the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine, the environment is authoritative

	tuning := defaultTuning()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadTuningFile(path, &tuning); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:    getEnv("DATABASE_URL", "pdf_rag.db"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RedisURL:       getEnv("REDIS_URL", ""),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAI: OpenAIConfig{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			ChatModel:  getEnv("OPENAI_CHAT_MODEL", firstNonEmpty(tuning.ChatModel, "gpt-4o")),
			EmbedModel: getEnv("OPENAI_EMBED_MODEL", firstNonEmpty(tuning.EmbedModel, "text-embedding-3-small")),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			ChatModel:  getEnv("GEMINI_CHAT_MODEL", firstNonEmpty(tuning.ChatModel, "gemini-1.5-flash-latest")),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", firstNonEmpty(tuning.EmbedModel, "text-embedding-004")),
		},
		Ollama: OllamaConfig{
			ChatModel:  getEnv("OLLAMA_CHAT_MODEL", firstNonEmpty(tuning.ChatModel, "llama3.1")),
			EmbedModel: getEnv("OLLAMA_EMBED_MODEL", firstNonEmpty(tuning.EmbedModel, "nomic-embed-text")),
		},

		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			GCSBucket:     getEnv("GCS_BUCKET", ""),
			GCSPublicBase: getEnv("GCS_PUBLIC_BASE_URL", ""),
			LocalDir:      getEnv("LOCAL_STORAGE_DIR", "uploads"),
			LocalBaseURL:  getEnv("LOCAL_STORAGE_BASE_URL", "file://uploads"),
		},
	}

	tuning.ChunkSize = getEnvAsInt("CHUNK_SIZE", tuning.ChunkSize)
	tuning.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", tuning.ChunkOverlap)
	tuning.EmbedBatchSize = getEnvAsInt("EMBED_BATCH_SIZE", tuning.EmbedBatchSize)
	tuning.EmbedPause = getEnvAsDuration("EMBED_BATCH_PAUSE", tuning.EmbedPause)
	tuning.RetrievalK = getEnvAsInt("RETRIEVAL_K", tuning.RetrievalK)
	tuning.IngestTimeout = getEnvAsDuration("INGEST_TIMEOUT", tuning.IngestTimeout)
	tuning.MaxUploadBytes = int64(getEnvAsInt("MAX_UPLOAD_BYTES", int(tuning.MaxUploadBytes)))
	cfg.Tuning = tuning

	cfg.EmbeddingDimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", defaultDimensions(cfg.LLMProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultTuning() Tuning {
	return Tuning{
		ChunkSize:      1200,
		ChunkOverlap:   200,
		EmbedBatchSize: 5,
		EmbedPause:     200 * time.Millisecond,
		RetrievalK:     5,
		IngestTimeout:  5 * time.Minute,
		MaxUploadBytes: 25 << 20,
	}
}

func defaultDimensions(provider string) int {
	switch provider {
	case ProviderGemini, ProviderOllama:
		return 768
	default:
		return 1536
	}
}

func loadTuningFile(path string, t *Tuning) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the secrets required by the selected backends are present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY environment variable is required")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable is required")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.Storage.Backend {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Tuning.ChunkSize <= c.Tuning.ChunkOverlap {
		return fmt.Errorf("CHUNK_SIZE (%d) must be greater than CHUNK_OVERLAP (%d)", c.Tuning.ChunkSize, c.Tuning.ChunkOverlap)
	}
	if c.EmbeddingDimensions <= 0 {
		return errors.New("EMBEDDING_DIMENSIONS must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
