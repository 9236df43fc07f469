package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	LogMode     string
	CORSOrigins []string

	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	ChatModel       string
	EmbeddingModel  string
	EmbeddingDim    int
	ChatTemperature float32
	LLMTimeout      time.Duration

	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTimeout    time.Duration

	CRMBaseURL string
	CRMAPIKey  string
	CRMTimeout time.Duration

	SessionCacheSize int
	SyncWorkers      int
	SyncQueueSize    int
	SyncMaxAttempts  int
}

// LoadConfig reads .env (if present) and the process environment.
// The returned bool reports whether a .env file was loaded.
func LoadConfig() (Config, bool, error) {
	loadedDotEnv := godotenv.Load() == nil

	cfg := Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogMode:     getEnv("LOG_MODE", "development"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		DatabaseURL: getEnv("DATABASE_URL", "educrm.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ChatTemperature: float32(getEnvAsFloat("CHAT_TEMPERATURE", 0.7)),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),

		QdrantURL:        qdrantURL(),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "conversation_embeddings"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantTimeout:    getEnvAsDuration("QDRANT_TIMEOUT", 10*time.Second),

		CRMBaseURL: getEnv("CRM_BASE_URL", getEnv("LARAVEL_CRM_BASE_URL", "")),
		CRMAPIKey:  getEnv("CRM_API_KEY", getEnv("LARAVEL_CRM_API_KEY", "")),
		CRMTimeout: getEnvAsDuration("CRM_TIMEOUT", 10*time.Second),

		SessionCacheSize: getEnvAsInt("SESSION_CACHE_SIZE", 1024),
		SyncWorkers:      getEnvAsInt("SYNC_WORKERS", 2),
		SyncQueueSize:    getEnvAsInt("SYNC_QUEUE_SIZE", 256),
		SyncMaxAttempts:  getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),
	}

	switch cfg.LLMProvider {
	case ProviderGemini:
		cfg.ChatModel = getEnv("CHAT_MODEL", "gemini-1.5-flash-latest")
		cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", "text-embedding-004")
		cfg.EmbeddingDim = getEnvAsInt("EMBEDDING_DIM", 768)
	default:
		cfg.ChatModel = getEnv("CHAT_MODEL", "gpt-4o")
		cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", "text-embedding-3-small")
		cfg.EmbeddingDim = getEnvAsInt("EMBEDDING_DIM", 1536)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, loadedDotEnv, err
	}
	return cfg, loadedDotEnv, nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable is required when LLM_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (expected openai or gemini)", c.LLMProvider)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be a positive integer")
	}
	if c.QdrantURL != "" {
		parsed, err := url.Parse(c.QdrantURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", c.QdrantURL)
		}
	}
	if c.SessionCacheSize <= 0 || c.SyncWorkers <= 0 || c.SyncQueueSize <= 0 || c.SyncMaxAttempts <= 0 {
		return fmt.Errorf("SESSION_CACHE_SIZE, SYNC_WORKERS, SYNC_QUEUE_SIZE and SYNC_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// VectorStoreEnabled reports whether a Qdrant endpoint is configured.
func (c Config) VectorStoreEnabled() bool { return c.QdrantURL != "" }

// CRMEnabled reports whether a CRM endpoint is configured.
func (c Config) CRMEnabled() bool { return c.CRMBaseURL != "" }

func qdrantURL() string {
	if v := getEnv("QDRANT_URL", ""); v != "" {
		return v
	}
	host := getEnv("QDRANT_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", host, getEnvAsInt("QDRANT_PORT", 6333))
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
