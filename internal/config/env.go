package config

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GenProviderGroq   = "groq"
	GenProviderGemini = "gemini"

	EmbedProviderGemini = "gemini"
	EmbedProviderOpenAI = "openai"

	StoreBolt     = "bolt"
	StorePgvector = "pgvector"
	StoreWeaviate = "weaviate"
)

type Config struct {
	Port        string
	CORSOrigins []string
	LogLevel    string

	GenProvider string
	GroqAPIKeys []string
	// GenAPIKey is the credential picked from GroqAPIKeys for this process.
	GenAPIKey  string
	GenBaseURL string
	GenModel   string
	GenRPS     float64

	GeminiAPIKey string

	EmbedProvider string
	EmbedModel    string
	EmbedBaseURL  string
	EmbedAPIKey   string
	EmbedDim      int

	VectorStore    string
	DBPath         string
	CollectionName string
	DatabaseURL    string
	WeaviateHost   string
	WeaviateAPIKey string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	IngestWorkers int
	IngestQueue   int
	JobHistory    int
	JobTimeout    time.Duration
	ChatTimeout   time.Duration

	PageWorkers     int
	OCRLangs        string
	OCRScale        int
	TranscribeModel string

	FetchMaxBytes int64
	FetchTimeout  time.Duration
	FetchRPS      float64

	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string

	JWTSecret string
}

// LoadConfig loads the environment (optionally from the given dotenv files),
// picks the generation credential for this process and validates the result.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Port:        getEnv("PORT", "5001"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GenProvider: strings.ToLower(getEnv("GEN_PROVIDER", GenProviderGroq)),
		GroqAPIKeys: splitList(getEnv("GROQ_API_KEYS", "")),
		GenBaseURL:  getEnv("GEN_BASE_URL", "https://api.groq.com/openai/v1"),
		GenModel:    getEnv("GEN_MODEL", "llama-3.1-8b-instant"),
		GenRPS:      getEnvFloat("GEN_RPS", 2),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", EmbedProviderGemini)),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedBaseURL:  getEnv("EMBED_BASE_URL", ""),
		EmbedAPIKey:   getEnv("EMBED_API_KEY", ""),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),

		VectorStore:    strings.ToLower(getEnv("VECTOR_STORE", StoreBolt)),
		DBPath:         getEnv("DB_PATH", "./chroma_db"),
		CollectionName: getEnv("COLLECTION_NAME", "vnit_lms"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		WeaviateHost:   getEnv("WEAVIATE_HOST", ""),
		WeaviateAPIKey: getEnv("WEAVIATE_API_KEY", ""),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		TopK:         getEnvInt("TOP_K", 5),

		IngestWorkers: getEnvInt("INGEST_WORKERS", 2),
		IngestQueue:   getEnvInt("INGEST_QUEUE", 64),
		JobHistory:    getEnvInt("JOB_HISTORY", 256),
		JobTimeout:    getEnvDuration("JOB_TIMEOUT", 15*time.Minute),
		ChatTimeout:   getEnvDuration("CHAT_TIMEOUT", 60*time.Second),

		PageWorkers:     getEnvInt("PAGE_WORKERS", 4),
		OCRLangs:        getEnv("OCR_LANGS", "eng"),
		OCRScale:        getEnvInt("OCR_SCALE", 2),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-large-v3"),

		FetchMaxBytes: int64(getEnvInt("FETCH_MAX_BYTES", 512<<20)),
		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 5*time.Minute),
		FetchRPS:      getEnvFloat("FETCH_RPS", 5),

		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	cfg.GenAPIKey = SelectKey(cfg.GroqAPIKeys, rand.IntN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.ChunkOverlap < 0 || c.ChunkSize <= c.ChunkOverlap {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE (%d) must be greater than CHUNK_OVERLAP (%d) and overlap must not be negative", c.ChunkSize, c.ChunkOverlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.CollectionName == "" {
		errs = append(errs, errors.New("COLLECTION_NAME is empty"))
	}

	switch c.GenProvider {
	case GenProviderGroq:
		if c.GenAPIKey == "" {
			errs = append(errs, errors.New("GROQ_API_KEYS not set"))
		}
	case GenProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GEN_PROVIDER %q", c.GenProvider))
	}

	switch c.EmbedProvider {
	case EmbedProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
	case EmbedProviderOpenAI:
		if c.EmbedBaseURL == "" {
			errs = append(errs, errors.New("EMBED_BASE_URL not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider))
	}

	switch c.VectorStore {
	case StoreBolt:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is empty"))
		}
	case StorePgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case StoreWeaviate:
		if c.WeaviateHost == "" {
			errs = append(errs, errors.New("WEAVIATE_HOST not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_STORE %q", c.VectorStore))
	}

	return errors.Join(errs...)
}

// SelectKey picks one credential with pick (an IntN-style source). It runs
// once per process start, so restarts rotate across the configured keys.
func SelectKey(keys []string, pick func(n int) int) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[pick(len(keys))]
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
