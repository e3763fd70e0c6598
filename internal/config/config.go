package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis Configuration (asynq queue, progress cache, live events)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Object store (MinIO)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Upload validation
	MaxFileSize  int64
	AllowedTypes []string

	// Extraction
	ExtractorServiceURL string // empty = use the native extractor
	ExtractionTimeout   time.Duration
	MaxExtractedChars   int

	// Markdown conversion service
	MarkdownServiceURL string

	// DOCX -> PDF conversion
	SofficeBinary string

	// Slide extraction helper scripts
	PythonBinary         string
	SlideScriptPath      string
	SlideImageScriptPath string
	SignedURLExpiry      time.Duration

	ScratchDir string

	// Chunking
	ChunkMaxWords         int
	ChunkOverlapSentences int
	MinEmbeddingChars     int

	// Embeddings
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	EmbeddingMaxMagnitude float64
	VectorDimensions      int

	// Worker / retry policy
	WorkerConcurrency int
	MaxRetries        int
	JobTimeout        time.Duration

	// Progress reporting
	ProgressTTL time.Duration

	// API rate limiting (requests per window, window in seconds)
	RateLimitReqs   int
	RateLimitWindow int

	// Stale-pending janitor
	StalePendingAfter time.Duration
	JanitorInterval   time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledgebase"),
		DBName:   getEnv("DB_NAME", "knowledgebase"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnv("MINIO_BUCKET", "documents"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB ceiling
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES",
			"application/pdf,"+
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document,"+
				"application/msword,"+
				"application/vnd.openxmlformats-officedocument.presentationml.presentation,"+
				"application/vnd.ms-powerpoint,"+
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,"+
				"application/vnd.ms-excel,"+
				"text/plain,text/html,text/markdown,"+
				"image/png,image/jpeg,image/tiff"), ","),

		ExtractorServiceURL: getEnv("EXTRACTOR_SERVICE_URL", ""),
		ExtractionTimeout:   time.Duration(getEnvInt("EXTRACTION_TIMEOUT", 120)) * time.Second,
		MaxExtractedChars:   getEnvInt("MAX_EXTRACTED_CHARS", 2000000),

		MarkdownServiceURL: getEnv("MARKDOWN_SERVICE_URL", ""),

		SofficeBinary: getEnv("SOFFICE_BINARY", "soffice"),

		PythonBinary:         getEnv("PYTHON_BINARY", "python3"),
		SlideScriptPath:      getEnv("SLIDE_SCRIPT_PATH", "./scripts/extract_pptx.py"),
		SlideImageScriptPath: getEnv("SLIDE_IMAGE_SCRIPT_PATH", "./scripts/extract_pptx_with_images.py"),
		SignedURLExpiry:      time.Duration(getEnvInt("SIGNED_URL_EXPIRY_HOURS", 168)) * time.Hour,

		ScratchDir: getEnv("SCRATCH_DIR", os.TempDir()),

		ChunkMaxWords:         getEnvInt("CHUNK_MAX_WORDS", 500),
		ChunkOverlapSentences: getEnvInt("CHUNK_OVERLAP_SENTENCES", 2),
		MinEmbeddingChars:     getEnvInt("MIN_EMBEDDING_CHARS", 50),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingMaxMagnitude: getEnvFloat64("EMBEDDING_MAX_MAGNITUDE", 100.0),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		JobTimeout:        time.Duration(getEnvInt("JOB_TIMEOUT", 600)) * time.Second,

		ProgressTTL: time.Duration(getEnvInt("PROGRESS_TTL", 3600)) * time.Second,

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		StalePendingAfter: time.Duration(getEnvInt("STALE_PENDING_MINUTES", 60)) * time.Minute,
		JanitorInterval:   time.Duration(getEnvInt("JANITOR_INTERVAL_MINUTES", 15)) * time.Minute,
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
