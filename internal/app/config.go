package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type StoreDriver string

const (
	StoreDriverMemory StoreDriver = "memory"
	StoreDriverGCS    StoreDriver = "gcs"
	StoreDriverMongo  StoreDriver = "mongo"
	StoreDriverS3     StoreDriver = "s3"
)

type JobsDriver string

const (
	JobsDriverGorm   JobsDriver = "gorm"
	JobsDriverMemory JobsDriver = "memory"
)

type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":1854"`
	LogMode        string   `env:"LOG_MODE" envDefault:"development"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	// Image providers
	GenAIProvider         string        `env:"GENAI_PROVIDER" envDefault:"openai"`
	GenAITextProvider     string        `env:"GENAI_TEXT_PROVIDER"`
	GenAIFallbackProvider string        `env:"GENAI_FALLBACK_PROVIDER"`
	GenAITimeout          time.Duration `env:"GENAI_TIMEOUT" envDefault:"120s"`
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL"`
	OpenAIImageModel      string        `env:"OPENAI_IMAGE_MODEL"`
	GeminiAPIKey          string        `env:"GEMINI_API_KEY"`
	GeminiImageModel      string        `env:"GEMINI_IMAGE_MODEL"`

	// Brief store
	StoreDriver         StoreDriver `env:"STORE_DRIVER" envDefault:"memory"`
	ObjectStorageMode   string      `env:"OBJECT_STORAGE_MODE"`
	GCSBucket           string      `env:"GCS_BUCKET"`
	StorageEmulatorHost string      `env:"STORAGE_EMULATOR_HOST"`
	MongoURI            string      `env:"MONGODB_URI"`
	MongoDatabase       string      `env:"MONGODB_DATABASE" envDefault:"creatives"`
	MongoCollection     string      `env:"MONGODB_COLLECTION" envDefault:"brief_blobs"`
	S3Endpoint          string      `env:"S3_ENDPOINT"`
	S3Bucket            string      `env:"S3_BUCKET"`
	S3AccessKey         string      `env:"S3_ACCESS_KEY"`
	S3SecretKey         string      `env:"S3_SECRET_KEY"`
	S3UseSSL            bool        `env:"S3_USE_SSL" envDefault:"true"`

	// Background runs
	JobsDriver        JobsDriver    `env:"JOBS_DRIVER" envDefault:"gorm"`
	JobsDBDialect     string        `env:"JOBS_DB_DIALECT" envDefault:"sqlite"`
	JobsDBDSN         string        `env:"JOBS_DB_DSN" envDefault:"creatives-jobs.db"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	WorkerPoll        time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	// A processing campaign idle this long is treated as orphaned on startup.
	RecoverStaleAfter time.Duration `env:"RECOVER_STALE_AFTER" envDefault:"30m"`

	// Status events
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL"`

	// Tracing
	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"creatives"`
	OtelEnvironment string  `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OtelVersion     string  `env:"OTEL_SERVICE_VERSION"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLER_RATIO" envDefault:"1"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return ParseConfig(nil)
}

// ParseConfig parses cfg from environ, or from the process environment when
// environ is nil.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.StoreDriver = StoreDriver(strings.ToLower(strings.TrimSpace(string(cfg.StoreDriver))))
	cfg.JobsDriver = JobsDriver(strings.ToLower(strings.TrimSpace(string(cfg.JobsDriver))))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory, StoreDriverGCS, StoreDriverMongo, StoreDriverS3:
	default:
		return fmt.Errorf("invalid STORE_DRIVER=%q (allowed: memory, gcs, mongo, s3)", c.StoreDriver)
	}
	switch c.JobsDriver {
	case JobsDriverGorm, JobsDriverMemory:
	default:
		return fmt.Errorf("invalid JOBS_DRIVER=%q (allowed: gorm, memory)", c.JobsDriver)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1, got %d", c.WorkerConcurrency)
	}
	if c.RecoverStaleAfter <= 0 {
		return fmt.Errorf("RECOVER_STALE_AFTER must be positive, got %s", c.RecoverStaleAfter)
	}
	return nil
}
