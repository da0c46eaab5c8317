package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort int `mapstructure:"WEBSERVER_PORT"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Backends
	JobStoreBackend string `mapstructure:"JOBSTORE_BACKEND" validate:"oneof=postgres redis memory"`
	QueueBackend    string `mapstructure:"QUEUE_BACKEND" validate:"oneof=postgres sqs memory"`
	ArtifactBackend string `mapstructure:"ARTIFACT_BACKEND" validate:"oneof=local s3"`

	// Redis job store
	RedisAddr      string `mapstructure:"REDIS_ADDR" validate:"required_if=JobStoreBackend redis"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// AWS
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSEndpointURL     string `mapstructure:"AWS_ENDPOINT_URL"`
	SQSWorkQueueURL    string `mapstructure:"SQS_WORK_QUEUE_URL" validate:"required_if=QueueBackend sqs"`
	SQSSegmentQueueURL string `mapstructure:"SQS_SEGMENT_QUEUE_URL" validate:"required_if=QueueBackend sqs"`
	S3Bucket           string `mapstructure:"S3_BUCKET" validate:"required_if=ArtifactBackend s3"`
	S3Prefix           string `mapstructure:"S3_PREFIX"`

	// Local artifacts and scratch space
	ArtifactDir string `mapstructure:"ARTIFACT_DIR" validate:"required_if=ArtifactBackend local"`
	SpoolDir    string `mapstructure:"SPOOL_DIR" validate:"required"`

	// Queue consumers
	QueueMaxAttempts         int `mapstructure:"QUEUE_MAX_ATTEMPTS" validate:"min=1"`
	QueueVisibilitySeconds   int `mapstructure:"QUEUE_VISIBILITY_SECONDS" validate:"min=1"`
	QueueRetryDelaySeconds   int `mapstructure:"QUEUE_RETRY_DELAY_SECONDS" validate:"min=0"`
	QueuePollIntervalSeconds int `mapstructure:"QUEUE_POLL_INTERVAL_SECONDS" validate:"min=1"`
	ProcessorWorkers         int `mapstructure:"PROCESSOR_WORKERS" validate:"min=1"`
	IngestorWorkers          int `mapstructure:"INGESTOR_WORKERS" validate:"min=1"`

	// Acquisition
	SegmentSeconds     int    `mapstructure:"SEGMENT_SECONDS" validate:"min=1"`
	MaxCollectionItems int    `mapstructure:"MAX_COLLECTION_ITEMS" validate:"min=0"`
	YtdlpPath          string `mapstructure:"YTDLP_PATH"`
	YtdlpCookiesFile   string `mapstructure:"YTDLP_COOKIES_FILE"`
	YtdlpPerMinute     int    `mapstructure:"YTDLP_REQUESTS_PER_MINUTE" validate:"min=0"`

	// Transcription
	WhisperPath           string `mapstructure:"WHISPER_PATH"`
	WhisperModel          string `mapstructure:"WHISPER_MODEL"`
	WhisperLanguage       string `mapstructure:"WHISPER_LANGUAGE"`
	WhisperThreads        int    `mapstructure:"WHISPER_THREADS" validate:"min=0"`
	WhisperTimeoutSeconds int    `mapstructure:"WHISPER_TIMEOUT_SECONDS" validate:"min=0"`

	// Status polling
	PollTimeoutSeconds  int `mapstructure:"POLL_TIMEOUT_SECONDS" validate:"min=1"`
	PollIntervalSeconds int `mapstructure:"POLL_INTERVAL_SECONDS" validate:"min=1"`
}

func (c Config) SegmentDuration() time.Duration {
	return time.Duration(c.SegmentSeconds) * time.Second
}

func (c Config) QueueVisibility() time.Duration {
	return time.Duration(c.QueueVisibilitySeconds) * time.Second
}

func (c Config) QueueRetryDelay() time.Duration {
	return time.Duration(c.QueueRetryDelaySeconds) * time.Second
}

func (c Config) QueuePollInterval() time.Duration {
	return time.Duration(c.QueuePollIntervalSeconds) * time.Second
}

func (c Config) WhisperTimeout() time.Duration {
	return time.Duration(c.WhisperTimeoutSeconds) * time.Second
}

func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag != "" {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && tag == "" {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
	slog.Debug("Environment variables bound")
}

// loadDotEnv reads .env from the working directory when present. Variables already
// set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No .env file found, relying on environment")
			return
		}
		slog.Warn("failed to read .env", "error", err)
	}
}

func LoadConfig(ctx context.Context) (*Config, error) {
	loadDotEnv()
	bindEnv(Config{})
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JOBSTORE_BACKEND", "postgres")
	viper.SetDefault("QUEUE_BACKEND", "postgres")
	viper.SetDefault("ARTIFACT_BACKEND", "local")
	viper.SetDefault("REDIS_KEY_PREFIX", "unit:")
	viper.SetDefault("ARTIFACT_DIR", "/var/lib/scribe/artifacts")
	viper.SetDefault("SPOOL_DIR", filepath.Join(os.TempDir(), "scribe"))
	viper.SetDefault("QUEUE_MAX_ATTEMPTS", 5)
	viper.SetDefault("QUEUE_VISIBILITY_SECONDS", 1800)
	viper.SetDefault("QUEUE_RETRY_DELAY_SECONDS", 30)
	viper.SetDefault("QUEUE_POLL_INTERVAL_SECONDS", 5)
	viper.SetDefault("PROCESSOR_WORKERS", 2)
	viper.SetDefault("INGESTOR_WORKERS", 2)
	viper.SetDefault("SEGMENT_SECONDS", 900)
	viper.SetDefault("MAX_COLLECTION_ITEMS", 500)
	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("YTDLP_REQUESTS_PER_MINUTE", 30)
	viper.SetDefault("WHISPER_PATH", "whisper-cli")
	viper.SetDefault("WHISPER_MODEL", "models/ggml-tiny.en.bin")
	viper.SetDefault("POLL_TIMEOUT_SECONDS", 1800)
	viper.SetDefault("POLL_INTERVAL_SECONDS", 10)

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("Loaded configuration",
		"jobstore", cfg.JobStoreBackend,
		"queue", cfg.QueueBackend,
		"artifacts", cfg.ArtifactBackend,
		"segment_seconds", cfg.SegmentSeconds)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
