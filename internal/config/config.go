package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docuchat"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docuchat"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Chunking and retrieval knobs. Changing them only affects newly
	// indexed documents; existing chunk sets keep their boundaries.
	ChunkMaxTokens     int `envconfig:"CHUNK_MAX_TOKENS" default:"500"`
	ChunkOverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"50"`
	RetrievalTopK      int `envconfig:"RETRIEVAL_TOP_K" default:"5"`

	NSQDHost     string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	EnableEvents bool   `envconfig:"ENABLE_EVENTS" default:"true"`

	ServerPort      int    `envconfig:"SERVER_PORT" default:"8080"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"20"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// The completion call is the single external dependency with
	// unbounded latency, so it gets an explicit deadline.
	LLMTimeoutSeconds int `envconfig:"LLM_TIMEOUT_SECONDS" default:"60"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell instead, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("%w: CHUNK_MAX_TOKENS must be positive", ErrMissingRequired)
	}
	if c.ChunkOverlapTokens < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP_TOKENS must not be negative", ErrMissingRequired)
	}
	return nil
}
