package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Static key for write/admin endpoints
	APIKey string `envconfig:"API_KEY"`

	// Completion provider (OpenAI-compatible chat endpoint)
	CompletionAPIKey  string  `envconfig:"COMPLETION_API_KEY"`
	CompletionBaseURL string  `envconfig:"COMPLETION_BASE_URL" default:"https://api.groq.com/openai/v1"`
	CompletionModel   string  `envconfig:"COMPLETION_MODEL" default:"llama-3.3-70b-versatile"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"30s"`

	// Embedding provider (OpenAI-compatible embeddings endpoint)
	EmbeddingAPIKey     string        `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string        `envconfig:"EMBEDDING_BASE_URL" default:"https://api.cohere.ai/compatibility/v1"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"embed-english-v3.0"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1024"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"10s"`
	EmbeddingRPS        float64       `envconfig:"EMBEDDING_RPS" default:"5"`

	// Safety validator service
	SafetyValidatorURL string        `envconfig:"SAFETY_VALIDATOR_URL"`
	SafetyTimeout      time.Duration `envconfig:"SAFETY_TIMEOUT" default:"4s"`

	// GitHub webhook ingestion
	GitHubWebhookSecret string `envconfig:"GITHUB_WEBHOOK_SECRET"`

	// Document blob storage
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"lumen-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Retrieval tuning
	RetrievalTopK       int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalLowScore   float64 `envconfig:"RETRIEVAL_LOW_SCORE" default:"0.4"`
	RetrievalVeryLow    float64 `envconfig:"RETRIEVAL_VERY_LOW_SCORE" default:"0.2"`
	KeywordFallbackCap  int     `envconfig:"KEYWORD_FALLBACK_CAP" default:"10"`
	UpgradeOnKeywordHit bool    `envconfig:"UPGRADE_ON_KEYWORD_HIT" default:"true"`

	// Taxonomy matcher tuning
	MatchMinScore     float64 `envconfig:"MATCH_MIN_SCORE" default:"4"`
	MatchLLMThreshold float64 `envconfig:"MATCH_LLM_THRESHOLD" default:"0.6"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LUMEN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasCompletion() bool {
	return c.CompletionAPIKey != ""
}

func (c *Config) HasEmbedding() bool {
	return c.EmbeddingAPIKey != ""
}

func (c *Config) HasSafetyValidator() bool {
	return c.SafetyValidatorURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
