package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_URL", "postgres://localhost/lumen")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.CompletionBaseURL)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.CompletionModel)
	assert.Equal(t, 1024, cfg.EmbeddingDimensions)
	assert.Equal(t, 5.0, cfg.EmbeddingRPS)
	assert.Equal(t, "lumen-documents", cfg.S3Bucket)
	assert.Equal(t, 5, cfg.RetrievalTopK)
	assert.Equal(t, 0.4, cfg.RetrievalLowScore)
	assert.Equal(t, 0.2, cfg.RetrievalVeryLow)
	assert.True(t, cfg.UpgradeOnKeywordHit)
	assert.Equal(t, 4.0, cfg.MatchMinScore)
	assert.Equal(t, 0.6, cfg.MatchLLMThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_URL", "postgres://localhost/lumen")
	t.Setenv("LUMEN_PORT", "9090")
	t.Setenv("LUMEN_RETRIEVAL_TOP_K", "8")
	t.Setenv("LUMEN_UPGRADE_ON_KEYWORD_HIT", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.RetrievalTopK)
	assert.False(t, cfg.UpgradeOnKeywordHit)
}

func TestFeatureToggles(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasCompletion())
	assert.False(t, cfg.HasEmbedding())
	assert.False(t, cfg.HasSafetyValidator())
	assert.False(t, cfg.HasS3())

	cfg.CompletionAPIKey = "k"
	cfg.EmbeddingAPIKey = "k"
	cfg.SafetyValidatorURL = "http://localhost:9000"
	assert.True(t, cfg.HasCompletion())
	assert.True(t, cfg.HasEmbedding())
	assert.True(t, cfg.HasSafetyValidator())

	cfg.S3Endpoint = "http://localhost:9000"
	assert.False(t, cfg.HasS3())
	cfg.S3AccessKey = "a"
	cfg.S3SecretKey = "s"
	assert.True(t, cfg.HasS3())
}
