package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"docuchat/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkMaxTokens)
	assert.Equal(t, 50, cfg.ChunkOverlapTokens)
	assert.Equal(t, 5, cfg.RetrievalTopK)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, int64(20), cfg.MaxUploadSizeMB)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	// Create a temp .env file
	content := []byte("DB_NAME=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBName)
}

func TestLoadConfig_Knobs(t *testing.T) {
	os.Setenv("CHUNK_MAX_TOKENS", "256")
	os.Setenv("RETRIEVAL_TOP_K", "3")
	os.Setenv("ENABLE_EVENTS", "false")
	defer os.Unsetenv("CHUNK_MAX_TOKENS")
	defer os.Unsetenv("RETRIEVAL_TOP_K")
	defer os.Unsetenv("ENABLE_EVENTS")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 256, cfg.ChunkMaxTokens)
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.False(t, cfg.EnableEvents)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		DBHost:             "h",
		DBUser:             "u",
		DBName:             "n",
		ChunkMaxTokens:     500,
		ChunkOverlapTokens: 50,
	}

	t.Run("Valid", func(t *testing.T) {
		cfg := base
		assert.NoError(t, cfg.Validate())
	})

	t.Run("MissingDBHost", func(t *testing.T) {
		cfg := base
		cfg.DBHost = ""
		err := cfg.Validate()
		assert.ErrorIs(t, err, config.ErrMissingRequired)
		assert.Contains(t, err.Error(), "DB_HOST")
	})

	t.Run("ZeroChunkBudget", func(t *testing.T) {
		cfg := base
		cfg.ChunkMaxTokens = 0
		assert.ErrorIs(t, cfg.Validate(), config.ErrMissingRequired)
	})

	t.Run("NegativeOverlap", func(t *testing.T) {
		cfg := base
		cfg.ChunkOverlapTokens = -1
		assert.ErrorIs(t, cfg.Validate(), config.ErrMissingRequired)
	})

	t.Run("GeminiKeyOptional", func(t *testing.T) {
		cfg := base
		cfg.GeminiAPIKey = ""
		assert.NoError(t, cfg.Validate())
	})
}
