package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
	assert.Empty(t, cfg.APIKey)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderGemini),
			WithEmbeddingModel("text-embedding-004"),
			WithAPIKey("secret"),
			WithEmbeddingHost("http://embed:8080/v1"),
		)

		assert.Equal(t, ProviderGemini, cfg.Provider)
		assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name             string
		provider         string
		host             string
		expectedProvider string
		expectedHost     string
	}{
		{"already has /v1", "openai", "http://localhost:11434/v1", "openai", "http://localhost:11434/v1"},
		{"missing /v1", "openai", "http://localhost:11434", "openai", "http://localhost:11434/v1"},
		{"trailing slash", "openai", "http://localhost:11434/", "openai", "http://localhost:11434/v1"},
		{"empty host", "openai", "", "openai", ""},
		{"empty provider defaults to openai", "", "http://embed:8080", "openai", "http://embed:8080/v1"},
		{"provider is lowercased", " Gemini ", "http://embed:8080", "gemini", "http://embed:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expectedProvider, cfg.Provider)
			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid openai config", func(t *testing.T) {
		cfg := &Config{
			Provider:       ProviderOpenAI,
			EmbeddingHost:  "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := &Config{Provider: ProviderOpenAI, EmbeddingModel: "m"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := &Config{Provider: ProviderOpenAI, EmbeddingHost: "http://localhost:11434/v1"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("gemini requires api key", func(t *testing.T) {
		cfg := &Config{Provider: ProviderGemini, EmbeddingModel: "text-embedding-004"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey")

		cfg.APIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := &Config{Provider: "cohere", EmbeddingModel: "m"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cohere")
	})
}
