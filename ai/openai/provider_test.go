package openai

import (
	"testing"

	"github.com/poiesic/recollect/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = NewProvider(ai.NewConfig(ai.WithEmbeddingDimensions(0)))
	assert.Error(t, err)

	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
	provider, err := NewProvider(cfg, WithProviderLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, cfg.EmbeddingDimensions, provider.Embedder().Dimensions())
	assert.NotNil(t, provider.ArtifactExtractor())

	require.NoError(t, provider.Close())
	require.NoError(t, provider.Close())
}
