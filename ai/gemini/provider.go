package gemini

import (
	"context"
	"log/slog"

	"github.com/poiesic/finrag/ai"
)

// Provider implements ai.AIProvider on top of the Gemini API.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider creates a Gemini-backed provider. config.APIKey is required.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close closes the underlying API client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.embedder.client.Close()
}
