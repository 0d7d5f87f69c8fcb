package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/finrag/ai"
	"google.golang.org/api/option"
)

// maxBatch is the largest number of contents BatchEmbedContents accepts per request.
const maxBatch = 100

// Embedder implements ai.Embedder using a Google Generative AI embedding model.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(ctx context.Context, config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &Embedder{
		client: client,
		model:  client.EmbeddingModel(config.EmbeddingModel),
		logger: slog.Default().With("component", "gemini-embedder", "model", config.EmbeddingModel),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini: empty embedding response")
	}
	return resp.Embedding.Values, nil
}

// EmbedTexts embeds texts with BatchEmbedContents, splitting into
// requests of at most maxBatch contents.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	result := make([][]float32, 0, len(texts))
	for _, group := range splitBatches(texts, maxBatch) {
		batch := e.model.NewBatch()
		for _, text := range group {
			batch.AddContent(genai.Text(text))
		}

		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			e.logger.Error("failed to generate embeddings", "count", len(group), "err", err)
			return nil, err
		}
		if len(resp.Embeddings) != len(group) {
			return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), len(group))
		}
		for _, emb := range resp.Embeddings {
			result = append(result, emb.Values)
		}
	}
	return result, nil
}

// splitBatches cuts texts into consecutive groups of at most size entries.
func splitBatches(texts []string, size int) [][]string {
	var groups [][]string
	for start := 0; start < len(texts); start += size {
		groups = append(groups, texts[start:min(start+size, len(texts))])
	}
	return groups
}
