// Package mock provides test doubles for the ai interfaces.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("quota exceeded")
//	}
//
// By default MockEmbedder returns deterministic unit vectors derived from an
// FNV hash of each text, so identical texts always embed identically.
package mock
