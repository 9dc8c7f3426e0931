// Package embedding provides text embedding and the compute unit that owns
// the embedding model.
package embedding

import "context"

// Embedder produces unit-normalized vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
