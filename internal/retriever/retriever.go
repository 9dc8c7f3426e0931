// Package retriever ranks fresh chunk embeddings against a query vector.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/store"
)

// ErrDimensionMismatch indicates the query vector's dimensionality differs
// from the stored vectors', which means the embedding model changed. The
// whole corpus must be re-embedded before retrying.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DefaultTopK and DefaultMinScore apply when a query leaves them unset.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.2
)

// Retriever scores the store's fresh chunks by cosine similarity. The scan is
// linear in the number of fresh chunks, which is fine at personal-corpus
// scale; an approximate nearest-neighbor index can replace it behind the same
// contract (same signature, same ordering guarantees).
type Retriever struct {
	store *store.Store
}

// New creates a retriever over the given store.
func New(s *store.Store) *Retriever {
	return &Retriever{store: s}
}

// Query returns the top k chunks whose cosine similarity to queryVec is at
// least minScore, in strictly descending score order with ties broken by
// ascending chunk ID. An empty fresh set yields an empty result, not an
// error. k larger than the fresh set returns everything above the threshold.
func (r *Retriever) Query(ctx context.Context, queryVec []float32, k int, minScore float64) ([]*models.SimilarityResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	fresh := r.store.AllFresh()

	results := make([]*models.SimilarityResult, 0, len(fresh))
	for _, c := range fresh {
		if len(c.Embedding) != len(queryVec) {
			return nil, fmt.Errorf("%w: query has %d dimensions, chunk %s has %d (re-index required)",
				ErrDimensionMismatch, len(queryVec), c.ChunkID, len(c.Embedding))
		}
		score := dot(queryVec, c.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, &models.SimilarityResult{
			ChunkID:   c.ChunkID,
			NoteID:    c.NoteID,
			NoteTitle: c.NoteTitle,
			Text:      c.Text,
			Score:     score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// dot returns the inner product, which equals cosine similarity for the
// unit-normalized vectors the embedder produces.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}
