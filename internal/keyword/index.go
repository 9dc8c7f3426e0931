// Package keyword provides exact keyword lookup over notes, separate from the
// semantic retrieval pipeline.
package keyword

import (
	"context"

	"github.com/hyperjump/kiroku/internal/models"
)

// Index defines keyword search operations over notes.
type Index interface {
	Index(ctx context.Context, id string, note *models.Note) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
