// Package notes provides the note repository: the corpus source the
// retrieval pipeline consumes.
package notes

import (
	"context"

	"github.com/hyperjump/kiroku/internal/models"
)

// Repository defines note persistence operations.
type Repository interface {
	Create(ctx context.Context, note *models.Note) error
	Get(ctx context.Context, id string) (*models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	// Upsert inserts the note or replaces an existing one with the same ID.
	Upsert(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.Note, error)
	// All returns every note, for corpus indexing.
	All(ctx context.Context) ([]*models.Note, error)
	Count(ctx context.Context) (int64, error)
	// Tags returns the distinct tag vocabulary across all notes.
	Tags(ctx context.Context) ([]string, error)
	Close() error
}
