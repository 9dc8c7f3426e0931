// Package rag coordinates chunking, embedding, retrieval, and prompt
// rendering into one request/response cycle.
package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/store"
)

// Chunker splits note text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits a note into NoteChunks with overlapping word windows. Chunk
// IDs are deterministic (`<noteID>_<index>`) so that re-chunking an edited
// note reuses the same store slots. An empty note yields no chunks.
func (c *Chunker) Chunk(note *models.Note) []*models.NoteChunk {
	words := strings.Fields(note.Content)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []*models.NoteChunk
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[i:end], " ")
		chunks = append(chunks, &models.NoteChunk{
			ChunkID:            fmt.Sprintf("%s_%d", note.ID, chunkIndex),
			NoteID:             note.ID,
			NoteTitle:          note.Title,
			Text:               text,
			ChunkIndex:         chunkIndex,
			ContentFingerprint: store.Fingerprint(text),
		})
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
