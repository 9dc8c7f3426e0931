// Package models defines core data structures for notes, chunks, and retrieval results.
package models

import "time"

// Note is a stored note in the knowledge base.
type Note struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Tags      []string  `json:"tags,omitempty" db:"tags"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NoteInput is the input for creating or updating a note.
type NoteInput struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// NoteChunk is a contiguous slice of a note's text, the unit of embedding
// and retrieval. The embedding is valid only while ContentFingerprint matches
// the hash of Text; a mismatch (or the Stale flag) excludes the chunk from
// retrieval until it is re-embedded.
type NoteChunk struct {
	ChunkID            string    `json:"chunk_id"`
	NoteID             string    `json:"note_id"`
	NoteTitle          string    `json:"note_title"`
	Text               string    `json:"text"`
	ChunkIndex         int       `json:"chunk_index"`
	ContentFingerprint string    `json:"content_fingerprint"`
	Embedding          []float32 `json:"-"`
	EmbeddedAt         time.Time `json:"embedded_at"`
	Stale              bool      `json:"stale"`
}

// SimilarityResult is a single retrieval hit. Results are ordered strictly
// descending by Score, ties broken by ascending ChunkID.
type SimilarityResult struct {
	ChunkID   string  `json:"chunk_id"`
	NoteID    string  `json:"note_id"`
	NoteTitle string  `json:"note_title"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}
