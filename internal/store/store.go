// Package store provides the in-memory embedding store: the authoritative
// cache of what is currently indexed.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/hyperjump/kiroku/internal/models"
)

// Fingerprint returns the content fingerprint for a chunk's text, used to
// detect staleness when the source text changes.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store is a chunk cache keyed by chunk ID. Mutations are expected from a
// single writer (the orchestrator); reads return copied snapshots so
// concurrent readers never observe a partially updated collection.
type Store struct {
	mu     sync.RWMutex
	chunks map[string]*models.NoteChunk
}

// New creates an empty store.
func New() *Store {
	return &Store{chunks: make(map[string]*models.NoteChunk)}
}

// Upsert inserts or replaces the entry for chunk.ChunkID. When an existing
// entry carries a different fingerprint its vector is discarded outright: it
// belongs to obsolete text. The stored chunk is a copy; callers keep ownership
// of the argument.
func (s *Store) Upsert(chunk *models.NoteChunk) {
	c := *chunk
	c.Stale = false
	if c.ContentFingerprint == "" {
		c.ContentFingerprint = Fingerprint(c.Text)
	}
	s.mu.Lock()
	s.chunks[c.ChunkID] = &c
	s.mu.Unlock()
}

// Get returns a copy of the chunk with the given ID.
func (s *Store) Get(chunkID string) (*models.NoteChunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// IsFresh reports whether the chunk exists, is not stale, and its stored
// fingerprint still matches fingerprint.
func (s *Store) IsFresh(chunkID, fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkID]
	return ok && !c.Stale && c.ContentFingerprint == fingerprint
}

// Refresh clears the stale mark on chunkID when the stored fingerprint still
// matches fingerprint, reusing the cached vector instead of re-embedding.
// Returns false when the entry is missing or its fingerprint differs.
func (s *Store) Refresh(chunkID, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[chunkID]
	if !ok || c.ContentFingerprint != fingerprint {
		return false
	}
	c.Stale = false
	return true
}

// Invalidate marks every chunk belonging to noteID stale without deleting the
// cached vectors, so a re-embed reuses the slot instead of allocating a new
// one. Returns the number of chunks marked.
func (s *Store) Invalidate(noteID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		if c.NoteID == noteID && !c.Stale {
			c.Stale = true
			n++
		}
	}
	return n
}

// Remove purges all chunks for a deleted note. Returns the number removed.
func (s *Store) Remove(noteID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.chunks {
		if c.NoteID == noteID {
			delete(s.chunks, id)
			n++
		}
	}
	return n
}

// AllFresh returns a snapshot of chunks whose fingerprint currently matches
// their text and which are not marked stale, ordered by chunk ID for
// determinism. The snapshot is a copy; iterating it never observes writes.
func (s *Store) AllFresh() []*models.NoteChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.NoteChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.Stale || c.ContentFingerprint != Fingerprint(c.Text) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out
}

// Len returns the total number of entries, stale included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// FreshLen returns the number of fresh entries.
func (s *Store) FreshLen() int {
	return len(s.AllFresh())
}
