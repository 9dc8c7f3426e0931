package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/store"
)

func addChunk(s *store.Store, chunkID, noteID string, vec []float32) {
	s.Upsert(&models.NoteChunk{
		ChunkID:            chunkID,
		NoteID:             noteID,
		NoteTitle:          "Note " + noteID,
		Text:               "text of " + chunkID,
		ContentFingerprint: store.Fingerprint("text of " + chunkID),
		Embedding:          vec,
	})
}

// unit returns the L2-normalized form of v.
func unit(v ...float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func TestRetriever_OrderingAndThreshold(t *testing.T) {
	s := store.New()
	addChunk(s, "far", "n1", unit(0, 1, 0))       // score 0
	addChunk(s, "close", "n2", unit(1, 0.1, 0))   // ~0.995
	addChunk(s, "mid", "n3", unit(1, 1, 0))       // ~0.707
	addChunk(s, "negative", "n4", unit(-1, 0, 0)) // -1

	r := New(s)
	results, err := r.Query(context.Background(), unit(1, 0, 0), 10, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 above threshold", len(results))
	}
	if results[0].ChunkID != "close" || results[1].ChunkID != "mid" {
		t.Errorf("order = %s, %s; want close, mid", results[0].ChunkID, results[1].ChunkID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %f then %f", results[0].Score, results[1].Score)
	}
}

func TestRetriever_TieBreakByChunkID(t *testing.T) {
	s := store.New()
	v := unit(1, 0, 0)
	addChunk(s, "zeta", "n1", v)
	addChunk(s, "alpha", "n2", v)
	addChunk(s, "mid", "n3", v)

	r := New(s)
	results, err := r.Query(context.Background(), v, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, id := range want {
		if results[i].ChunkID != id {
			t.Errorf("results[%d] = %s, want %s (equal scores order by chunk ID)", i, results[i].ChunkID, id)
		}
	}
}

func TestRetriever_KLimitsAndDefaults(t *testing.T) {
	s := store.New()
	addChunk(s, "a", "n1", unit(1, 0, 0))
	addChunk(s, "b", "n2", unit(1, 0.1, 0))
	addChunk(s, "c", "n3", unit(1, 0.2, 0))

	r := New(s)
	results, err := r.Query(context.Background(), unit(1, 0, 0), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("k=2: got %d results", len(results))
	}

	// k larger than the fresh set returns everything.
	results, err = r.Query(context.Background(), unit(1, 0, 0), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("k=100: got %d results, want 3", len(results))
	}

	// k <= 0 falls back to the default.
	results, err = r.Query(context.Background(), unit(1, 0, 0), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("k=0: got %d results, want all 3 under default k", len(results))
	}
}

func TestRetriever_EmptyStore(t *testing.T) {
	r := New(store.New())
	results, err := r.Query(context.Background(), unit(1, 0, 0), 5, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty store should yield no results, got %d", len(results))
	}
}

func TestRetriever_SkipsStaleChunks(t *testing.T) {
	s := store.New()
	addChunk(s, "live", "n1", unit(1, 0, 0))
	addChunk(s, "dead", "n2", unit(1, 0, 0))
	s.Invalidate("n2")

	r := New(s)
	results, err := r.Query(context.Background(), unit(1, 0, 0), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != "live" {
		t.Errorf("stale chunk leaked into results: %+v", results)
	}
}

func TestRetriever_DimensionMismatch(t *testing.T) {
	s := store.New()
	addChunk(s, "a", "n1", unit(1, 0, 0))

	r := New(s)
	_, err := r.Query(context.Background(), unit(1, 0, 0, 0), 5, 0)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}
