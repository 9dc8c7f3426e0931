package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/kiroku/internal/config"
	"github.com/hyperjump/kiroku/internal/embedding"
	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/prompt"
	"github.com/hyperjump/kiroku/internal/store"
)

// keyedEmbedder maps each keyword to its own axis so tests can control
// exactly which chunks match which queries. Text containing keywords[i]
// embeds to the i-th basis vector; anything else lands on the last axis.
type keyedEmbedder struct {
	keywords []string
	failOn   string
}

func (e *keyedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, fmt.Errorf("scripted failure for %q", text)
	}
	vec := make([]float32, len(e.keywords)+1)
	for i, kw := range e.keywords {
		if strings.Contains(text, kw) {
			vec[i] = 1
			return vec, nil
		}
	}
	vec[len(e.keywords)] = 1
	return vec, nil
}

func (e *keyedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keyedEmbedder) Dimensions() int { return len(e.keywords) + 1 }
func (e *keyedEmbedder) Close() error    { return nil }

func newTestOrchestrator(t *testing.T, emb embedding.Embedder) (*Orchestrator, *store.Store) {
	t.Helper()
	unit := embedding.NewComputeUnit(func(string) (embedding.Embedder, error) {
		return emb, nil
	})
	t.Cleanup(func() { unit.Close() })
	if err := unit.Init(context.Background(), "test-model"); err != nil {
		t.Fatal(err)
	}
	st := store.New()
	cfg := &config.RetrievalConfig{TopK: 5, MinScore: 0.2, ChunkSize: 50, ChunkOverlap: 10}
	return New(unit, st, prompt.NewRegistry(), cfg), st
}

func testNotes() []*models.Note {
	return []*models.Note{
		{ID: "n-garden", Title: "Garden Journal", Content: "The compost pile needs turning weekly for good aeration."},
		{ID: "n-travel", Title: "Travel Plans", Content: "Flights to osaka are cheapest in february according to research."},
		{ID: "n-work", Title: "Work Log", Content: "The deployment pipeline broke again on thursday afternoon."},
	}
}

func TestIndexCorpus(t *testing.T) {
	o, st := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	summary, err := o.IndexCorpus(context.Background(), testNotes())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Notes != 3 || summary.Chunks != 3 {
		t.Errorf("summary = %+v, want 3 notes / 3 chunks", summary)
	}
	if summary.Indexed != 3 || summary.Reused != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 3 indexed", summary)
	}
	if st.FreshLen() != 3 {
		t.Errorf("store has %d fresh chunks, want 3", st.FreshLen())
	}
	if o.State() != StateReady {
		t.Errorf("state = %v, want ready", o.State())
	}
}

func TestIndexCorpus_ReusesUnchangedChunks(t *testing.T) {
	o, _ := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	notes := testNotes()
	if _, err := o.IndexCorpus(context.Background(), notes); err != nil {
		t.Fatal(err)
	}

	// Second pass over an unchanged corpus embeds nothing.
	summary, err := o.IndexCorpus(context.Background(), notes)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Indexed != 0 || summary.Reused != 3 {
		t.Errorf("summary = %+v, want all chunks reused", summary)
	}

	// Editing one note re-embeds only that note's chunks.
	notes[0].Content = "The compost bin overflowed and attracted raccoons overnight."
	summary, err = o.IndexCorpus(context.Background(), notes)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Indexed != 1 || summary.Reused != 2 {
		t.Errorf("summary = %+v, want 1 indexed / 2 reused", summary)
	}
}

func TestIndexCorpus_BeforeModelInit(t *testing.T) {
	unit := embedding.NewComputeUnit(func(string) (embedding.Embedder, error) {
		return embedding.NewMockEmbedder(8), nil
	})
	defer unit.Close()
	cfg := &config.RetrievalConfig{TopK: 5, MinScore: 0.2, ChunkSize: 50, ChunkOverlap: 10}
	o := New(unit, store.New(), prompt.NewRegistry(), cfg)

	_, err := o.IndexCorpus(context.Background(), testNotes())
	if !errors.Is(err, embedding.ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestIndexCorpus_SkipsFailingChunks(t *testing.T) {
	emb := &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}, failOn: "osaka"}
	o, st := newTestOrchestrator(t, emb)
	summary, err := o.IndexCorpus(context.Background(), testNotes())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Indexed != 2 {
		t.Errorf("summary = %+v, want 2 indexed / 1 failed", summary)
	}
	// The failed chunk must not become retrievable.
	if st.FreshLen() != 2 {
		t.Errorf("store has %d fresh chunks, want 2", st.FreshLen())
	}
}

func TestQuery_EndToEnd(t *testing.T) {
	o, _ := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	ctx := context.Background()
	if _, err := o.IndexCorpus(ctx, testNotes()); err != nil {
		t.Fatal(err)
	}

	res, err := o.Query(ctx, "when should I turn the compost?", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want exactly the compost chunk", len(res.Matches))
	}
	if res.Matches[0].NoteID != "n-garden" {
		t.Errorf("matched %s, want n-garden", res.Matches[0].NoteID)
	}
	if !strings.Contains(res.Prompt.Text, "compost pile needs turning") {
		t.Error("retrieved chunk text missing from prompt")
	}
	if !strings.Contains(res.Prompt.Text, "- Garden Journal") {
		t.Error("source note title missing from prompt")
	}
	if !strings.Contains(res.Prompt.Text, "when should I turn the compost?") {
		t.Error("query text missing from prompt")
	}
}

func TestQuery_StaleNoteExcludedUntilReindexed(t *testing.T) {
	o, _ := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	ctx := context.Background()
	notes := testNotes()
	if _, err := o.IndexCorpus(ctx, notes); err != nil {
		t.Fatal(err)
	}

	// An edited note disappears from results until re-embedded.
	if n := o.InvalidateNote("n-garden"); n != 1 {
		t.Fatalf("invalidated %d chunks, want 1", n)
	}
	res, err := o.Query(ctx, "compost", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("stale note leaked into results: %+v", res.Matches[0])
	}

	if _, err := o.IndexCorpus(ctx, notes); err != nil {
		t.Fatal(err)
	}
	res, err = o.Query(ctx, "compost", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Error("re-indexed note should be retrievable again")
	}
}

func TestQuery_NoMatchesStillRenders(t *testing.T) {
	o, _ := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	ctx := context.Background()
	if _, err := o.IndexCorpus(ctx, testNotes()); err != nil {
		t.Fatal(err)
	}

	// A query on none of the keyed axes scores 0 against everything.
	res, err := o.Query(ctx, "unrelated gibberish", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("got %d matches, want 0", len(res.Matches))
	}
	if res.Prompt == nil || !strings.Contains(res.Prompt.Text, "unrelated gibberish") {
		t.Error("empty retrieval must still render a prompt with the query")
	}
	if strings.Contains(res.Prompt.Text, "Context from your notes:") {
		t.Error("empty context should not render a context block")
	}
}

func TestQuery_Options(t *testing.T) {
	o, _ := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	ctx := context.Background()
	if _, err := o.IndexCorpus(ctx, testNotes()); err != nil {
		t.Fatal(err)
	}

	res, err := o.Query(ctx, "compost", "detailed", &QueryOptions{IncludeMetadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Prompt.TemplateName != "detailed" {
		t.Errorf("template = %s, want detailed", res.Prompt.TemplateName)
	}
	if !strings.Contains(res.Prompt.Text, "relevance 1.00") {
		t.Errorf("metadata scores missing from prompt:\n%s", res.Prompt.Text)
	}
}

func TestRemoveNote(t *testing.T) {
	o, st := newTestOrchestrator(t, &keyedEmbedder{keywords: []string{"compost", "osaka", "deployment"}})
	ctx := context.Background()
	if _, err := o.IndexCorpus(ctx, testNotes()); err != nil {
		t.Fatal(err)
	}
	if n := o.RemoveNote("n-travel"); n != 1 {
		t.Fatalf("removed %d chunks, want 1", n)
	}
	if st.Len() != 2 {
		t.Errorf("store has %d entries, want 2", st.Len())
	}
	res, err := o.Query(ctx, "osaka", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Error("removed note must not be retrievable")
	}
}
