package rag

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kiroku/internal/config"
	"github.com/hyperjump/kiroku/internal/embedding"
	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/prompt"
	"github.com/hyperjump/kiroku/internal/retriever"
	"github.com/hyperjump/kiroku/internal/store"
	"github.com/hyperjump/kiroku/pkg/utils"
)

// State is the orchestrator's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateIndexing
	StateReady
	StateQuerying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	case StateQuerying:
		return "querying"
	default:
		return "unknown"
	}
}

// chunkSeparator joins retrieved chunk texts into the prompt context.
const chunkSeparator = "\n\n---\n\n"

// IndexSummary reports the outcome of an indexing pass. Failed chunks were
// skipped, not retried: the corpus stays partially searchable.
type IndexSummary struct {
	Notes   int `json:"notes"`
	Chunks  int `json:"chunks"`
	Indexed int `json:"indexed"`
	Reused  int `json:"reused"`
	Failed  int `json:"failed"`
}

// QueryOptions tune a single query. Zero values select the configured defaults.
type QueryOptions struct {
	K                    int              `json:"k,omitempty"`
	MinScore             float64          `json:"min_score,omitempty"`
	IncludeMetadata      bool             `json:"include_metadata,omitempty"`
	SystemPromptOverride string           `json:"system_prompt_override,omitempty"`
	Examples             []models.Example `json:"examples,omitempty"`
}

// QueryResult is a rendered prompt plus the retrieval hits it was built from.
type QueryResult struct {
	Prompt  *models.TemplateResult     `json:"prompt"`
	Matches []*models.SimilarityResult `json:"matches"`
}

// Orchestrator glues the compute unit, embedding store, retriever, and
// template registry into one pipeline.
type Orchestrator struct {
	compute         *embedding.ComputeUnit
	store           *store.Store
	retriever       *retriever.Retriever
	templates       *prompt.Registry
	chunker         *Chunker
	cfg             *config.RetrievalConfig
	defaultTemplate string
	logger          *zap.Logger
	state           atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for indexing and query events.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithDefaultTemplate sets the template used when a query names none.
func WithDefaultTemplate(name string) Option {
	return func(o *Orchestrator) { o.defaultTemplate = name }
}

// New creates an orchestrator over the given compute unit, store, and
// template registry.
func New(compute *embedding.ComputeUnit, st *store.Store, templates *prompt.Registry, cfg *config.RetrievalConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		compute:         compute,
		store:           st,
		retriever:       retriever.New(st),
		templates:       templates,
		chunker:         NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:             cfg,
		defaultTemplate: prompt.DefaultTemplateName,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the orchestrator state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// IndexCorpus chunks the given notes and embeds every chunk whose text
// changed since the last pass; unchanged chunks reuse their cached vector. A
// chunk whose embedding fails is logged and skipped, so a partial corpus
// remains searchable. Infrastructure failures (model not initialized, unit
// closed) abort the pass and bubble up.
func (o *Orchestrator) IndexCorpus(ctx context.Context, notes []*models.Note) (*IndexSummary, error) {
	o.state.Store(int32(StateIndexing))
	defer o.state.Store(int32(StateReady))

	summary := &IndexSummary{Notes: len(notes)}
	for _, note := range notes {
		chunks := o.chunker.Chunk(note)
		summary.Chunks += len(chunks)

		// Mark everything for this note stale first; fingerprint matches
		// below re-mark the unchanged slots fresh without re-embedding.
		o.store.Invalidate(note.ID)

		var pending []*models.NoteChunk
		for _, chunk := range chunks {
			if o.store.Refresh(chunk.ChunkID, chunk.ContentFingerprint) {
				summary.Reused++
				continue
			}
			pending = append(pending, chunk)
		}
		if len(pending) == 0 {
			continue
		}

		texts := make([]string, len(pending))
		for i, chunk := range pending {
			texts[i] = chunk.Text
		}
		items, err := o.compute.EmbedBatch(ctx, texts)
		if err != nil {
			return summary, err
		}
		now := time.Now()
		for i, item := range items {
			if item.Err != nil {
				summary.Failed++
				if o.logger != nil {
					o.logger.Warn("chunk embedding failed, skipping",
						zap.String("chunk_id", pending[i].ChunkID),
						zap.String("text", utils.Truncate(item.Text, 80)),
						zap.Error(item.Err))
				}
				continue
			}
			pending[i].Embedding = item.Embedding
			pending[i].EmbeddedAt = now
			o.store.Upsert(pending[i])
			summary.Indexed++
		}
	}
	if o.logger != nil {
		o.logger.Info("corpus indexed",
			zap.Int("notes", summary.Notes),
			zap.Int("chunks", summary.Chunks),
			zap.Int("indexed", summary.Indexed),
			zap.Int("reused", summary.Reused),
			zap.Int("failed", summary.Failed))
	}
	return summary, nil
}

// Query embeds the query text, retrieves the best-matching fresh chunks, and
// renders them through the named template. An embedding failure is fatal to
// this query only; the caller may retry. An empty retrieval result still
// renders: the template sees an empty context.
func (o *Orchestrator) Query(ctx context.Context, text, templateName string, opts *QueryOptions) (*QueryResult, error) {
	if o.state.CompareAndSwap(int32(StateReady), int32(StateQuerying)) {
		defer o.state.Store(int32(StateReady))
	}
	if opts == nil {
		opts = &QueryOptions{}
	}
	k := opts.K
	if k <= 0 {
		k = o.cfg.TopK
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = o.cfg.MinScore
	}
	if templateName == "" {
		templateName = o.defaultTemplate
	}

	embedded, err := o.compute.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := o.retriever.Query(ctx, embedded.Embedding, k, minScore)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(matches))
	sources := make([]models.SourceRef, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
		sources[i] = models.SourceRef{NoteTitle: m.NoteTitle, Score: m.Score}
	}
	rendered, err := o.templates.Render(&models.PromptConfig{
		Query:                text,
		Context:              models.PromptContext{Text: strings.Join(texts, chunkSeparator), Sources: sources},
		TemplateName:         templateName,
		IncludeMetadata:      opts.IncludeMetadata,
		SystemPromptOverride: opts.SystemPromptOverride,
		Examples:             opts.Examples,
	})
	if err != nil {
		return nil, err
	}
	if o.logger != nil {
		o.logger.Debug("query answered",
			zap.String("query", utils.Truncate(text, 80)),
			zap.String("template", rendered.TemplateName),
			zap.Int("matches", len(matches)))
	}
	return &QueryResult{Prompt: rendered, Matches: matches}, nil
}

// InvalidateNote marks all chunks of noteID stale; they are excluded from
// retrieval until the next indexing pass re-embeds them.
func (o *Orchestrator) InvalidateNote(noteID string) int {
	n := o.store.Invalidate(noteID)
	if o.logger != nil {
		o.logger.Debug("note invalidated", zap.String("note_id", noteID), zap.Int("chunks", n))
	}
	return n
}

// RemoveNote purges all chunks of a deleted note from the store.
func (o *Orchestrator) RemoveNote(noteID string) int {
	n := o.store.Remove(noteID)
	if o.logger != nil {
		o.logger.Debug("note removed", zap.String("note_id", noteID), zap.Int("chunks", n))
	}
	return n
}
