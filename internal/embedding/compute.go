package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModelState is the lifecycle state of the compute unit's model.
type ModelState int32

const (
	StateUninitialized ModelState = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns the state name.
func (s ModelState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotInitialized is returned for embed requests issued before Init completes.
	ErrNotInitialized = errors.New("embedding model not initialized")
	// ErrModelLoad wraps a fatal model load failure. Load is never retried
	// automatically; a second Init after failure returns the same error.
	ErrModelLoad = errors.New("embedding model load failed")
	// ErrUnitClosed is returned for requests issued after Close.
	ErrUnitClosed = errors.New("compute unit closed")
)

// ModelLoader loads the embedding model identified by modelID.
type ModelLoader func(modelID string) (Embedder, error)

// EmbedResult is the result of a single embed request.
type EmbedResult struct {
	Embedding        []float32 `json:"embedding"`
	Dimensions       int       `json:"dimensions"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// BatchItem is one correlated result of a batch request, in input order.
// A failed item carries Err and a nil Embedding; other items are unaffected.
type BatchItem struct {
	Text             string
	Embedding        []float32
	ProcessingTimeMs int64
	Err              error
}

// Request and response message variants exchanged with the compute loop.
// Every response echoes the correlation ID of its request so callers can
// demultiplex completions even if the loop is later parallelized.

type computeRequest interface {
	correlationID() string
}

type initRequest struct {
	id      string
	modelID string
	reply   chan initResponse
}

func (r initRequest) correlationID() string { return r.id }

type initResponse struct {
	ID  string
	Err error
}

type embedRequest struct {
	id    string
	ctx   context.Context
	text  string
	reply chan embedResponse
}

func (r embedRequest) correlationID() string { return r.id }

type embedResponse struct {
	ID     string
	Result *EmbedResult
	Err    error
}

type batchRequest struct {
	id    string
	ctx   context.Context
	texts []string
	reply chan batchResponse
}

func (r batchRequest) correlationID() string { return r.id }

type batchResponse struct {
	ID    string
	Items []BatchItem
	Err   error
}

type loadResult struct {
	embedder Embedder
	err      error
}

// ComputeUnit isolates model execution on a single dedicated goroutine so
// embedding never blocks the caller's control flow. The model is loaded at
// most once: concurrent Init calls queue behind the in-flight load. Embed and
// EmbedBatch issued before the load completes fail immediately with
// ErrNotInitialized; callers are responsible for sequencing.
type ComputeUnit struct {
	requests chan computeRequest
	loader   ModelLoader
	logger   *zap.Logger
	state    atomic.Int32
	dims     atomic.Int32
	done     chan struct{}
	closed   sync.Once
}

// ComputeOption configures a ComputeUnit.
type ComputeOption func(*ComputeUnit)

// WithLogger sets a logger for debug output (job lifecycle, load events).
func WithLogger(l *zap.Logger) ComputeOption {
	return func(u *ComputeUnit) { u.logger = l }
}

// NewComputeUnit creates a compute unit and starts its execution loop.
// The model is not loaded until Init is called.
func NewComputeUnit(loader ModelLoader, opts ...ComputeOption) *ComputeUnit {
	u := &ComputeUnit{
		requests: make(chan computeRequest, 64),
		loader:   loader,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	go u.run()
	return u
}

// State returns the model lifecycle state.
func (u *ComputeUnit) State() ModelState {
	return ModelState(u.state.Load())
}

// Dimensions returns the embedding dimensionality, or 0 before the model is ready.
func (u *ComputeUnit) Dimensions() int {
	return int(u.dims.Load())
}

// Init loads the model identified by modelID. It is idempotent: when the model
// is already ready it returns immediately, and when a load is in flight the
// caller waits for that load rather than starting a second one. A load failure
// is fatal and surfaced to every waiter; Init never retries.
func (u *ComputeUnit) Init(ctx context.Context, modelID string) error {
	req := initRequest{id: uuid.New().String(), modelID: modelID, reply: make(chan initResponse, 1)}
	if err := u.send(ctx, req); err != nil {
		return err
	}
	select {
	case resp := <-req.reply:
		if resp.ID != req.id {
			return fmt.Errorf("correlation id mismatch: sent %s, got %s", req.id, resp.ID)
		}
		return resp.Err
	case <-ctx.Done():
		return ctx.Err()
	case <-u.done:
		return ErrUnitClosed
	}
}

// Embed converts text into a unit-normalized vector of the model's dimensionality.
// Fails with ErrNotInitialized if called before Init completes.
func (u *ComputeUnit) Embed(ctx context.Context, text string) (*EmbedResult, error) {
	req := embedRequest{id: uuid.New().String(), ctx: ctx, text: text, reply: make(chan embedResponse, 1)}
	if err := u.send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case resp := <-req.reply:
		if resp.ID != req.id {
			return nil, fmt.Errorf("correlation id mismatch: sent %s, got %s", req.id, resp.ID)
		}
		return resp.Result, resp.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-u.done:
		return nil, ErrUnitClosed
	}
}

// EmbedBatch embeds texts sequentially, returning one correlated item per
// input in input order. Individual failures are carried on the item rather
// than aborting the batch. Fails with ErrNotInitialized before Init completes.
func (u *ComputeUnit) EmbedBatch(ctx context.Context, texts []string) ([]BatchItem, error) {
	req := batchRequest{id: uuid.New().String(), ctx: ctx, texts: texts, reply: make(chan batchResponse, 1)}
	if err := u.send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case resp := <-req.reply:
		if resp.ID != req.id {
			return nil, fmt.Errorf("correlation id mismatch: sent %s, got %s", req.id, resp.ID)
		}
		return resp.Items, resp.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-u.done:
		return nil, ErrUnitClosed
	}
}

// Close stops the execution loop and releases the model. Requests in flight
// or issued after Close fail with ErrUnitClosed.
func (u *ComputeUnit) Close() error {
	u.closed.Do(func() { close(u.done) })
	return nil
}

func (u *ComputeUnit) send(ctx context.Context, req computeRequest) error {
	select {
	case u.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-u.done:
		return ErrUnitClosed
	}
}

// run is the single-threaded execution loop. All model state lives here;
// nothing crosses the boundary except messages. Requests are processed in the
// order received, so result ordering is first-in-first-out today, but callers
// must demultiplex by correlation ID, not position.
func (u *ComputeUnit) run() {
	var (
		emb     Embedder
		loadErr error
		waiters []initRequest
		loadCh  chan loadResult
	)
	setState := func(s ModelState) { u.state.Store(int32(s)) }

	defer func() {
		if emb != nil {
			_ = emb.Close()
		}
	}()

	for {
		select {
		case <-u.done:
			return

		case res := <-loadCh:
			loadCh = nil
			if res.err != nil {
				loadErr = fmt.Errorf("%w: %v", ErrModelLoad, res.err)
				setState(StateFailed)
				if u.logger != nil {
					u.logger.Error("model load failed", zap.Error(res.err))
				}
			} else {
				emb = res.embedder
				u.dims.Store(int32(emb.Dimensions()))
				setState(StateReady)
				if u.logger != nil {
					u.logger.Info("model ready", zap.Int("dimensions", emb.Dimensions()))
				}
			}
			for _, w := range waiters {
				w.reply <- initResponse{ID: w.id, Err: loadErr}
			}
			waiters = nil

		case req := <-u.requests:
			switch r := req.(type) {
			case initRequest:
				switch u.State() {
				case StateReady:
					r.reply <- initResponse{ID: r.id}
				case StateFailed:
					r.reply <- initResponse{ID: r.id, Err: loadErr}
				case StateLoading:
					waiters = append(waiters, r)
				default:
					setState(StateLoading)
					waiters = append(waiters, r)
					if u.logger != nil {
						u.logger.Info("loading model", zap.String("model", r.modelID), zap.String("job_id", r.id))
					}
					loadCh = make(chan loadResult, 1)
					go func(modelID string, out chan<- loadResult) {
						e, err := u.loader(modelID)
						out <- loadResult{embedder: e, err: err}
					}(r.modelID, loadCh)
				}

			case embedRequest:
				if u.State() != StateReady {
					r.reply <- embedResponse{ID: r.id, Err: ErrNotInitialized}
					continue
				}
				start := time.Now()
				vec, err := emb.Embed(r.ctx, r.text)
				if err != nil {
					r.reply <- embedResponse{ID: r.id, Err: err}
					continue
				}
				r.reply <- embedResponse{ID: r.id, Result: &EmbedResult{
					Embedding:        vec,
					Dimensions:       len(vec),
					ProcessingTimeMs: time.Since(start).Milliseconds(),
				}}

			case batchRequest:
				if u.State() != StateReady {
					r.reply <- batchResponse{ID: r.id, Err: ErrNotInitialized}
					continue
				}
				items := make([]BatchItem, len(r.texts))
				for i, text := range r.texts {
					items[i].Text = text
					start := time.Now()
					vec, err := emb.Embed(r.ctx, text)
					items[i].ProcessingTimeMs = time.Since(start).Milliseconds()
					if err != nil {
						items[i].Err = err
						continue
					}
					items[i].Embedding = vec
				}
				r.reply <- batchResponse{ID: r.id, Items: items}
			}
		}
	}
}
