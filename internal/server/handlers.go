package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kiroku/internal/embedding"
	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/prompt"
	"github.com/hyperjump/kiroku/internal/rag"
	"github.com/hyperjump/kiroku/internal/retriever"
)

type queryRequest struct {
	Query    string            `json:"query"`
	Template string            `json:"template,omitempty"`
	Options  *rag.QueryOptions `json:"options,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.orchestrator.Query(r.Context(), req.Query, req.Template, req.Options)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, queryStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// queryStatus maps pipeline errors to HTTP statuses: caller sequencing bugs
// and model skew are client-visible conditions, not opaque 500s.
func queryStatus(err error) int {
	switch {
	case errors.Is(err, embedding.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, retriever.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrUnknownTemplate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleIndexCorpus(w http.ResponseWriter, r *http.Request) {
	all, err := s.repo.All(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary, err := s.orchestrator.IndexCorpus(r.Context(), all)
	if err != nil {
		s.logger.Error("corpus indexing failed", zap.Error(err))
		s.respondError(w, queryStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	note := &models.Note{ID: input.ID, Title: input.Title, Content: input.Content, Tags: input.Tags}
	if err := s.repo.Upsert(r.Context(), note); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.keywordIndex.Index(r.Context(), note.ID, note); err != nil {
		s.logger.Warn("keyword indexing failed", zap.String("note_id", note.ID), zap.Error(err))
	}
	summary, err := s.orchestrator.IndexCorpus(r.Context(), []*models.Note{note})
	if err != nil {
		s.logger.Warn("note embedding failed; note stored but not searchable",
			zap.String("note_id", note.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"id": note.ID, "index": summary})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "note not found")
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	note := &models.Note{ID: id, Title: input.Title, Content: input.Content, Tags: input.Tags}
	if err := s.repo.Update(r.Context(), note); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	// Old vectors are now stale; re-embed what changed.
	s.orchestrator.InvalidateNote(id)
	if err := s.keywordIndex.Index(r.Context(), id, note); err != nil {
		s.logger.Warn("keyword indexing failed", zap.String("note_id", id), zap.Error(err))
	}
	summary, err := s.orchestrator.IndexCorpus(r.Context(), []*models.Note{note})
	if err != nil {
		s.logger.Warn("note re-embedding failed", zap.String("note_id", id), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": id, "index": summary})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.orchestrator.RemoveNote(id)
	if err := s.keywordIndex.Delete(r.Context(), id); err != nil {
		s.logger.Warn("keyword delete failed", zap.String("note_id", id), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	hits, err := s.keywordIndex.Search(r.Context(), q, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": q, "hits": hits})
}

type singleShotRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

func (s *Server) handleTaggingPrompt(w http.ResponseWriter, r *http.Request) {
	var req singleShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	vocabulary, err := s.repo.Tags(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"prompt": prompt.RenderTaggingPrompt(req.Text, vocabulary),
	})
}

func (s *Server) handleSummaryPrompt(w http.ResponseWriter, r *http.Request) {
	var req singleShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"prompt": prompt.RenderSummaryPrompt(req.Text, prompt.SummaryStyle(req.Style)),
	})
}

func (s *Server) handleQuestionsPrompt(w http.ResponseWriter, r *http.Request) {
	var req singleShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"prompt": prompt.RenderQuestionsPrompt(req.Text),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	noteCount, err := s.repo.Count(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	keywordDocs, _ := s.keywordIndex.DocCount()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"notes":        noteCount,
		"keyword_docs": keywordDocs,
		"pipeline":     s.orchestrator.State().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
