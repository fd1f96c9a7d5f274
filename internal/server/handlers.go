package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/catalog"
	"github.com/hyperjump/yomu/internal/feedback"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/storage"
)

type badRequest string

func (e badRequest) Error() string { return string(e) }

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

func categoryParam(r *http.Request) (models.Category, error) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if v == "" {
		return "", nil
	}
	c := models.Category(v)
	if !c.Valid() {
		return "", badRequest("unknown category " + strconv.Quote(v))
	}
	return c, nil
}

// status maps service errors to HTTP status codes.
func status(err error) int {
	var bad badRequest
	switch {
	case errors.As(err, &bad), errors.Is(err, feedback.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrAllSourcesFailed):
		return http.StatusBadGateway
	case errors.Is(err, feedback.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respondError(w, code, err.Error())
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.deps.Feeds.Trending(r.Context(), category, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req := models.FeedRequest{
		UserID:   UserFromContext(r.Context()),
		Category: category,
		Limit:    limit,
		Offset:   offset,
	}
	s.logger.Debug("feed request", zap.String("user", req.UserID), zap.String("category", string(category)))
	resp, err := s.deps.Feeds.Feed(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.deps.Feeds.Search(r.Context(), models.SearchRequest{
		Query:    q,
		Category: category,
		Limit:    limit,
		UserID:   UserFromContext(r.Context()),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type interactionRequest struct {
	ArticleID       string     `json:"article_id"`
	Kind            string     `json:"kind"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ev := models.InteractionEvent{
		UserID:          UserFromContext(r.Context()),
		ArticleID:       req.ArticleID,
		Kind:            models.InteractionKind(req.Kind),
		DurationSeconds: req.DurationSeconds,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}
	ack, err := s.deps.Feedback.Record(r.Context(), ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ack)
}

type refreshResponse struct {
	ingest.Report
	Error string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	report, err := s.deps.Ingest.Refresh(r.Context())
	if err != nil {
		code := status(err)
		if code >= http.StatusInternalServerError {
			s.logger.Warn("refresh failed", zap.Error(err))
		}
		respondJSON(w, code, refreshResponse{Report: report, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, refreshResponse{Report: report})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := s.deps.Catalog.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user := UserFromContext(r.Context()); user != "" {
		_, err := s.deps.Feedback.Record(r.Context(), models.InteractionEvent{
			UserID:    user,
			ArticleID: article.ID,
			Kind:      models.KindView,
		})
		if err != nil {
			s.logger.Warn("failed to record view", zap.String("article", article.ID), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.deps.Feeds.Similar(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"articles": items, "total": len(items)})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Catalog.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": counts})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Catalog.Sources(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sources": counts})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	sig, err := s.deps.Feedback.Signal(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sig)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := s.deps.Feedback.History(r.Context(), UserFromContext(r.Context()), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []*models.InteractionEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events, "total": len(events)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.deps.Catalog.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	categories, err := s.deps.Catalog.Categories(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sources, err := s.deps.Catalog.Sources(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]interface{}{
		"articles":   count,
		"categories": categories,
		"sources":    len(sources),
	}
	if s.deps.Model != nil {
		resp["model_version"] = s.deps.Model.Version()
	}
	if s.deps.Ingest != nil {
		resp["adapters"] = s.deps.Ingest.Adapters()
	}
	if s.storage != nil {
		if diskBytes, err := storage.DiskUsageBytes(s.storage.DatabasePath, s.storage.BleveIndexPath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
