// Package server provides the HTTP API for yomu.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/feedback"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// FeedService assembles ranked article lists.
type FeedService interface {
	Feed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error)
	Trending(ctx context.Context, category models.Category, limit int) (*models.FeedResponse, error)
	Search(ctx context.Context, req models.SearchRequest) (*models.FeedResponse, error)
	Similar(ctx context.Context, articleID string, limit int) ([]models.RankedArticle, error)
}

// CatalogService is the read side of the article catalog.
type CatalogService interface {
	Get(ctx context.Context, id string) (*models.Article, error)
	Categories(ctx context.Context) ([]models.CategoryCount, error)
	Sources(ctx context.Context) ([]models.SourceCount, error)
	Count(ctx context.Context) (int64, error)
}

// FeedbackService records interactions and exposes preference state.
type FeedbackService interface {
	Record(ctx context.Context, event models.InteractionEvent) (feedback.Ack, error)
	Signal(ctx context.Context, userID string) (*models.PreferenceSignal, error)
	History(ctx context.Context, userID string, limit int) ([]*models.InteractionEvent, error)
}

// IngestService runs on-demand ingestion.
type IngestService interface {
	Refresh(ctx context.Context) (ingest.Report, error)
	Adapters() []string
}

// ModelInfo reports the loaded scoring model.
type ModelInfo interface {
	Version() string
}

// Deps are the services behind the API.
type Deps struct {
	Feeds    FeedService
	Catalog  CatalogService
	Feedback FeedbackService
	Ingest   IngestService
	Model    ModelInfo
	Auth     AuthProvider
}

// Server is the HTTP server for the yomu API.
type Server struct {
	deps    Deps
	config  *config.ServerConfig
	storage *config.StorageConfig
	logger  *zap.Logger
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server with the given dependencies. storage is used
// for disk usage in /stats and may be nil.
func NewServer(deps Deps, cfg *config.ServerConfig, storage *config.StorageConfig, logger *zap.Logger) *Server {
	if deps.Auth == nil {
		deps.Auth = NewTokenAuth(config.AuthConfig{})
	}
	s := &Server{
		deps:    deps,
		config:  cfg,
		storage: storage,
		logger:  utils.OrNop(logger),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/trending", s.handleTrending)
		r.Get("/search", s.handleSearch)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/articles/{id}", s.handleGetArticle)
		r.Get("/articles/{id}/similar", s.handleSimilar)
		r.Get("/categories", s.handleCategories)
		r.Get("/sources", s.handleSources)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/feed", s.handleFeed)
			r.Post("/interactions", s.handleInteraction)
			r.Get("/preferences", s.handlePreferences)
			r.Get("/history", s.handleHistory)
		})
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := s.Stop(context.Background()); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) String() string { return "http-server" }
