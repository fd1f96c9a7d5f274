// Package ingest runs ingestion cycles: fetch from every source, normalize,
// and upsert into the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/yomu/internal/catalog"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/source"
	"github.com/hyperjump/yomu/pkg/utils"
)

// ErrAllSourcesFailed is returned when no source delivered anything in a cycle.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Normalizer canonicalizes and deduplicates a cycle's raw articles.
type Normalizer interface {
	Normalize(ctx context.Context, raws []models.RawArticle, now time.Time) ([]models.Article, error)
}

// Upserter is the write side of the catalog.
type Upserter interface {
	Upsert(ctx context.Context, article models.Article) (catalog.UpsertResult, error)
}

// SourceFailure describes one failed fetch.
type SourceFailure struct {
	Source   string             `json:"source"`
	Category models.Category    `json:"category"`
	Kind     source.FailureKind `json:"kind"`
	Error    string             `json:"error"`
}

// Report summarizes one cycle. Ingested counts articles created or changed
// in the catalog; Fetched counts raw items before normalization and dedup.
type Report struct {
	Ingested         int             `json:"ingested"`
	Fetched          int             `json:"fetched"`
	Created          int             `json:"created"`
	Updated          int             `json:"updated"`
	SucceededCount   int             `json:"succeeded_count"`
	FailedCount      int             `json:"failed_count"`
	SucceededSources []string        `json:"succeeded_sources"`
	FailedSources    []string        `json:"failed_sources"`
	Failures         []SourceFailure `json:"failures,omitempty"`
	Duration         time.Duration   `json:"duration"`
}

// Outcome labels the cycle for metrics: ok, partial or failed.
func (r Report) Outcome() string {
	switch {
	case len(r.FailedSources) == 0:
		return "ok"
	case len(r.SucceededSources) == 0:
		return "failed"
	}
	return "partial"
}

// Scheduler owns the ingestion cadence.
type Scheduler struct {
	normalizer Normalizer
	catalog    Upserter
	config     config.IngestConfig
	categories []models.Category
	invalidate func()
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.RWMutex
	adapters []source.Adapter

	cycleMu sync.Mutex
	trigger chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = utils.OrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithInvalidator sets the callback run after a cycle that changed the catalog.
func WithInvalidator(fn func()) Option {
	return func(s *Scheduler) { s.invalidate = fn }
}

// New creates a Scheduler.
func New(adapters []source.Adapter, normalizer Normalizer, cat Upserter, cfg config.IngestConfig, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 5 * time.Minute
	}
	if cfg.PerSourceLimit <= 0 {
		cfg.PerSourceLimit = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	s := &Scheduler{
		normalizer: normalizer,
		catalog:    cat,
		config:     cfg,
		categories: parseCategories(cfg.Categories),
		invalidate: func() {},
		logger:     zap.NewNop(),
		now:        time.Now,
		adapters:   adapters,
		trigger:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func parseCategories(names []string) []models.Category {
	var out []models.Category
	for _, n := range names {
		if c := models.Category(n); c.Valid() {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return models.Categories
	}
	return out
}

// SetAdapters replaces the adapter set used by subsequent cycles.
func (s *Scheduler) SetAdapters(adapters []source.Adapter) {
	s.mu.Lock()
	s.adapters = adapters
	s.mu.Unlock()
}

// Adapters returns the names of the current adapters.
func (s *Scheduler) Adapters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Name()
	}
	return names
}

// carried returns the configured categories a serves.
func (s *Scheduler) carried(a source.Adapter) []models.Category {
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if source.Carries(a, c) {
			out = append(out, c)
		}
	}
	return out
}

type fetchResult struct {
	source   string
	category models.Category
	items    []models.RawArticle
	err      error
}

// RunCycle runs one ingestion cycle. Cycles never overlap; a call made while
// another cycle runs waits for it.
func (s *Scheduler) RunCycle(ctx context.Context) (Report, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	s.mu.RLock()
	adapters := s.adapters
	s.mu.RUnlock()

	var report Report
	if len(adapters) == 0 {
		s.logger.Warn("Ingestion cycle skipped, no sources configured")
		return report, nil
	}

	jobs := 0
	for _, a := range adapters {
		jobs += len(s.carried(a))
	}
	results := make(chan fetchResult, jobs)
	// Each adapter gets its own pool so a slow source never holds workers
	// another source is waiting for.
	var wg sync.WaitGroup
	for _, a := range adapters {
		a := a
		categories := s.carried(a)
		if len(categories) == 0 {
			s.logger.Debug("Source carries no configured category", zap.String("source", a.Name()))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(s.config.Workers)
			for _, c := range categories {
				c := c
				g.Go(func() error {
					fctx, cancel := context.WithTimeout(gctx, s.config.FetchTimeout)
					defer cancel()
					items, err := a.Fetch(fctx, c, s.config.PerSourceLimit)
					results <- fetchResult{source: a.Name(), category: c, items: items, err: err}
					return nil
				})
			}
			_ = g.Wait()
		}()
	}
	wg.Wait()
	close(results)

	attempts := make(map[string]int)
	failures := make(map[string]int)
	var raws []models.RawArticle
	for r := range results {
		attempts[r.source]++
		if r.err != nil {
			failures[r.source]++
			f := source.AsFailure(r.source, r.err)
			report.Failures = append(report.Failures, SourceFailure{
				Source: r.source, Category: r.category, Kind: f.Kind, Error: f.Error(),
			})
			s.logger.Warn("Source fetch failed",
				zap.String("source", r.source),
				zap.String("category", string(r.category)),
				zap.String("kind", string(f.Kind)),
				zap.Error(f.Err))
			continue
		}
		raws = append(raws, r.items...)
	}
	for name, n := range attempts {
		if failures[name] == n {
			report.FailedSources = append(report.FailedSources, name)
		} else {
			report.SucceededSources = append(report.SucceededSources, name)
		}
	}
	sort.Strings(report.SucceededSources)
	sort.Strings(report.FailedSources)
	sort.Slice(report.Failures, func(i, j int) bool {
		if report.Failures[i].Source != report.Failures[j].Source {
			return report.Failures[i].Source < report.Failures[j].Source
		}
		return report.Failures[i].Category < report.Failures[j].Category
	})
	report.SucceededCount = len(report.SucceededSources)
	report.FailedCount = len(report.FailedSources)
	report.Fetched = len(raws)

	if len(report.SucceededSources) == 0 {
		report.Duration = time.Since(start)
		metrics.RecordIngestCycle(report.Outcome(), report.Duration)
		s.logger.Error("Ingestion cycle failed, every source failed",
			zap.Strings("sources", report.FailedSources),
			zap.Duration("duration", report.Duration))
		return report, ErrAllSourcesFailed
	}

	articles, err := s.normalizer.Normalize(ctx, raws, s.now())
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("failed to normalize articles: %w", err)
	}
	for _, a := range articles {
		res, err := s.catalog.Upsert(ctx, a)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("failed to upsert article: %w", err)
		}
		switch {
		case res.Created:
			report.Created++
		case res.Changed:
			report.Updated++
		}
	}
	report.Ingested = report.Created + report.Updated
	if report.Ingested > 0 {
		s.invalidate()
	}

	report.Duration = time.Since(start)
	metrics.RecordIngestCycle(report.Outcome(), report.Duration)
	s.logger.Info("Ingestion cycle complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("ingested", report.Ingested),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Strings("failed_sources", report.FailedSources),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Refresh runs a cycle on demand. The caller going away does not abort the
// cycle; the cycle timeout still bounds it.
func (s *Scheduler) Refresh(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CycleTimeout)
	defer cancel()
	return s.RunCycle(ctx)
}

// Trigger asks the Serve loop to run a cycle soon. Triggers coalesce.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve runs cycles on the configured interval and on Trigger until ctx is
// cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc("@every "+s.config.Interval.String(), s.Trigger); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}
	c.Start()
	defer c.Stop()

	if s.config.RunOnStartOrDefault() {
		s.Trigger()
	}
	s.logger.Info("Ingestion scheduler started", zap.Duration("interval", s.config.Interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			cctx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
			if _, err := s.RunCycle(cctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Scheduled ingestion cycle failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (s *Scheduler) String() string { return "ingest-scheduler" }
