package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/yomu/internal/catalog"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/keyword"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/normalize"
	"github.com/hyperjump/yomu/internal/source"
	"github.com/hyperjump/yomu/internal/storage"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	name  string
	calls atomic.Int32
	fetch func(ctx context.Context, c models.Category) ([]models.RawArticle, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, c models.Category, _ int) ([]models.RawArticle, error) {
	f.calls.Add(1)
	return f.fetch(ctx, c)
}

func staticAdapter(name, domain string, titles map[models.Category][]string) *fakeAdapter {
	return &fakeAdapter{name: name, fetch: func(_ context.Context, c models.Category) ([]models.RawArticle, error) {
		var out []models.RawArticle
		for i, title := range titles[c] {
			out = append(out, models.RawArticle{
				Source:           name,
				Provider:         "rss",
				Title:            title,
				URL:              "https://" + domain + "/" + string(c) + "/" + string(rune('a'+i)),
				ProviderCategory: string(c),
				PublishedAt:      now.Add(-time.Hour),
				FetchedAt:        now,
			})
		}
		return out, nil
	}}
}

type fixture struct {
	store   *storage.SQLiteStorage
	catalog *catalog.Catalog
	norm    *normalize.Normalizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = idx.Close()
		_ = store.Close()
	})
	cat := catalog.New(store, idx)
	return &fixture{store: store, catalog: cat, norm: normalize.New(cat, normalize.Config{})}
}

func (f *fixture) scheduler(adapters []source.Adapter, cfg config.IngestConfig, opts ...Option) *Scheduler {
	if len(cfg.Categories) == 0 {
		cfg.Categories = []string{"technology", "science"}
	}
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(adapters, f.norm, f.catalog, cfg, opts...)
}

func TestRunCycle_IngestsAndSurvivesSlowSource(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", map[models.Category][]string{
		models.CategoryTechnology: {"Chipmaker unveils new processor", "Open source database hits 2.0"},
		models.CategoryScience:    {"Telescope captures distant galaxy"},
	})
	b := staticAdapter("beta", "beta.example", map[models.Category][]string{
		models.CategoryScience: {"Researchers map ocean floor currents"},
	})
	slow := &fakeAdapter{name: "slow", fetch: func(ctx context.Context, _ models.Category) ([]models.RawArticle, error) {
		<-ctx.Done()
		return nil, &source.Failure{Source: "slow", Kind: source.FailureTimeout, Err: ctx.Err()}
	}}

	var invalidations atomic.Int32
	s := f.scheduler([]source.Adapter{a, b, slow}, config.IngestConfig{FetchTimeout: 50 * time.Millisecond},
		WithInvalidator(func() { invalidations.Add(1) }))

	start := time.Now()
	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "slow source must be bounded by the fetch timeout")

	assert.Equal(t, 4, report.Ingested)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 4, report.Created)
	assert.Zero(t, report.Updated)
	assert.Equal(t, []string{"alpha", "beta"}, report.SucceededSources)
	assert.Equal(t, []string{"slow"}, report.FailedSources)
	assert.Equal(t, 2, report.SucceededCount)
	assert.Equal(t, 1, report.FailedCount)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, source.FailureTimeout, report.Failures[0].Kind)
	assert.Equal(t, "partial", report.Outcome())
	assert.Equal(t, int32(1), invalidations.Load())

	count, err := f.catalog.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestRunCycle_RepeatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", map[models.Category][]string{
		models.CategoryTechnology: {"Chipmaker unveils new processor"},
	})
	var invalidations atomic.Int32
	s := f.scheduler([]source.Adapter{a}, config.IngestConfig{}, WithInvalidator(func() { invalidations.Add(1) }))

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Updated)
	assert.Equal(t, int32(1), invalidations.Load(), "unchanged cycle must not invalidate")
	assert.Equal(t, "ok", report.Outcome())
}

func TestRunCycle_MergesDuplicatesAcrossSources(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", map[models.Category][]string{
		models.CategoryScience: {"Scientists discover new species of deep sea fish"},
	})
	b := staticAdapter("beta", "beta.example", map[models.Category][]string{
		models.CategoryScience: {"Scientists discover new species of deep-sea fish"},
	})
	s := f.scheduler([]source.Adapter{a, b}, config.IngestConfig{})

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Ingested, "duplicates count once")
	assert.Equal(t, 1, report.Created)

	count, err := f.catalog.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunCycle_AllSourcesFailed(t *testing.T) {
	f := newFixture(t)
	broken := &fakeAdapter{name: "broken", fetch: func(context.Context, models.Category) ([]models.RawArticle, error) {
		return nil, &source.Failure{Source: "broken", Kind: source.FailureHTTPStatus, StatusCode: 503, Err: errors.New("503")}
	}}
	s := f.scheduler([]source.Adapter{broken}, config.IngestConfig{})

	report, err := s.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, []string{"broken"}, report.FailedSources)
	assert.Equal(t, "failed", report.Outcome())
	assert.Len(t, report.Failures, 2)
	assert.Zero(t, report.Ingested)
	assert.Equal(t, 1, report.FailedCount)
	assert.Zero(t, report.SucceededCount)
}

func TestRunCycle_SlowSourceDoesNotDelayOthers(t *testing.T) {
	f := newFixture(t)
	slow := &fakeAdapter{name: "aaa-slow", fetch: func(ctx context.Context, _ models.Category) ([]models.RawArticle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	var (
		mu         sync.Mutex
		firstFetch time.Time
	)
	fast := &fakeAdapter{name: "bbb-fast", fetch: func(_ context.Context, c models.Category) ([]models.RawArticle, error) {
		mu.Lock()
		if firstFetch.IsZero() {
			firstFetch = time.Now()
		}
		mu.Unlock()
		return []models.RawArticle{{Source: "Fast", Title: "Fast story " + string(c), URL: "https://fast.example/" + string(c), FetchedAt: now}}, nil
	}}
	s := f.scheduler([]source.Adapter{slow, fast}, config.IngestConfig{
		Categories:   []string{"general", "technology", "business", "health", "science"},
		Workers:      4,
		FetchTimeout: 500 * time.Millisecond,
	})

	start := time.Now()
	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	mu.Lock()
	waited := firstFetch.Sub(start)
	mu.Unlock()
	assert.Less(t, waited, 250*time.Millisecond, "fast source waited for the slow source's workers")
	assert.Less(t, time.Since(start), 1500*time.Millisecond, "slow source should time out within two fetch rounds")
	assert.Equal(t, 5, report.Created)
	assert.Equal(t, []string{"aaa-slow"}, report.FailedSources)
	assert.Equal(t, []string{"bbb-fast"}, report.SucceededSources)
}

type carrierAdapter struct {
	*fakeAdapter
	carries map[models.Category]bool
}

func (c carrierAdapter) Carries(category models.Category) bool { return c.carries[category] }

func TestRunCycle_UncarriedCategoriesAreNotAttempts(t *testing.T) {
	f := newFixture(t)
	inner := &fakeAdapter{name: "narrow", fetch: func(context.Context, models.Category) ([]models.RawArticle, error) {
		return nil, &source.Failure{Source: "narrow", Kind: source.FailureHTTPStatus, StatusCode: 500, Err: errors.New("500")}
	}}
	narrow := carrierAdapter{fakeAdapter: inner, carries: map[models.Category]bool{models.CategoryScience: true}}
	ok := staticAdapter("alpha", "alpha.example", map[models.Category][]string{
		models.CategoryTechnology: {"Chipmaker unveils new processor"},
	})
	s := f.scheduler([]source.Adapter{narrow, ok}, config.IngestConfig{})

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load(), "technology is not carried and must not be fetched")
	assert.Equal(t, []string{"narrow"}, report.FailedSources)
	assert.Equal(t, []string{"alpha"}, report.SucceededSources)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.CategoryScience, report.Failures[0].Category)
}

func TestCarried_GuardedDelegates(t *testing.T) {
	f := newFixture(t)
	narrow := carrierAdapter{fakeAdapter: staticAdapter("narrow", "narrow.example", nil),
		carries: map[models.Category]bool{models.CategoryTechnology: true}}
	s := f.scheduler(nil, config.IngestConfig{})
	guarded := source.Guard(narrow, source.GuardConfig{})
	assert.Equal(t, []models.Category{models.CategoryTechnology}, s.carried(guarded))
	assert.Len(t, s.carried(staticAdapter("any", "any.example", nil)), 2)
}

func TestRunCycle_PartialFailureKeepsSource(t *testing.T) {
	f := newFixture(t)
	mixed := &fakeAdapter{name: "mixed", fetch: func(_ context.Context, c models.Category) ([]models.RawArticle, error) {
		if c == models.CategoryScience {
			return nil, errors.New("connection refused")
		}
		return []models.RawArticle{{Source: "Mixed", Title: "Only tech works", URL: "https://mixed.example/t", FetchedAt: now}}, nil
	}}
	s := f.scheduler([]source.Adapter{mixed}, config.IngestConfig{})

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mixed"}, report.SucceededSources)
	assert.Empty(t, report.FailedSources)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, source.FailureTransport, report.Failures[0].Kind)
}

func TestRunCycle_NoAdapters(t *testing.T) {
	f := newFixture(t)
	report, err := f.scheduler(nil, config.IngestConfig{}).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Ingested)
}

func TestSetAdapters(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", nil)
	b := staticAdapter("beta", "beta.example", nil)
	s := f.scheduler([]source.Adapter{a}, config.IngestConfig{})
	s.SetAdapters([]source.Adapter{b})
	assert.Equal(t, []string{"beta"}, s.Adapters())

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, a.calls.Load())
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestRefresh_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	var once sync.Once
	a := &fakeAdapter{name: "alpha", fetch: func(ctx context.Context, c models.Category) ([]models.RawArticle, error) {
		once.Do(func() { close(started) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		return []models.RawArticle{{Source: "Alpha", Title: "Story " + string(c), URL: "https://alpha.example/" + string(c), FetchedAt: now}}, nil
	}}
	s := f.scheduler([]source.Adapter{a}, config.IngestConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	report, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
}

func TestServe_RunsOnStartAndTrigger(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", nil)
	s := f.scheduler([]source.Adapter{a}, config.IngestConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return a.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	s.Trigger()
	require.Eventually(t, func() bool { return a.calls.Load() == 4 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_SkipsStartupRunWhenDisabled(t *testing.T) {
	f := newFixture(t)
	a := staticAdapter("alpha", "alpha.example", nil)
	off := false
	s := f.scheduler([]source.Adapter{a}, config.IngestConfig{Interval: time.Hour, RunOnStart: &off})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Serve(ctx), context.DeadlineExceeded)
	assert.Zero(t, a.calls.Load())
}
