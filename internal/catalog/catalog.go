// Package catalog is the durable store of canonical articles. Writes are
// merge-upserts serialized per article; reads go straight to storage and the
// full-text index without taking write locks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/keyword"
	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/pkg/utils"
)

// ErrNotFound is returned when an article does not exist.
var ErrNotFound = errors.New("article not found")

const lockStripes = 256

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Article *models.Article
	Created bool
	Changed bool
}

// Catalog owns article lifecycle.
type Catalog struct {
	store  storage.Storage
	index  keyword.ArticleIndex
	locks  [lockStripes]sync.Mutex
	logger *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = utils.OrNop(l) }
}

// New returns a catalog over store and index.
func New(store storage.Storage, index keyword.ArticleIndex, opts ...Option) *Catalog {
	c := &Catalog{store: store, index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &c.locks[h.Sum32()%lockStripes]
}

// Upsert merges article into the stored article with the same id, or inserts
// it, and records its fingerprint as an alias of that id. Concurrent upserts
// of one id are serialized; different ids proceed in parallel.
func (c *Catalog) Upsert(ctx context.Context, article models.Article) (UpsertResult, error) {
	if article.ID == "" {
		return UpsertResult{}, fmt.Errorf("failed to upsert article: empty id")
	}
	mu := c.lockFor(article.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.store.GetArticle(ctx, article.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return UpsertResult{}, fmt.Errorf("failed to read article: %w", err)
	}
	created := existing == nil
	merged := article
	if !created {
		merged = models.MergeArticle(*existing, article)
	}
	changed := created || merged != *existing

	if changed {
		if err := c.store.PutArticle(ctx, &merged); err != nil {
			return UpsertResult{}, err
		}
		if err := c.index.Index(ctx, &merged); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to index article: %w", err)
		}
		result := "updated"
		if created {
			result = "created"
		}
		metrics.ArticlesUpserted.WithLabelValues(result).Inc()
	}
	if article.Fingerprint != "" {
		if err := c.store.PutAlias(ctx, article.Fingerprint, merged.ID); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to record alias: %w", err)
		}
	}
	return UpsertResult{Article: &merged, Created: created, Changed: changed}, nil
}

// Get returns the article with id, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Article, error) {
	a, err := c.store.GetArticle(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return a, err
}

// ResolveFingerprint returns the article id a fingerprint was merged into.
func (c *Catalog) ResolveFingerprint(ctx context.Context, fingerprint string) (string, bool, error) {
	id, err := c.store.ResolveAlias(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Recent returns up to limit articles published since the given time, newest first.
func (c *Catalog) Recent(ctx context.Context, since time.Time, limit int) ([]*models.Article, error) {
	return c.store.ListArticles(ctx, storage.ArticleFilter{Since: since, Limit: limit})
}

// QueryByCategory returns up to limit articles of category published since
// the given time, newest first.
func (c *Catalog) QueryByCategory(ctx context.Context, category models.Category, since time.Time, limit int) ([]*models.Article, error) {
	return c.store.ListArticles(ctx, storage.ArticleFilter{Category: category, Since: since, Limit: limit})
}

// SearchHit is an article matched by Search with its text relevance.
type SearchHit struct {
	Article *models.Article
	Score   float64
}

// Search returns articles matching query, optionally within category. When
// the exact query finds nothing, a fuzzy query is tried.
func (c *Catalog) Search(ctx context.Context, query string, category models.Category, limit int) ([]SearchHit, error) {
	opts := &keyword.SearchOptions{Category: category, TitleBoost: 3}
	results, err := c.index.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		opts.FuzzyEnabled = true
		if results, err = c.index.Search(ctx, query, limit, opts); err != nil {
			return nil, fmt.Errorf("failed to search: %w", err)
		}
	}
	ids := make([]string, len(results))
	scores := make(map[string]float64, len(results))
	for i, r := range results {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}
	articles, err := c.store.GetArticles(ctx, ids)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, len(articles))
	for i, a := range articles {
		hits[i] = SearchHit{Article: a, Score: scores[a.ID]}
	}
	return hits, nil
}

// Categories returns article counts per category.
func (c *Catalog) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	return c.store.CountByCategory(ctx)
}

// Sources returns article counts per source.
func (c *Catalog) Sources(ctx context.Context) ([]models.SourceCount, error) {
	return c.store.CountBySource(ctx)
}

// Count returns the number of articles.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	return c.store.CountArticles(ctx)
}
