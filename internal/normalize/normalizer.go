package normalize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Catalog is the read side of the article catalog the normalizer resolves against.
type Catalog interface {
	ResolveFingerprint(ctx context.Context, fingerprint string) (string, bool, error)
	Recent(ctx context.Context, since time.Time, limit int) ([]*models.Article, error)
}

// Config holds dedup policy.
type Config struct {
	// SimilarityThreshold is the minimum TitleSimilarity for two stories from
	// different domains to be merged.
	SimilarityThreshold float64
	// FuzzyWindow bounds how far back catalog articles are considered for fuzzy merges.
	FuzzyWindow time.Duration
	// FuzzyPool caps the number of catalog articles compared per cycle.
	FuzzyPool int
	// Trusted orders source names from most to least trusted.
	Trusted []string
}

// Normalizer turns one cycle's raw articles into canonical articles whose ids
// point at the catalog entry they should be merged into.
type Normalizer struct {
	catalog Catalog
	cfg     Config
	trust   map[string]int
	logger  *zap.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) { n.logger = utils.OrNop(l) }
}

// New returns a Normalizer resolving against catalog.
func New(catalog Catalog, cfg Config, opts ...Option) *Normalizer {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = 0.85
	}
	if cfg.FuzzyWindow <= 0 {
		cfg.FuzzyWindow = 72 * time.Hour
	}
	if cfg.FuzzyPool <= 0 {
		cfg.FuzzyPool = 1000
	}
	trust := make(map[string]int, len(cfg.Trusted))
	for i, s := range cfg.Trusted {
		trust[strings.ToLower(s)] = i
	}
	n := &Normalizer{catalog: catalog, cfg: cfg, trust: trust, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Canonicalize converts one raw article. ok is false when the item lacks a
// title or URL.
func Canonicalize(raw models.RawArticle, now time.Time) (models.Article, bool) {
	title := extract.Text(raw.Title)
	link := strings.TrimSpace(raw.URL)
	if title == "" || link == "" {
		return models.Article{}, false
	}
	domain := Domain(link)
	if domain == "" {
		domain = strings.ToLower(strings.ReplaceAll(raw.Source, " ", ""))
	}
	source := strings.TrimSpace(raw.Source)
	if source == "" {
		source = domain
	}
	seen := raw.FetchedAt
	if seen.IsZero() {
		seen = now
	}
	published := raw.PublishedAt
	if published.IsZero() || published.After(seen) {
		published = seen
	}
	summary := extract.Text(raw.Summary)
	body := extract.Text(raw.Body)
	if body == "" {
		body = summary
	}
	return models.Article{
		ID:           ArticleID(title, domain),
		Fingerprint:  Fingerprint(title, domain),
		Title:        title,
		Summary:      summary,
		Body:         body,
		URL:          link,
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		Author:       strings.TrimSpace(raw.Author),
		Source:       source,
		SourceDomain: domain,
		Category:     MapCategory(raw.Provider, raw.ProviderCategory),
		PublishedAt:  published.UTC(),
		LastUpdated:  seen.UTC(),
		FirstSeen:    seen.UTC(),
	}, true
}

// Normalize canonicalizes raws, collapses same-fingerprint items and assigns
// each result the id of the article it merges into: an alias hit, a fuzzy
// match in the catalog or earlier in the batch, or its own fresh id. Results
// are ordered so that merge targets precede the items merged into them, and
// must be upserted in that order.
func (n *Normalizer) Normalize(ctx context.Context, raws []models.RawArticle, now time.Time) ([]models.Article, error) {
	byFP := make(map[string]int)
	batch := make([]models.Article, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		a, ok := Canonicalize(raw, now)
		if !ok {
			dropped++
			continue
		}
		if i, dup := byFP[a.Fingerprint]; dup {
			batch[i] = models.MergeArticle(batch[i], a)
			continue
		}
		byFP[a.Fingerprint] = len(batch)
		batch = append(batch, a)
	}
	if dropped > 0 {
		n.logger.Debug("Dropped raw articles without title or url", zap.Int("count", dropped))
	}

	sort.SliceStable(batch, func(i, j int) bool { return n.before(&batch[i], &batch[j]) })

	existing, err := n.catalog.Recent(ctx, now.Add(-n.cfg.FuzzyWindow), n.cfg.FuzzyPool)
	if err != nil {
		return nil, fmt.Errorf("failed to load fuzzy candidates: %w", err)
	}

	var accepted []*models.Article
	for i := range batch {
		a := &batch[i]
		id, ok, err := n.catalog.ResolveFingerprint(ctx, a.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fingerprint: %w", err)
		}
		if ok {
			a.ID = id
			continue
		}
		if target := n.bestMatch(a, existing); target != nil {
			n.logger.Debug("Merged near-duplicate into catalog article",
				zap.String("title", a.Title), zap.String("domain", a.SourceDomain), zap.String("target", target.ID),
				zap.Float64("similarity", TitleSimilarity(a.Title, target.Title)))
			a.ID = target.ID
			continue
		}
		if target := n.bestMatch(a, accepted); target != nil {
			a.ID = target.ID
			continue
		}
		accepted = append(accepted, a)
	}
	return batch, nil
}

// bestMatch returns the preferred pool article from another domain whose
// title is similar enough to a's, or nil.
func (n *Normalizer) bestMatch(a *models.Article, pool []*models.Article) *models.Article {
	var best *models.Article
	for _, c := range pool {
		if c.SourceDomain == a.SourceDomain || c.ID == a.ID {
			continue
		}
		if !n.similar(a.Title, c.Title) {
			continue
		}
		if best == nil || n.before(c, best) {
			best = c
		}
	}
	return best
}

func (n *Normalizer) similar(a, b string) bool {
	return TitlesSimilar(a, b, n.cfg.SimilarityThreshold)
}

// before orders articles by earliest publication, then trusted source order,
// then id.
func (n *Normalizer) before(a, b *models.Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	ra, rb := n.rank(a.Source), n.rank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func (n *Normalizer) rank(source string) int {
	if r, ok := n.trust[strings.ToLower(source)]; ok {
		return r
	}
	return len(n.trust)
}
