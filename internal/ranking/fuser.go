// Package ranking turns model predictions and heuristics into ordered,
// diversity-capped article lists.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/hyperjump/yomu/internal/features"
	"github.com/hyperjump/yomu/internal/inference"
	"github.com/hyperjump/yomu/internal/models"
)

// Candidate is an article with its model prediction.
type Candidate struct {
	Article    *models.Article
	Prediction inference.Prediction
}

// Fuser scores candidates and applies the diversity caps.
type Fuser struct {
	config *RankingConfig
}

// NewFuser creates a Fuser; nil config uses defaults.
func NewFuser(config *RankingConfig) *Fuser {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()
	return &Fuser{config: config}
}

// Config returns the effective configuration.
func (f *Fuser) Config() RankingConfig {
	return *f.config
}

// Score combines click probability and normalized dwell, decayed by age:
// (Wc * click + Wd * min(dwell/norm, 1)) * 2^(-age/halfLife).
func (f *Fuser) Score(c Candidate, now time.Time) float64 {
	dwell := math.Min(math.Max(c.Prediction.DwellSeconds, 0)/f.config.DwellNormSeconds, 1)
	base := f.config.ClickWeight*c.Prediction.ClickProbability + f.config.DwellWeight*dwell
	return base * f.recency(c.Article, now)
}

// Rank scores all candidates and returns them ordered with diversity caps
// enforced per page of n.
func (f *Fuser) Rank(candidates []Candidate, now time.Time, n int) []models.RankedArticle {
	items := make([]models.RankedArticle, 0, len(candidates))
	for _, c := range candidates {
		if c.Article == nil {
			continue
		}
		items = append(items, models.RankedArticle{
			Article:          c.Article,
			Score:            f.Score(c, now),
			ClickProbability: c.Prediction.ClickProbability,
			DwellSeconds:     c.Prediction.DwellSeconds,
		})
	}
	return f.Diversify(items, n)
}

// FallbackScore ranks without a model: recency boosted by the user's
// category affinity in [0,1].
func (f *Fuser) FallbackScore(a *models.Article, categoryMatch float64, now time.Time) float64 {
	return f.recency(a, now) * (1 + categoryMatch)
}

// TrendingScore blends recency, engagement normalized to [0,1] and source
// credibility.
func (f *Fuser) TrendingScore(a *models.Article, engagement float64, now time.Time) float64 {
	return 0.6*f.recency(a, now) + 0.3*engagement + 0.1*Credibility(a.Source, a.SourceDomain)
}

func (f *Fuser) recency(a *models.Article, now time.Time) float64 {
	return features.Recency(a.PublishedAt, now, f.config.RecencyHalfLife)
}

// SortRanked orders by score desc, published_at desc, id asc.
func SortRanked(items []models.RankedArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
			return a.Article.PublishedAt.After(b.Article.PublishedAt)
		}
		return a.Article.ID < b.Article.ID
	})
}
