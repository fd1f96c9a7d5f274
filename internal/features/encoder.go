// Package features encodes (user, article) pairs into model input vectors.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/yomu/internal/embedding"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// ErrEncoding is returned when a pair cannot be encoded at all.
var ErrEncoding = errors.New("feature encoding failed")

// Scalar feature count appended after the embedding.
const scalarFeatures = 4

// UserContext is the per-request snapshot of what is known about a user.
// Both fields may be nil for anonymous or new users.
type UserContext struct {
	UserID  string
	Profile *models.UserProfile
	Signal  *models.PreferenceSignal
}

// Features is one encoded pair. Degraded is set when the embedding part
// could not be computed and was zero-filled.
type Features struct {
	ArticleID string
	Vector    []float32
	Degraded  bool
}

// Encoder builds feature vectors laid out as
// [embedding | recency | category match | source engagement | declared].
type Encoder struct {
	embedder embedding.Embedder
	halfLife time.Duration
}

// NewEncoder returns an encoder using embedder for article text and
// halfLife for the recency feature.
func NewEncoder(embedder embedding.Embedder, halfLife time.Duration) *Encoder {
	if halfLife <= 0 {
		halfLife = 24 * time.Hour
	}
	return &Encoder{embedder: embedder, halfLife: halfLife}
}

// Dimension is the length of every vector produced by Encode.
func (e *Encoder) Dimension() int {
	return e.embedder.Dimensions() + scalarFeatures
}

// ArticleText is the text embedded for an article.
func ArticleText(a *models.Article) string {
	if a.Summary == "" {
		return a.Title
	}
	return a.Title + ". " + a.Summary
}

// Embedding returns the article's text embedding.
func (e *Encoder) Embedding(ctx context.Context, a *models.Article) ([]float32, error) {
	v, err := e.embedder.Embed(ctx, ArticleText(a))
	if err != nil {
		return nil, err
	}
	if len(v) != e.embedder.Dimensions() {
		return nil, fmt.Errorf("embedding has dimension %d, want %d", len(v), e.embedder.Dimensions())
	}
	return v, nil
}

// Encode builds the vector for (uc, a) as of now.
func (e *Encoder) Encode(ctx context.Context, uc UserContext, a *models.Article, now time.Time) (Features, error) {
	if a == nil {
		return Features{}, fmt.Errorf("%w: nil article", ErrEncoding)
	}
	if err := ctx.Err(); err != nil {
		return Features{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	dim := e.embedder.Dimensions()
	vec := make([]float32, dim+scalarFeatures)
	f := Features{ArticleID: a.ID, Vector: vec}

	emb, err := e.Embedding(ctx, a)
	if err != nil {
		f.Degraded = true
	} else {
		copy(vec, emb)
	}

	vec[dim] = float32(Recency(a.PublishedAt, now, e.halfLife))
	vec[dim+1] = float32(CategoryAffinity(uc.Signal, a.Category))
	vec[dim+2] = float32(SourceAffinity(uc.Signal, a.Source))
	if uc.Profile.Declares(a.Category) {
		vec[dim+3] = 1
	}
	return f, nil
}

// EncodeBatch encodes articles concurrently with at most limit workers.
// Output order matches input order.
func (e *Encoder) EncodeBatch(ctx context.Context, uc UserContext, articles []*models.Article, now time.Time, limit int) ([]Features, error) {
	out := make([]Features, len(articles))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, a := range articles {
		i, a := i, a
		g.Go(func() error {
			f, err := e.Encode(gctx, uc, a, now)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Recency is 2^(-age/halfLife); articles from the future count as fresh.
func Recency(published, now time.Time, halfLife time.Duration) float64 {
	if published.IsZero() {
		return 0
	}
	return utils.HalfLifeDecay(now.Sub(published).Seconds(), halfLife.Seconds())
}

// CategoryAffinity is the user's weight for c relative to their strongest
// category, in [0,1]. Decay scales every weight of a signal by the same
// factor, so the ratio needs no clock.
func CategoryAffinity(s *models.PreferenceSignal, c models.Category) float64 {
	if s == nil {
		return 0
	}
	var top float64
	for _, w := range s.CategoryWeights {
		if w > top {
			top = w
		}
	}
	if top <= 0 {
		return 0
	}
	return clamp01(s.CategoryWeights[c] / top)
}

// SourceAffinity is CategoryAffinity for sources.
func SourceAffinity(s *models.PreferenceSignal, source string) float64 {
	if s == nil {
		return 0
	}
	var top float64
	for _, w := range s.SourceWeights {
		if w > top {
			top = w
		}
	}
	if top <= 0 {
		return 0
	}
	return clamp01(s.SourceWeights[source] / top)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
