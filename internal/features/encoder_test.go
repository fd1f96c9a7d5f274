package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/yomu/internal/embedding"
	"github.com/hyperjump/yomu/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type failingEmbedder struct{ *embedding.MockEmbedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func article(id string, cat models.Category, source string, age time.Duration) *models.Article {
	return &models.Article{
		ID:          id,
		Title:       "Title " + id,
		Summary:     "Summary " + id,
		Source:      source,
		Category:    cat,
		PublishedAt: now.Add(-age),
	}
}

func TestEncode_Layout(t *testing.T) {
	enc := NewEncoder(embedding.NewMockEmbedder(8), 24*time.Hour)
	require.Equal(t, 12, enc.Dimension())

	sig := models.NewPreferenceSignal("u1")
	sig.CategoryWeights[models.CategoryTechnology] = 2
	sig.CategoryWeights[models.CategoryScience] = 1
	sig.SourceWeights["Wired"] = 4
	uc := UserContext{
		UserID:  "u1",
		Profile: &models.UserProfile{UserID: "u1", DeclaredCategories: []models.Category{models.CategoryScience}},
		Signal:  sig,
	}

	f, err := enc.Encode(context.Background(), uc, article("a", models.CategoryScience, "Wired", 24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, f.Vector, 12)
	assert.False(t, f.Degraded)
	assert.Equal(t, "a", f.ArticleID)
	assert.InDelta(t, 0.5, f.Vector[8], 1e-6, "recency after one half-life")
	assert.InDelta(t, 0.5, f.Vector[9], 1e-6, "category match")
	assert.InDelta(t, 1.0, f.Vector[10], 1e-6, "source engagement")
	assert.InDelta(t, 1.0, f.Vector[11], 1e-6, "declared preference")
}

func TestEncode_Deterministic(t *testing.T) {
	enc := NewEncoder(embedding.NewMockEmbedder(16), 24*time.Hour)
	a := article("a", models.CategoryBusiness, "Reuters", time.Hour)
	f1, err := enc.Encode(context.Background(), UserContext{}, a, now)
	require.NoError(t, err)
	f2, err := enc.Encode(context.Background(), UserContext{}, a, now)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestEncode_AnonymousUser(t *testing.T) {
	enc := NewEncoder(embedding.NewMockEmbedder(4), 24*time.Hour)
	f, err := enc.Encode(context.Background(), UserContext{}, article("a", models.CategoryHealth, "BBC News", 0), now)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, f.Vector[4:])
}

func TestEncode_EmbeddingFailureDegrades(t *testing.T) {
	enc := NewEncoder(failingEmbedder{embedding.NewMockEmbedder(4)}, 24*time.Hour)
	f, err := enc.Encode(context.Background(), UserContext{}, article("a", models.CategoryHealth, "BBC News", 0), now)
	require.NoError(t, err)
	assert.True(t, f.Degraded)
	assert.Equal(t, []float32{0, 0, 0, 0}, f.Vector[:4])
	assert.Len(t, f.Vector, enc.Dimension())
}

func TestEncode_Errors(t *testing.T) {
	enc := NewEncoder(embedding.NewMockEmbedder(4), 24*time.Hour)
	_, err := enc.Encode(context.Background(), UserContext{}, nil, now)
	assert.ErrorIs(t, err, ErrEncoding)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, UserContext{}, article("a", models.CategoryGeneral, "AP", 0), now)
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeBatch_PreservesOrder(t *testing.T) {
	enc := NewEncoder(embedding.NewMockEmbedder(4), 24*time.Hour)
	var articles []*models.Article
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		articles = append(articles, article(id, models.CategoryGeneral, "AP", time.Hour))
	}
	out, err := enc.EncodeBatch(context.Background(), UserContext{}, articles, now, 2)
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, f := range out {
		assert.Equal(t, articles[i].ID, f.ArticleID)
	}
}

func TestAffinity(t *testing.T) {
	assert.Zero(t, CategoryAffinity(nil, models.CategoryGeneral))
	assert.Zero(t, SourceAffinity(models.NewPreferenceSignal("u"), "AP"))

	s := models.NewPreferenceSignal("u")
	s.CategoryWeights[models.CategorySports] = 3
	s.CategoryWeights[models.CategoryPolitics] = 1.5
	assert.InDelta(t, 1.0, CategoryAffinity(s, models.CategorySports), 1e-9)
	assert.InDelta(t, 0.5, CategoryAffinity(s, models.CategoryPolitics), 1e-9)
	assert.Zero(t, CategoryAffinity(s, models.CategoryHealth))
}

func TestRecency(t *testing.T) {
	assert.InDelta(t, 1.0, Recency(now.Add(time.Hour), now, time.Hour), 1e-9)
	assert.InDelta(t, 0.25, Recency(now.Add(-2*time.Hour), now, time.Hour), 1e-9)
	assert.Zero(t, Recency(time.Time{}, now, time.Hour))
}
