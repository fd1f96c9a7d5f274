package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/yomu/internal/inference"
	"github.com/hyperjump/yomu/internal/models"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func art(id string, cat models.Category, source string, age time.Duration) *models.Article {
	return &models.Article{ID: id, Category: cat, Source: source, PublishedAt: now.Add(-age)}
}

func ranked(id string, cat models.Category, source string, score float64) models.RankedArticle {
	return models.RankedArticle{Article: art(id, cat, source, time.Hour), Score: score}
}

func TestNewFuser_Defaults(t *testing.T) {
	f := NewFuser(nil)
	c := f.Config()
	if c.ClickWeight != 0.7 || c.DwellWeight != 0.3 {
		t.Errorf("weights = %v/%v", c.ClickWeight, c.DwellWeight)
	}
	if c.SourceCap != 3 || c.CategoryCapFraction != 0.4 {
		t.Errorf("caps = %v/%v", c.SourceCap, c.CategoryCapFraction)
	}

	f = NewFuser(&RankingConfig{ClickWeight: 1})
	if c := f.Config(); c.ClickWeight != 1 || c.DwellWeight != 0 {
		t.Errorf("explicit weights overridden: %v/%v", c.ClickWeight, c.DwellWeight)
	}
}

func TestFuser_Score(t *testing.T) {
	f := NewFuser(nil)
	fresh := Candidate{Article: art("a", models.CategoryGeneral, "AP", 0), Prediction: inference.Prediction{ClickProbability: 1, DwellSeconds: 600}}
	if got := f.Score(fresh, now); got < 0.999 || got > 1.001 {
		t.Errorf("fresh perfect score = %v, want 1", got)
	}
	day := Candidate{Article: art("b", models.CategoryGeneral, "AP", 24*time.Hour), Prediction: inference.Prediction{ClickProbability: 0.5, DwellSeconds: 150}}
	if got, want := f.Score(day, now), (0.7*0.5+0.3*0.5)*0.5; fmt.Sprintf("%.6f", got) != fmt.Sprintf("%.6f", want) {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestFuser_RankMonotonicInClick(t *testing.T) {
	f := NewFuser(nil)
	var cands []Candidate
	for i := 0; i < 5; i++ {
		cands = append(cands, Candidate{
			Article:    art(fmt.Sprintf("id-%d", i), models.Categories[i], fmt.Sprintf("src-%d", i), time.Hour),
			Prediction: inference.Prediction{ClickProbability: float64(i) / 10, DwellSeconds: 60},
		})
	}
	out := f.Rank(cands, now, 5)
	for i := 1; i < len(out); i++ {
		if out[i-1].Score < out[i].Score {
			t.Fatalf("not sorted at %d: %v < %v", i, out[i-1].Score, out[i].Score)
		}
	}
	if out[0].Article.ID != "id-4" {
		t.Errorf("top = %s, want id-4", out[0].Article.ID)
	}
}

func TestSortRanked_TieBreaks(t *testing.T) {
	older := models.RankedArticle{Article: art("a", models.CategoryGeneral, "AP", 2*time.Hour), Score: 1}
	newerB := models.RankedArticle{Article: art("b", models.CategoryGeneral, "AP", time.Hour), Score: 1}
	newerA := models.RankedArticle{Article: art("c", models.CategoryGeneral, "AP", time.Hour), Score: 1}
	newerA.Article.ID = "a2"
	items := []models.RankedArticle{older, newerB, newerA}
	SortRanked(items)
	got := []string{items[0].Article.ID, items[1].Article.ID, items[2].Article.ID}
	want := []string{"a2", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFallbackAndTrendingScore(t *testing.T) {
	f := NewFuser(nil)
	a := art("a", models.CategoryScience, "Reuters", 0)
	if got := f.FallbackScore(a, 1, now); got != 2 {
		t.Errorf("FallbackScore = %v, want 2", got)
	}
	if got := f.FallbackScore(a, 0, now); got != 1 {
		t.Errorf("FallbackScore = %v, want 1", got)
	}
	hi := f.TrendingScore(a, 1, now)
	if hi < 0.999 || hi > 1.001 {
		t.Errorf("TrendingScore = %v, want 1", hi)
	}
	lo := f.TrendingScore(art("b", models.CategoryScience, "Some Blog", 0), 1, now)
	if lo >= hi {
		t.Errorf("less credible source should score lower: %v >= %v", lo, hi)
	}
}

func TestCredibility(t *testing.T) {
	tests := []struct {
		source, domain string
		want           float64
	}{
		{"Reuters", "reuters.com", 1.0},
		{"BBC News", "bbc.co.uk", 1.0},
		{"", "apnews.com", 1.0},
		{"Bloomberg", "", 0.9},
		{"TechCrunch", "techcrunch.com", 0.8},
		{"Unknown Daily", "unknown.example", 0.6},
	}
	for _, tt := range tests {
		if got := Credibility(tt.source, tt.domain); got != tt.want {
			t.Errorf("Credibility(%q, %q) = %v, want %v", tt.source, tt.domain, got, tt.want)
		}
	}
}
