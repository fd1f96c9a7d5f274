package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/yomu/internal/models"
)

type fakeCatalog struct {
	aliases  map[string]string
	articles []*models.Article
}

func (f *fakeCatalog) ResolveFingerprint(_ context.Context, fp string) (string, bool, error) {
	id, ok := f.aliases[fp]
	return id, ok, nil
}

func (f *fakeCatalog) Recent(_ context.Context, since time.Time, limit int) ([]*models.Article, error) {
	var out []*models.Article
	for _, a := range f.articles {
		if !a.PublishedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  X Wins   Award! ", "x wins award"},
		{"Breaking: Markets/rally", "breaking markets rally"},
		{"Élan   Vital", "élan vital"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.A.com/news/1?utm=x", "a.com"},
		{"http://b.co.uk:8080/x", "b.co.uk"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintAndID(t *testing.T) {
	if Fingerprint("X wins award", "a.com") != Fingerprint("  x WINS award ", "A.com") {
		t.Error("fingerprint should ignore case and whitespace")
	}
	if Fingerprint("X wins award", "a.com") == Fingerprint("X wins award", "b.com") {
		t.Error("fingerprint should include the domain")
	}
	id1 := ArticleID("X wins award", "a.com")
	id2 := ArticleID("x wins  award", "a.com")
	if id1 != id2 {
		t.Errorf("article id not stable: %s vs %s", id1, id2)
	}
	if id1 == ArticleID("Y wins award", "a.com") {
		t.Error("different titles should yield different ids")
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := TitleSimilarity("X wins award", "x wins award!"); got != 1 {
		t.Errorf("identical normalized titles: got %f", got)
	}
	if got := TitleSimilarity("Company X wins major award", "Company X wins major awards"); got < 0.9 {
		t.Errorf("near-identical titles: got %f", got)
	}
	if got := TitleSimilarity("Rain expected tomorrow", "Stocks fall on earnings"); got > 0.5 {
		t.Errorf("unrelated titles: got %f", got)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := editDistance([]rune(tt.a), []rune(tt.b), tt.want); got != tt.want {
			t.Errorf("editDistance(%q, %q, %d) = %d, want %d", tt.a, tt.b, tt.want, got, tt.want)
		}
		if tt.want > 0 {
			if got := editDistance([]rune(tt.a), []rune(tt.b), tt.want-1); got != tt.want {
				t.Errorf("editDistance(%q, %q, %d) = %d, want cutoff %d", tt.a, tt.b, tt.want-1, got, tt.want)
			}
		}
	}
}

func TestTitlesSimilarMatchesTitleSimilarity(t *testing.T) {
	pairs := [][2]string{
		{"X wins award", "x wins award!"},
		{"Company X wins major award", "Company X wins major awards"},
		{"Scientists discover new species of deep sea fish", "Scientists discover new species of deep-sea fish"},
		{"Rain expected tomorrow", "Stocks fall on earnings"},
		{"Fed holds rates steady", "Fed holds rates"},
	}
	for _, threshold := range []float64{0.5, 0.75, 0.85, 0.95} {
		for _, p := range pairs {
			want := TitleSimilarity(p[0], p[1]) >= threshold
			if got := TitlesSimilar(p[0], p[1], threshold); got != want {
				t.Errorf("TitlesSimilar(%q, %q, %.2f) = %v, TitleSimilarity = %f", p[0], p[1], threshold, got, TitleSimilarity(p[0], p[1]))
			}
		}
	}
	if TitlesSimilar("", "!!", 0.85) {
		t.Error("empty titles must not be similar")
	}
}

func TestMapCategory(t *testing.T) {
	tests := []struct {
		provider, cat string
		want          models.Category
	}{
		{"newsapi", "technology", models.CategoryTechnology},
		{"rss", "Tech", models.CategoryTechnology},
		{"gnews", "world", models.CategoryGeneral},
		{"newsapi", "Markets", models.CategoryBusiness},
		{"newsapi", "astrology", models.CategoryGeneral},
		{"rss", "", models.CategoryGeneral},
	}
	for _, tt := range tests {
		if got := MapCategory(tt.provider, tt.cat); got != tt.want {
			t.Errorf("MapCategory(%q, %q) = %q, want %q", tt.provider, tt.cat, got, tt.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := models.RawArticle{
		Source:           "A News",
		Provider:         "rss",
		Title:            " <b>X</b> wins award ",
		Summary:          "<p>Short &amp; sweet</p>",
		URL:              "https://www.a.com/x",
		ProviderCategory: "tech",
		PublishedAt:      now.Add(-time.Hour),
	}
	a, ok := Canonicalize(raw, now)
	if !ok {
		t.Fatal("expected article")
	}
	if a.Title != "X wins award" || a.Summary != "Short & sweet" || a.Body != "Short & sweet" {
		t.Errorf("text not cleaned: %+v", a)
	}
	if a.SourceDomain != "a.com" || a.Category != models.CategoryTechnology {
		t.Errorf("domain/category: %+v", a)
	}
	if !a.FirstSeen.Equal(now) || !a.PublishedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("timestamps: %+v", a)
	}

	if _, ok := Canonicalize(models.RawArticle{Title: "no url"}, now); ok {
		t.Error("article without url should be dropped")
	}
	future := raw
	future.PublishedAt = now.Add(time.Hour)
	if a, _ := Canonicalize(future, now); !a.PublishedAt.Equal(now) {
		t.Errorf("future published_at should clamp to first seen, got %v", a.PublishedAt)
	}
}

func TestNormalize_crossSourceMerge(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := New(&fakeCatalog{}, Config{})
	raws := []models.RawArticle{
		{Source: "B Daily", Title: "X wins award", URL: "https://b.com/x", PublishedAt: t0.Add(5 * time.Minute)},
		{Source: "A News", Title: "X wins award", URL: "https://a.com/x", PublishedAt: t0},
	}
	out, err := n.Normalize(context.Background(), raws, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].SourceDomain != "a.com" {
		t.Errorf("earliest story should come first, got %s", out[0].SourceDomain)
	}
	if out[0].ID != out[1].ID {
		t.Errorf("near-duplicates should share an id: %s vs %s", out[0].ID, out[1].ID)
	}
	if out[0].Fingerprint == out[1].Fingerprint {
		t.Error("each candidate keeps its own fingerprint for aliasing")
	}
}

func TestNormalize_trustedOrderBreaksTies(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := New(&fakeCatalog{}, Config{Trusted: []string{"Reuters", "Zeta"}})
	raws := []models.RawArticle{
		{Source: "Zeta", Title: "Summit ends", URL: "https://zeta.com/s", PublishedAt: t0},
		{Source: "Reuters", Title: "Summit ends", URL: "https://reuters.com/s", PublishedAt: t0},
	}
	out, _ := n.Normalize(context.Background(), raws, t0)
	if out[0].Source != "Reuters" || out[1].ID != out[0].ID {
		t.Errorf("trusted source should be the merge target: %+v", out)
	}
}

func TestNormalize_sameFingerprintCollapses(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := New(&fakeCatalog{}, Config{})
	raw := models.RawArticle{Source: "A", Title: "Same story", URL: "https://a.com/s", PublishedAt: t0}
	later := raw
	later.PublishedAt = t0.Add(time.Hour)
	later.Summary = "updated"
	out, _ := n.Normalize(context.Background(), []models.RawArticle{raw, later}, t0.Add(2*time.Hour))
	if len(out) != 1 {
		t.Fatalf("expected 1, got %d", len(out))
	}
	if !out[0].PublishedAt.Equal(t0) || out[0].Summary != "updated" {
		t.Errorf("collapsed article: %+v", out[0])
	}
}

func TestNormalize_resolvesAgainstCatalog(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stored := &models.Article{
		ID: "stored-id", Title: "X wins award", SourceDomain: "b.com", Source: "B Daily", PublishedAt: t0.Add(5 * time.Minute),
	}
	cat := &fakeCatalog{
		aliases:  map[string]string{Fingerprint("Known story", "c.com"): "known-id"},
		articles: []*models.Article{stored},
	}
	n := New(cat, Config{})
	raws := []models.RawArticle{
		{Source: "A News", Title: "X wins award", URL: "https://a.com/x", PublishedAt: t0},
		{Source: "C", Title: "Known story", URL: "https://c.com/k", PublishedAt: t0},
		{Source: "D", Title: "Unrelated headline about weather", URL: "https://d.com/w", PublishedAt: t0},
	}
	out, err := n.Normalize(context.Background(), raws, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, a := range out {
		got[a.SourceDomain] = a.ID
	}
	if got["a.com"] != "stored-id" {
		t.Errorf("fuzzy match against catalog: got %s", got["a.com"])
	}
	if got["c.com"] != "known-id" {
		t.Errorf("alias resolution: got %s", got["c.com"])
	}
	if got["d.com"] != ArticleID("Unrelated headline about weather", "d.com") {
		t.Errorf("new article should get its own id, got %s", got["d.com"])
	}
}

func TestNormalize_sameDomainNotFuzzyMerged(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := New(&fakeCatalog{}, Config{})
	raws := []models.RawArticle{
		{Source: "A", Title: "Team wins game 1", URL: "https://a.com/1", PublishedAt: t0},
		{Source: "A", Title: "Team wins game 2", URL: "https://a.com/2", PublishedAt: t0},
	}
	out, _ := n.Normalize(context.Background(), raws, t0)
	if out[0].ID == out[1].ID {
		t.Error("distinct stories from the same domain must not merge")
	}
}
