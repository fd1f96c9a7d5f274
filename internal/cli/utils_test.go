package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
)

func sampleFeed() *models.FeedResponse {
	return &models.FeedResponse{
		Algorithm:    models.AlgorithmModel,
		ModelVersion: "baseline-linear-v1",
		Total:        12,
		Articles: []models.RankedArticle{
			{
				Article: &models.Article{
					ID:          "a1",
					Title:       "Rover finds water ice",
					Summary:     "The rover detected ice below the surface.",
					URL:         "https://nature.com/rover",
					Source:      "Nature",
					Category:    models.CategoryScience,
					PublishedAt: time.Now().Add(-3 * time.Hour),
				},
				Score:            0.8123,
				ClickProbability: 0.42,
				DwellSeconds:     95,
			},
		},
	}
}

func TestWriteFeed_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFeed(&buf, sampleFeed(), OutputJSON); err != nil {
		t.Fatalf("WriteFeed(json): %v", err)
	}
	var decoded models.FeedResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 12 || len(decoded.Articles) != 1 || decoded.Articles[0].Article.ID != "a1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteFeed_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFeed(&buf, sampleFeed(), OutputText); err != nil {
		t.Fatalf("WriteFeed(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"1 of 12 articles", "[mtl]", "model baseline-linear-v1", "1. Rover finds water ice", "Nature", "science", "3h ago", "p(click) 0.420", "ID: a1", "below the surface"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteFeed_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.FeedResponse{Algorithm: models.AlgorithmFallback, Fallback: true}
	if err := WriteFeed(&buf, resp, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 of 0 articles [fallback] (fallback)") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteReport_text(t *testing.T) {
	report := &ingest.Report{
		Ingested:         8,
		Fetched:          12,
		Created:          7,
		Updated:          1,
		SucceededSources: []string{"rss"},
		FailedSources:    []string{"newsapi"},
		Failures:         []ingest.SourceFailure{{Source: "newsapi", Category: models.CategoryGeneral, Kind: "rate_limited"}},
		Duration:         1500 * time.Millisecond,
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Ingested 8 articles in 1.5s", "7 new, 1 updated (12 fetched)", "Sources ok:     rss", "Sources failed: newsapi", "newsapi/general: rate_limited"} {
		if !strings.Contains(out, sub) {
			t.Errorf("report output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteStats_text(t *testing.T) {
	stats := map[string]interface{}{
		"articles":   float64(3),
		"categories": []interface{}{map[string]interface{}{"category": "science", "count": float64(3)}},
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "articles: 3") || !strings.Contains(out, "  science: 3") {
		t.Errorf("stats output:\n%s", out)
	}
	if strings.Index(out, "articles") > strings.Index(out, "categories") {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "unknown"},
		{"seconds", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-30 * time.Hour), "30h ago"},
		{"days", now.Add(-72 * time.Hour), "3d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Age(tt.t, now); got != tt.want {
				t.Errorf("Age = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}

func TestClient(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/feed":
			_ = json.NewEncoder(w).Encode(sampleFeed())
		case "/api/v1/interactions":
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"event_id":"e1"}`))
		case "/api/v1/refresh":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"all sources failed","failed_sources":["rss"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", "")
	ctx := context.Background()

	feed, err := c.Feed(ctx, "science", 5, 10)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if gotAuth != "Bearer tok" || gotPath != "/api/v1/feed" || gotQuery != "category=science&limit=5&offset=10" {
		t.Errorf("request auth=%q path=%q query=%q", gotAuth, gotPath, gotQuery)
	}
	if feed.Total != 12 {
		t.Errorf("feed total = %d", feed.Total)
	}

	ack, err := c.Interact(ctx, "a1", models.KindRead, 30)
	if err != nil || ack.EventID != "e1" {
		t.Fatalf("Interact = %+v, %v", ack, err)
	}
	if gotBody["article_id"] != "a1" || gotBody["kind"] != "read" || gotBody["duration_seconds"] != float64(30) {
		t.Errorf("interaction body = %v", gotBody)
	}

	report, err := c.Refresh(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "all sources failed" {
		t.Fatalf("Refresh err = %v", err)
	}
	if len(report.FailedSources) != 1 {
		t.Errorf("report should be decoded alongside the error: %+v", report)
	}

	if _, err := c.Stats(ctx); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Stats err = %v", err)
	}
}

func TestClient_UserHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-User-ID")
		_, _ = w.Write([]byte(`{"articles":[],"algorithm":"trending","total":0}`))
	}))
	defer srv.Close()
	if _, err := NewClient(srv.URL, "", "dev").Trending(context.Background(), "", 0); err != nil {
		t.Fatal(err)
	}
	if got != "dev" {
		t.Errorf("X-User-ID = %q", got)
	}
}
