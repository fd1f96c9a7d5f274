package models

import "time"

// FeedRequest asks for a personalized page of articles.
type FeedRequest struct {
	UserID   string   `json:"user_id"`
	Category Category `json:"category,omitempty"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// SearchRequest asks for articles matching query. UserID is optional and
// enables personalized ordering.
type SearchRequest struct {
	Query    string   `json:"query"`
	Category Category `json:"category,omitempty"`
	Limit    int      `json:"limit"`
	UserID   string   `json:"user_id,omitempty"`
}

// RankedArticle is an article with its final score and, when the model was
// used, its predictions.
type RankedArticle struct {
	Article          *Article `json:"article"`
	Score            float64  `json:"score"`
	ClickProbability float64  `json:"click_probability,omitempty"`
	DwellSeconds     float64  `json:"dwell_seconds,omitempty"`
}

// FeedResponse is a page of ranked articles.
type FeedResponse struct {
	Articles     []RankedArticle `json:"articles"`
	Algorithm    string          `json:"algorithm"`
	ModelVersion string          `json:"model_version,omitempty"`
	Fallback     bool            `json:"fallback,omitempty"`
	Cached       bool            `json:"cached,omitempty"`
	Degraded     bool            `json:"degraded,omitempty"`
	Total        int             `json:"total"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// CategoryCount is the number of catalog articles in a category.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
}

// SourceCount is the number of catalog articles from a source.
type SourceCount struct {
	Source string `json:"source"`
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}
