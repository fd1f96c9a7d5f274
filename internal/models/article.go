// Package models defines core data structures for articles, interactions, and feeds.
package models

import "time"

// Category is a canonical article category.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryTechnology    Category = "technology"
	CategoryBusiness      Category = "business"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryPolitics      Category = "politics"
)

// Categories lists every canonical category in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryTechnology,
	CategoryBusiness,
	CategoryHealth,
	CategoryScience,
	CategorySports,
	CategoryEntertainment,
	CategoryPolitics,
}

// Valid reports whether c is a canonical category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// RawArticle is an article as delivered by one source adapter, before normalization.
type RawArticle struct {
	Source           string    `json:"source"`
	Provider         string    `json:"provider"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary,omitempty"`
	Body             string    `json:"body,omitempty"`
	URL              string    `json:"url"`
	ImageURL         string    `json:"image_url,omitempty"`
	Author           string    `json:"author,omitempty"`
	ProviderCategory string    `json:"provider_category,omitempty"`
	PublishedAt      time.Time `json:"published_at"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// Article is a canonical catalog entry.
type Article struct {
	ID           string    `json:"id" db:"id"`
	Fingerprint  string    `json:"-" db:"fingerprint"`
	Title        string    `json:"title" db:"title"`
	Summary      string    `json:"summary,omitempty" db:"summary"`
	Body         string    `json:"body,omitempty" db:"body"`
	URL          string    `json:"url" db:"url"`
	ImageURL     string    `json:"image_url,omitempty" db:"image_url"`
	Author       string    `json:"author,omitempty" db:"author"`
	Source       string    `json:"source" db:"source"`
	SourceDomain string    `json:"source_domain" db:"source_domain"`
	Category     Category  `json:"category" db:"category"`
	PublishedAt  time.Time `json:"published_at" db:"published_at"`
	LastUpdated  time.Time `json:"last_updated" db:"last_updated"`
	FirstSeen    time.Time `json:"first_seen" db:"first_seen"`
}

// MergeArticle folds incoming into existing. Timestamps merge commutatively
// (earliest published and first-seen, latest last-updated); mutable fields take
// the incoming value when it is non-empty; identity fields keep the existing value.
func MergeArticle(existing, incoming Article) Article {
	out := existing
	out.PublishedAt = minTime(existing.PublishedAt, incoming.PublishedAt)
	out.FirstSeen = minTime(existing.FirstSeen, incoming.FirstSeen)
	out.LastUpdated = maxTime(existing.LastUpdated, incoming.LastUpdated)
	if incoming.Summary != "" {
		out.Summary = incoming.Summary
	}
	if incoming.Body != "" {
		out.Body = incoming.Body
	}
	if incoming.ImageURL != "" {
		out.ImageURL = incoming.ImageURL
	}
	if incoming.Author != "" {
		out.Author = incoming.Author
	}
	if out.URL == "" {
		out.URL = incoming.URL
	}
	if out.Title == "" {
		out.Title = incoming.Title
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// UserProfile is the externally maintained, read-only profile of a user.
type UserProfile struct {
	UserID             string          `json:"user_id"`
	DeclaredCategories []Category      `json:"declared_categories"`
	DeclaredSources    []string        `json:"declared_sources,omitempty"`
	OptIns             map[string]bool `json:"opt_ins,omitempty"`
}

// Declares reports whether the user declared interest in c.
func (p *UserProfile) Declares(c Category) bool {
	if p == nil {
		return false
	}
	for _, d := range p.DeclaredCategories {
		if d == c {
			return true
		}
	}
	return false
}
