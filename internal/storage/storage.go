// Package storage defines the persistence interface for articles, interactions,
// preference signals, and recommendation logs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/yomu/internal/models"
)

// ErrNotFound is returned when a keyed read finds nothing.
var ErrNotFound = errors.New("not found")

// ArticleFilter selects articles for range queries. Zero fields do not filter.
type ArticleFilter struct {
	Category models.Category
	Since    time.Time
	Limit    int
}

// Storage defines the persistence operations required by the pipeline.
type Storage interface {
	// Article operations
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	GetArticles(ctx context.Context, ids []string) ([]*models.Article, error)
	PutArticle(ctx context.Context, article *models.Article) error
	ListArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)

	// Fingerprint aliases
	PutAlias(ctx context.Context, fingerprint, articleID string) error
	ResolveAlias(ctx context.Context, fingerprint string) (string, error)

	// Append-only interaction log
	AppendInteraction(ctx context.Context, event *models.InteractionEvent) (bool, error)
	ListInteractions(ctx context.Context, userID string, limit int) ([]*models.InteractionEvent, error)
	EngagementCounts(ctx context.Context, since time.Time) (map[string]int64, error)

	// Preference signals
	GetSignal(ctx context.Context, userID string) (*models.PreferenceSignal, error)
	PutSignal(ctx context.Context, signal *models.PreferenceSignal) error

	// Recommendation logs
	AppendRecommendationLog(ctx context.Context, log *models.RecommendationLog) error
	ListRecommendationLogs(ctx context.Context, userID string, limit int) ([]*models.RecommendationLog, error)

	// User profiles, maintained outside this service
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	PutUserProfile(ctx context.Context, profile *models.UserProfile) error

	// Stats
	CountArticles(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context) ([]models.CategoryCount, error)
	CountBySource(ctx context.Context) ([]models.SourceCount, error)

	Close() error
}
