// Package keyword provides full-text search indexing and search over articles.
package keyword

import (
	"context"

	"github.com/hyperjump/yomu/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Category restricts hits to one canonical category. Empty means all.
	Category models.Category
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Values > 1 make headline matches rank higher (e.g. 3.0).
	TitleBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// ArticleIndex defines keyword search operations.
type ArticleIndex interface {
	Index(ctx context.Context, article *models.Article) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of articles in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
