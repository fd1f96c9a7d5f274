package models

import (
	"fmt"
	"time"
)

// InteractionKind is the type of a user interaction with an article.
type InteractionKind string

const (
	KindView          InteractionKind = "view"
	KindClick         InteractionKind = "click"
	KindRead          InteractionKind = "read"
	KindLike          InteractionKind = "like"
	KindShare         InteractionKind = "share"
	KindBookmark      InteractionKind = "bookmark"
	KindExternalClick InteractionKind = "external_click"
)

var interactionKinds = []InteractionKind{
	KindView, KindClick, KindRead, KindLike, KindShare, KindBookmark, KindExternalClick,
}

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	for _, v := range interactionKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParseInteractionKind converts s to an InteractionKind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	k := InteractionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
	return k, nil
}

// InteractionEvent is one immutable entry of the interaction log.
type InteractionEvent struct {
	ID              string          `json:"id,omitempty"`
	UserID          string          `json:"user_id"`
	ArticleID       string          `json:"article_id"`
	Kind            InteractionKind `json:"kind"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// PreferenceSignal is the decayed rolling weighting of a user's engagement.
// Weights are stored as of UpdatedAt; readers decay them to their own clock.
type PreferenceSignal struct {
	UserID          string               `json:"user_id"`
	CategoryWeights map[Category]float64 `json:"category_weights"`
	SourceWeights   map[string]float64   `json:"source_weights"`
	UpdatedAt       time.Time            `json:"updated_at"`
	EventCount      int64                `json:"event_count"`
}

// NewPreferenceSignal returns an empty signal for userID.
func NewPreferenceSignal(userID string) *PreferenceSignal {
	return &PreferenceSignal{
		UserID:          userID,
		CategoryWeights: make(map[Category]float64),
		SourceWeights:   make(map[string]float64),
	}
}

// Clone returns a deep copy of s.
func (s *PreferenceSignal) Clone() *PreferenceSignal {
	if s == nil {
		return nil
	}
	out := *s
	out.CategoryWeights = make(map[Category]float64, len(s.CategoryWeights))
	for k, v := range s.CategoryWeights {
		out.CategoryWeights[k] = v
	}
	out.SourceWeights = make(map[string]float64, len(s.SourceWeights))
	for k, v := range s.SourceWeights {
		out.SourceWeights[k] = v
	}
	return &out
}

// RecommendationItem is one ranked entry of a RecommendationLog.
type RecommendationItem struct {
	ArticleID string  `json:"article_id"`
	Score     float64 `json:"score"`
}

// RecommendationLog is the immutable audit record of one feed assembly.
type RecommendationLog struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Algorithm    string               `json:"algorithm"`
	ModelVersion string               `json:"model_version,omitempty"`
	Items        []RecommendationItem `json:"items"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Algorithm tags recorded in RecommendationLog.
const (
	AlgorithmModel    = "mtl"
	AlgorithmFallback = "fallback"
	AlgorithmTrending = "trending"
	AlgorithmSearch   = "search"
)
