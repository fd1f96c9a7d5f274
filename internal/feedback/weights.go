package feedback

import (
	"math"
	"time"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// KindWeight is the preference increment contributed by one event.
func KindWeight(kind models.InteractionKind, durationSeconds float64) float64 {
	switch kind {
	case models.KindView:
		return 0.1
	case models.KindClick:
		return 0.3
	case models.KindRead:
		return 0.3 + math.Min(math.Max(durationSeconds, 0)/120, 1)*0.4
	case models.KindExternalClick:
		return 0.4
	case models.KindShare:
		return 0.8
	case models.KindLike, models.KindBookmark:
		return 1.0
	}
	return 0
}

// AltersPreference reports whether an event of kind should invalidate the
// user's cached feed.
func AltersPreference(kind models.InteractionKind) bool {
	switch kind {
	case models.KindLike, models.KindBookmark, models.KindShare, models.KindRead:
		return true
	}
	return false
}

// Apply folds an event on article into s. Weights are decayed to the later
// of s.UpdatedAt and the event time, so applying events out of time order
// gives the same weights.
func Apply(s *models.PreferenceSignal, article *models.Article, ev *models.InteractionEvent, halfLife time.Duration) {
	w := KindWeight(ev.Kind, ev.DurationSeconds)
	hl := halfLife.Seconds()
	switch {
	case s.UpdatedAt.IsZero():
		s.UpdatedAt = ev.OccurredAt
	case ev.OccurredAt.After(s.UpdatedAt):
		scale(s, utils.HalfLifeDecay(ev.OccurredAt.Sub(s.UpdatedAt).Seconds(), hl))
		s.UpdatedAt = ev.OccurredAt
	default:
		w *= utils.HalfLifeDecay(s.UpdatedAt.Sub(ev.OccurredAt).Seconds(), hl)
	}
	if article != nil {
		s.CategoryWeights[article.Category] += w
		s.SourceWeights[article.Source] += w
	}
	s.EventCount++
}

// DecayTo returns a copy of s with weights decayed to now.
func DecayTo(s *models.PreferenceSignal, now time.Time, halfLife time.Duration) *models.PreferenceSignal {
	out := s.Clone()
	if !out.UpdatedAt.IsZero() && now.After(out.UpdatedAt) {
		scale(out, utils.HalfLifeDecay(now.Sub(out.UpdatedAt).Seconds(), halfLife.Seconds()))
		out.UpdatedAt = now
	}
	return out
}

func scale(s *models.PreferenceSignal, f float64) {
	for k, v := range s.CategoryWeights {
		s.CategoryWeights[k] = v * f
	}
	for k, v := range s.SourceWeights {
		s.SourceWeights[k] = v * f
	}
}
