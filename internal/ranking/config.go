package ranking

import (
	"time"

	"github.com/hyperjump/yomu/internal/config"
)

// RankingConfig holds the fusion and diversity parameters.
type RankingConfig struct {
	// Fusion weights
	ClickWeight      float64 // default: 0.7
	DwellWeight      float64 // default: 0.3
	DwellNormSeconds float64 // default: 300

	// Recency decay
	RecencyHalfLife time.Duration // default: 24h

	// Diversity caps
	CategoryCapFraction float64 // default: 0.4
	SourceCap           int     // default: 3

	// Search fusion
	KeywordWeight  float64 // default: 0.6
	PersonalWeight float64 // default: 0.4
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		ClickWeight:         0.7,
		DwellWeight:         0.3,
		DwellNormSeconds:    300,
		RecencyHalfLife:     24 * time.Hour,
		CategoryCapFraction: 0.4,
		SourceCap:           3,
		KeywordWeight:       0.6,
		PersonalWeight:      0.4,
	}
}

// FromConfig converts the file configuration.
func FromConfig(c config.RankingConfig) *RankingConfig {
	return &RankingConfig{
		ClickWeight:         c.ClickWeight,
		DwellWeight:         c.DwellWeight,
		DwellNormSeconds:    c.DwellNormSeconds,
		RecencyHalfLife:     c.RecencyHalfLife,
		CategoryCapFraction: c.CategoryCapFraction,
		SourceCap:           c.SourceCap,
	}
}

// ApplyDefaults fills zero values with defaults. Fusion weights are only
// replaced when both are zero, so a config may switch one head off.
func (c *RankingConfig) ApplyDefaults() {
	defaults := DefaultRankingConfig()

	if c.ClickWeight == 0 && c.DwellWeight == 0 {
		c.ClickWeight = defaults.ClickWeight
		c.DwellWeight = defaults.DwellWeight
	}
	if c.DwellNormSeconds <= 0 {
		c.DwellNormSeconds = defaults.DwellNormSeconds
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = defaults.RecencyHalfLife
	}
	if c.CategoryCapFraction <= 0 || c.CategoryCapFraction > 1 {
		c.CategoryCapFraction = defaults.CategoryCapFraction
	}
	if c.SourceCap == 0 {
		c.SourceCap = defaults.SourceCap
	}
	if c.KeywordWeight == 0 && c.PersonalWeight == 0 {
		c.KeywordWeight = defaults.KeywordWeight
		c.PersonalWeight = defaults.PersonalWeight
	}
}
