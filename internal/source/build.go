package source

import (
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Build constructs the enabled adapters, each guarded. API sources without
// a key are skipped with a warning.
func Build(cfg config.SourcesConfig, fetchTimeout time.Duration, logger *zap.Logger, opts ...AdapterOption) []Adapter {
	logger = utils.OrNop(logger)
	guard := func(a Adapter) Adapter {
		return Guard(a, GuardConfig{
			Timeout:         fetchTimeout,
			RateLimit:       cfg.RateLimit,
			RateBurst:       cfg.RateBurst,
			BreakerFailures: cfg.BreakerFailures,
			BreakerCooldown: cfg.BreakerCooldown,
			Logger:          logger,
		})
	}

	var out []Adapter
	if cfg.NewsAPI.Enabled {
		if cfg.NewsAPI.APIKey == "" {
			logger.Warn("newsapi enabled without api key, skipping")
		} else {
			out = append(out, guard(NewNewsAPIAdapter(cfg.NewsAPI, opts...)))
		}
	}
	if cfg.GNews.Enabled {
		if cfg.GNews.APIKey == "" {
			logger.Warn("gnews enabled without api key, skipping")
		} else {
			out = append(out, guard(NewGNewsAdapter(cfg.GNews, opts...)))
		}
	}
	if cfg.RSS.Enabled && len(cfg.RSS.Feeds) > 0 {
		out = append(out, guard(NewRSSAdapter(cfg.RSS.Feeds, opts...)))
	}
	return out
}
