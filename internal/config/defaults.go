package config

import "time"

// DefaultRSSFeeds are the syndication feeds used when none are configured.
var DefaultRSSFeeds = map[string][]string{
	"technology": {
		"https://feeds.feedburner.com/oreilly/radar",
		"https://techcrunch.com/feed/",
		"https://www.wired.com/feed/rss",
		"https://feeds.arstechnica.com/arstechnica/index",
	},
	"business": {
		"https://feeds.bloomberg.com/markets/news.rss",
		"https://www.reuters.com/business/finance/rss",
		"https://feeds.fortune.com/fortune/headlines",
	},
	"health": {
		"https://feeds.webmd.com/rss/rss.aspx?RSSSource=RSS_PUBLIC",
		"https://www.medicalnewstoday.com/rss",
	},
	"science": {
		"https://feeds.nature.com/nature/rss/current",
		"https://www.sciencedaily.com/rss/all.xml",
	},
	"general": {
		"https://feeds.bbci.co.uk/news/rss.xml",
		"https://rss.cnn.com/rss/edition.rss",
		"https://feeds.reuters.com/reuters/topNews",
	},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".yomu/data/db/yomu.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".yomu/data/indices/articles.bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = "native"
	}
	if cfg.Model.MaxConcurrency == 0 {
		cfg.Model.MaxConcurrency = 8
	}
	if cfg.Ingest.Interval == 0 {
		cfg.Ingest.Interval = 30 * time.Minute
	}
	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = 15 * time.Second
	}
	if cfg.Ingest.CycleTimeout == 0 {
		cfg.Ingest.CycleTimeout = 5 * time.Minute
	}
	if cfg.Ingest.PerSourceLimit == 0 {
		cfg.Ingest.PerSourceLimit = 30
	}
	if len(cfg.Ingest.Categories) == 0 {
		cfg.Ingest.Categories = []string{"general", "technology", "business", "health", "science"}
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if len(cfg.Sources.Trusted) == 0 {
		cfg.Sources.Trusted = []string{"Reuters", "BBC News", "Associated Press", "Nature", "Bloomberg"}
	}
	if cfg.Sources.NewsAPI.BaseURL == "" {
		cfg.Sources.NewsAPI.BaseURL = "https://newsapi.org"
	}
	if cfg.Sources.NewsAPI.Language == "" {
		cfg.Sources.NewsAPI.Language = "en"
	}
	if cfg.Sources.GNews.BaseURL == "" {
		cfg.Sources.GNews.BaseURL = "https://gnews.io"
	}
	if cfg.Sources.GNews.Language == "" {
		cfg.Sources.GNews.Language = "en"
	}
	if cfg.Sources.GNews.Country == "" {
		cfg.Sources.GNews.Country = "us"
	}
	if cfg.Sources.RSS.Feeds == nil {
		cfg.Sources.RSS.Feeds = DefaultRSSFeeds
	}
	if cfg.Sources.RateLimit == 0 {
		cfg.Sources.RateLimit = 2
	}
	if cfg.Sources.RateBurst == 0 {
		cfg.Sources.RateBurst = 5
	}
	if cfg.Sources.BreakerFailures == 0 {
		cfg.Sources.BreakerFailures = 5
	}
	if cfg.Sources.BreakerCooldown == 0 {
		cfg.Sources.BreakerCooldown = 2 * time.Minute
	}
	if cfg.Normalize.SimilarityThreshold == 0 {
		cfg.Normalize.SimilarityThreshold = 0.85
	}
	if cfg.Normalize.FuzzyWindow == 0 {
		cfg.Normalize.FuzzyWindow = 72 * time.Hour
	}
	if cfg.Ranking.ClickWeight == 0 && cfg.Ranking.DwellWeight == 0 {
		cfg.Ranking.ClickWeight = 0.7
		cfg.Ranking.DwellWeight = 0.3
	}
	if cfg.Ranking.DwellNormSeconds == 0 {
		cfg.Ranking.DwellNormSeconds = 300
	}
	if cfg.Ranking.RecencyHalfLife == 0 {
		cfg.Ranking.RecencyHalfLife = 24 * time.Hour
	}
	if cfg.Ranking.CategoryCapFraction == 0 {
		cfg.Ranking.CategoryCapFraction = 0.4
	}
	if cfg.Ranking.SourceCap == 0 {
		cfg.Ranking.SourceCap = 3
	}
	if cfg.Feed.CandidatePool == 0 {
		cfg.Feed.CandidatePool = 200
	}
	if cfg.Feed.CandidateWindow == 0 {
		cfg.Feed.CandidateWindow = 7 * 24 * time.Hour
	}
	if cfg.Feed.DefaultLimit == 0 {
		cfg.Feed.DefaultLimit = 20
	}
	if cfg.Feed.MaxLimit == 0 {
		cfg.Feed.MaxLimit = 100
	}
	if cfg.Feed.CacheTTL == 0 {
		cfg.Feed.CacheTTL = time.Minute
	}
	if cfg.Feed.CacheMaxEntries == 0 {
		cfg.Feed.CacheMaxEntries = 10000
	}
	if cfg.Feed.LatencyBudget == 0 {
		cfg.Feed.LatencyBudget = 800 * time.Millisecond
	}
	if cfg.Feed.EncodeConcurrency == 0 {
		cfg.Feed.EncodeConcurrency = 16
	}
	if cfg.Feedback.HalfLife == 0 {
		cfg.Feedback.HalfLife = 72 * time.Hour
	}
	if cfg.Feedback.IdleTimeout == 0 {
		cfg.Feedback.IdleTimeout = time.Minute
	}
	if cfg.Feedback.MailboxSize == 0 {
		cfg.Feedback.MailboxSize = 256
	}
}
