// Package config provides configuration loading and structs for the yomu server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Model     ModelConfig     `yaml:"model"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Sources   SourcesConfig   `yaml:"sources"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Feed      FeedConfig      `yaml:"feed"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the database and the full-text index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig selects and configures the text embedder.
// Provider is one of "mock", "onnx" or "openai".
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`
	ModelPath     string `yaml:"model_path"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// ModelConfig holds scoring model settings. Backend is "native" (JSON
// weights) or "onnx". An empty ArtifactPath selects the built-in baseline.
type ModelConfig struct {
	ArtifactPath   string `yaml:"artifact_path"`
	Backend        string `yaml:"backend"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// IngestConfig holds ingestion scheduler settings.
type IngestConfig struct {
	Interval       time.Duration `yaml:"interval"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	CycleTimeout   time.Duration `yaml:"cycle_timeout"`
	PerSourceLimit int           `yaml:"per_source_limit"`
	Categories     []string      `yaml:"categories"`
	// Workers bounds concurrent fetches per source.
	Workers        int           `yaml:"workers"`
	RunOnStart     *bool         `yaml:"run_on_start"`
}

// RunOnStartOrDefault returns whether to run a cycle at startup; defaults to true when unset.
func (c *IngestConfig) RunOnStartOrDefault() bool {
	if c.RunOnStart != nil {
		return *c.RunOnStart
	}
	return true
}

// SourcesConfig configures the news providers.
type SourcesConfig struct {
	// Trusted orders source names from most to least trusted. Used to break
	// ties between near-duplicate stories.
	Trusted         []string        `yaml:"trusted"`
	NewsAPI         APISourceConfig `yaml:"newsapi"`
	GNews           APISourceConfig `yaml:"gnews"`
	RSS             RSSSourceConfig `yaml:"rss"`
	RateLimit       float64         `yaml:"rate_limit"`
	RateBurst       int             `yaml:"rate_burst"`
	BreakerFailures uint32          `yaml:"breaker_failures"`
	BreakerCooldown time.Duration   `yaml:"breaker_cooldown"`
}

// APISourceConfig configures a keyword/headline JSON API.
type APISourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Country  string `yaml:"country"`
	Language string `yaml:"language"`
}

// RSSSourceConfig maps canonical categories to feed URLs.
type RSSSourceConfig struct {
	Enabled bool                `yaml:"enabled"`
	Feeds   map[string][]string `yaml:"feeds"`
}

// NormalizeConfig holds dedup settings.
type NormalizeConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	FuzzyWindow         time.Duration `yaml:"fuzzy_window"`
}

// RankingConfig holds score fusion and diversity settings.
type RankingConfig struct {
	ClickWeight         float64       `yaml:"click_weight"`
	DwellWeight         float64       `yaml:"dwell_weight"`
	DwellNormSeconds    float64       `yaml:"dwell_norm_seconds"`
	RecencyHalfLife     time.Duration `yaml:"recency_half_life"`
	CategoryCapFraction float64       `yaml:"category_cap_fraction"`
	SourceCap           int           `yaml:"source_cap"`
}

// FeedConfig holds feed assembly settings.
type FeedConfig struct {
	CandidatePool     int           `yaml:"candidate_pool"`
	CandidateWindow   time.Duration `yaml:"candidate_window"`
	DefaultLimit      int           `yaml:"default_limit"`
	MaxLimit          int           `yaml:"max_limit"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries   int64         `yaml:"cache_max_entries"`
	LatencyBudget     time.Duration `yaml:"latency_budget"`
	EncodeConcurrency int           `yaml:"encode_concurrency"`
}

// FeedbackConfig holds preference signal settings.
type FeedbackConfig struct {
	HalfLife    time.Duration `yaml:"half_life"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	MailboxSize int           `yaml:"mailbox_size"`
}

// AuthConfig maps bearer tokens to user ids. AllowUserHeader accepts an
// X-User-ID header instead (development only).
type AuthConfig struct {
	Tokens          map[string]string `yaml:"tokens"`
	AllowUserHeader bool              `yaml:"allow_user_header"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Model.ArtifactPath != "" {
		cfg.Model.ArtifactPath = expandPath(cfg.Model.ArtifactPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used by "yomu init".
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("YOMU_NEWSAPI_KEY"); v != "" {
		cfg.Sources.NewsAPI.APIKey = v
	}
	if v := os.Getenv("YOMU_GNEWS_KEY"); v != "" {
		cfg.Sources.GNews.APIKey = v
	}
	if v := os.Getenv("YOMU_OPENAI_API_KEY"); v != "" {
		cfg.Embedding.OpenAIAPIKey = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
