package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
ingest:
  interval: 10m
  fetch_timeout: 3s
feed:
  latency_budget: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Ingest.Interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", cfg.Ingest.Interval)
	}
	if cfg.Ingest.FetchTimeout != 3*time.Second {
		t.Errorf("fetch_timeout = %v, want 3s", cfg.Ingest.FetchTimeout)
	}
	if cfg.Feed.LatencyBudget != 250*time.Millisecond {
		t.Errorf("latency_budget = %v, want 250ms", cfg.Feed.LatencyBudget)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/yomu.db"
  bleve_index_path: "./data/indices/articles.bleve"
model:
  artifact_path: "./models/mtl.json"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "yomu.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantModel := filepath.Join(dir, "models", "mtl.json")
	if cfg.Model.ArtifactPath != wantModel {
		t.Errorf("artifact_path = %s, want %s", cfg.Model.ArtifactPath, wantModel)
	}
}

func TestLoad_envOverridesKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sources:
  newsapi:
    enabled: true
    api_key: "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YOMU_NEWSAPI_KEY", "from-env")
	t.Setenv("YOMU_GNEWS_KEY", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sources.NewsAPI.APIKey != "from-env" {
		t.Errorf("newsapi key = %q, want from-env", cfg.Sources.NewsAPI.APIKey)
	}
	if cfg.Sources.GNews.APIKey != "" {
		t.Errorf("empty env var should not override, got %q", cfg.Sources.GNews.APIKey)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Ingest.Interval != 30*time.Minute {
		t.Errorf("default interval: got %v", cfg.Ingest.Interval)
	}
	if cfg.Ranking.ClickWeight != 0.7 || cfg.Ranking.DwellWeight != 0.3 {
		t.Errorf("default weights: got click=%f dwell=%f", cfg.Ranking.ClickWeight, cfg.Ranking.DwellWeight)
	}
	if cfg.Ranking.CategoryCapFraction != 0.4 {
		t.Errorf("default category cap: got %f", cfg.Ranking.CategoryCapFraction)
	}
	if cfg.Normalize.SimilarityThreshold != 0.85 {
		t.Errorf("default similarity threshold: got %f", cfg.Normalize.SimilarityThreshold)
	}
	if len(cfg.Sources.RSS.Feeds["technology"]) == 0 {
		t.Error("default rss feeds should include technology")
	}
	if !cfg.Ingest.RunOnStartOrDefault() {
		t.Error("run_on_start should default to true")
	}
}

func TestApplyDefaults_keepsExplicitWeights(t *testing.T) {
	cfg := &Config{Ranking: RankingConfig{ClickWeight: 1}}
	ApplyDefaults(cfg)
	if cfg.Ranking.ClickWeight != 1 || cfg.Ranking.DwellWeight != 0 {
		t.Errorf("explicit weights overwritten: %+v", cfg.Ranking)
	}
}

func TestIngestConfig_RunOnStartOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &IngestConfig{}
		if got := c.RunOnStartOrDefault(); !got {
			t.Errorf("RunOnStartOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &IngestConfig{RunOnStart: &f}
		if got := c.RunOnStartOrDefault(); got {
			t.Errorf("RunOnStartOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Ingest:  IngestConfig{Interval: 45 * time.Minute},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Ingest.Interval != 45*time.Minute {
		t.Errorf("loaded interval: got %v", loaded.Ingest.Interval)
	}
}
