// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/yomu/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a
// private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + dbPath + "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		body TEXT,
		url TEXT,
		image_url TEXT,
		author TEXT,
		source TEXT NOT NULL,
		source_domain TEXT,
		category TEXT NOT NULL,
		published_at INTEGER NOT NULL,
		last_updated INTEGER NOT NULL,
		first_seen INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
	CREATE INDEX IF NOT EXISTS idx_articles_category_published ON articles(category, published_at);

	CREATE TABLE IF NOT EXISTS article_aliases (
		fingerprint TEXT PRIMARY KEY,
		article_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interaction_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		duration_seconds REAL,
		occurred_at INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_user ON interaction_events(user_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_events_occurred ON interaction_events(occurred_at);

	CREATE TABLE IF NOT EXISTS preference_signals (
		user_id TEXT PRIMARY KEY,
		category_weights TEXT NOT NULL,
		source_weights TEXT NOT NULL,
		event_count INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recommendation_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		model_version TEXT,
		items TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reclogs_user ON recommendation_logs(user_id, created_at);

	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		declared_categories TEXT NOT NULL,
		declared_sources TEXT,
		opt_ins TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CountArticles returns the total number of articles.
func (s *SQLiteStorage) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	return count, err
}

// CountByCategory returns article counts per category, largest first.
func (s *SQLiteStorage) CountByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM articles GROUP BY category ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountBySource returns article counts per source, largest first.
func (s *SQLiteStorage) CountBySource(ctx context.Context) ([]models.SourceCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, MAX(source_domain), COUNT(*) FROM articles
		 GROUP BY source ORDER BY COUNT(*) DESC, source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceCount
	for rows.Next() {
		var c models.SourceCount
		var domain sql.NullString
		if err := rows.Scan(&c.Source, &domain, &c.Count); err != nil {
			return nil, err
		}
		c.Domain = domain.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
