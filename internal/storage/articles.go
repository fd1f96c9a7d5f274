package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperjump/yomu/internal/models"
)

const articleColumns = `id, fingerprint, title, summary, body, url, image_url, author,
	source, source_domain, category, published_at, last_updated, first_seen`

// GetArticle returns an article by ID, or ErrNotFound.
func (s *SQLiteStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if notFound(err) {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetArticles returns the articles with the given IDs in the order of ids.
// Unknown IDs are skipped.
func (s *SQLiteStorage) GetArticles(ctx context.Context, ids []string) ([]*models.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*models.Article, len(ids))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*models.Article, 0, len(byID))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// PutArticle inserts the article or replaces the stored row with the same ID.
func (s *SQLiteStorage) PutArticle(ctx context.Context, a *models.Article) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			body = excluded.body,
			url = excluded.url,
			image_url = excluded.image_url,
			author = excluded.author,
			published_at = excluded.published_at,
			last_updated = excluded.last_updated,
			first_seen = excluded.first_seen`,
		a.ID, a.Fingerprint, a.Title, a.Summary, a.Body, a.URL, a.ImageURL, a.Author,
		a.Source, a.SourceDomain, string(a.Category),
		toMillis(a.PublishedAt), toMillis(a.LastUpdated), toMillis(a.FirstSeen),
	)
	if err != nil {
		return fmt.Errorf("failed to put article %s: %w", a.ID, err)
	}
	return nil
}

// ListArticles returns articles matching filter, newest first.
func (s *SQLiteStorage) ListArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE published_at >= ?`
	args := []any{toMillis(filter.Since)}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY published_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PutAlias maps fingerprint to articleID. An existing mapping is kept.
func (s *SQLiteStorage) PutAlias(ctx context.Context, fingerprint, articleID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO article_aliases (fingerprint, article_id) VALUES (?, ?)`,
		fingerprint, articleID)
	return err
}

// ResolveAlias returns the article ID a fingerprint maps to, or ErrNotFound.
func (s *SQLiteStorage) ResolveAlias(ctx context.Context, fingerprint string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT article_id FROM article_aliases WHERE fingerprint = ?`, fingerprint).Scan(&id)
	if notFound(err) {
		return "", ErrNotFound
	}
	return id, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(r rowScanner) (*models.Article, error) {
	var a models.Article
	var summary, body, url, image, author, domain sql.NullString
	var category string
	var published, updated, firstSeen int64
	if err := r.Scan(&a.ID, &a.Fingerprint, &a.Title, &summary, &body, &url, &image, &author,
		&a.Source, &domain, &category, &published, &updated, &firstSeen); err != nil {
		return nil, err
	}
	a.Summary = summary.String
	a.Body = body.String
	a.URL = url.String
	a.ImageURL = image.String
	a.Author = author.String
	a.SourceDomain = domain.String
	a.Category = models.Category(category)
	a.PublishedAt = fromMillis(published)
	a.LastUpdated = fromMillis(updated)
	a.FirstSeen = fromMillis(firstSeen)
	return &a, nil
}
