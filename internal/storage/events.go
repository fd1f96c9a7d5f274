package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/yomu/internal/models"
)

// AppendInteraction appends event to the log. It returns false without error
// when an event with the same ID was already recorded.
func (s *SQLiteStorage) AppendInteraction(ctx context.Context, e *models.InteractionEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO interaction_events
		 (id, user_id, article_id, kind, duration_seconds, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ArticleID, string(e.Kind), e.DurationSeconds,
		toMillis(e.OccurredAt), time.Now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to append interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListInteractions returns the user's most recent events, newest first.
func (s *SQLiteStorage) ListInteractions(ctx context.Context, userID string, limit int) ([]*models.InteractionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, article_id, kind, duration_seconds, occurred_at
		 FROM interaction_events WHERE user_id = ?
		 ORDER BY occurred_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.InteractionEvent
	for rows.Next() {
		var e models.InteractionEvent
		var kind string
		var duration sql.NullFloat64
		var occurred int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.ArticleID, &kind, &duration, &occurred); err != nil {
			return nil, err
		}
		e.Kind = models.InteractionKind(kind)
		e.DurationSeconds = duration.Float64
		e.OccurredAt = fromMillis(occurred)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// EngagementCounts returns the number of events per article since the given time.
func (s *SQLiteStorage) EngagementCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT article_id, COUNT(*) FROM interaction_events
		 WHERE occurred_at >= ? GROUP BY article_id`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// GetSignal returns the user's preference signal, or ErrNotFound.
func (s *SQLiteStorage) GetSignal(ctx context.Context, userID string) (*models.PreferenceSignal, error) {
	var catJSON, srcJSON string
	var count, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT category_weights, source_weights, event_count, updated_at
		 FROM preference_signals WHERE user_id = ?`, userID,
	).Scan(&catJSON, &srcJSON, &count, &updated)
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sig := models.NewPreferenceSignal(userID)
	if err := json.Unmarshal([]byte(catJSON), &sig.CategoryWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal category weights: %w", err)
	}
	if err := json.Unmarshal([]byte(srcJSON), &sig.SourceWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source weights: %w", err)
	}
	sig.EventCount = count
	sig.UpdatedAt = fromMillis(updated)
	return sig, nil
}

// PutSignal stores the user's preference signal.
func (s *SQLiteStorage) PutSignal(ctx context.Context, sig *models.PreferenceSignal) error {
	catJSON, err := json.Marshal(sig.CategoryWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal category weights: %w", err)
	}
	srcJSON, err := json.Marshal(sig.SourceWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal source weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preference_signals (user_id, category_weights, source_weights, event_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			category_weights = excluded.category_weights,
			source_weights = excluded.source_weights,
			event_count = excluded.event_count,
			updated_at = excluded.updated_at`,
		sig.UserID, string(catJSON), string(srcJSON), sig.EventCount, toMillis(sig.UpdatedAt),
	)
	return err
}

// AppendRecommendationLog stores an immutable recommendation record.
func (s *SQLiteStorage) AppendRecommendationLog(ctx context.Context, l *models.RecommendationLog) error {
	items, err := json.Marshal(l.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendation_logs (id, user_id, algorithm, model_version, items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Algorithm, l.ModelVersion, string(items), toMillis(l.CreatedAt),
	)
	return err
}

// ListRecommendationLogs returns the user's most recent logs, newest first.
func (s *SQLiteStorage) ListRecommendationLogs(ctx context.Context, userID string, limit int) ([]*models.RecommendationLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, algorithm, model_version, items, created_at
		 FROM recommendation_logs WHERE user_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RecommendationLog
	for rows.Next() {
		var l models.RecommendationLog
		var version sql.NullString
		var items string
		var created int64
		if err := rows.Scan(&l.ID, &l.UserID, &l.Algorithm, &version, &items, &created); err != nil {
			return nil, err
		}
		l.ModelVersion = version.String
		l.CreatedAt = fromMillis(created)
		if err := json.Unmarshal([]byte(items), &l.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// GetUserProfile returns the stored profile, or ErrNotFound.
func (s *SQLiteStorage) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var cats string
	var sources, optIns sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT declared_categories, declared_sources, opt_ins FROM user_profiles WHERE user_id = ?`,
		userID).Scan(&cats, &sources, &optIns)
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := &models.UserProfile{UserID: userID}
	if err := json.Unmarshal([]byte(cats), &p.DeclaredCategories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal declared categories: %w", err)
	}
	if sources.Valid && sources.String != "" {
		_ = json.Unmarshal([]byte(sources.String), &p.DeclaredSources)
	}
	if optIns.Valid && optIns.String != "" {
		_ = json.Unmarshal([]byte(optIns.String), &p.OptIns)
	}
	return p, nil
}

// PutUserProfile stores a profile. Profiles are owned elsewhere; this exists
// for seeding and synchronization.
func (s *SQLiteStorage) PutUserProfile(ctx context.Context, p *models.UserProfile) error {
	cats, err := json.Marshal(p.DeclaredCategories)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(p.DeclaredSources)
	if err != nil {
		return err
	}
	optIns, err := json.Marshal(p.OptIns)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, declared_categories, declared_sources, opt_ins)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			declared_categories = excluded.declared_categories,
			declared_sources = excluded.declared_sources,
			opt_ins = excluded.opt_ins`,
		p.UserID, string(cats), string(sources), string(optIns),
	)
	return err
}
