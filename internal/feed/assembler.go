// Package feed assembles personalized feeds, trending lists and search
// results from the catalog.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/catalog"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/features"
	"github.com/hyperjump/yomu/internal/inference"
	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/ranking"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/pkg/utils"
)

// Assembler builds feeds. It is safe for concurrent use.
type Assembler struct {
	catalog *catalog.Catalog
	store   storage.Storage
	encoder *features.Encoder
	engine  *inference.Engine
	fuser   *ranking.Fuser
	cache   *responseCache
	config  config.FeedConfig
	logger  *zap.Logger
	now     func() time.Time

	pending sync.WaitGroup
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the assembler logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = utils.OrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// New creates an Assembler. A nil engine makes every feed use the fallback
// ranking.
func New(cat *catalog.Catalog, store storage.Storage, encoder *features.Encoder, engine *inference.Engine, fuser *ranking.Fuser, cfg config.FeedConfig, opts ...Option) (*Assembler, error) {
	cache, err := newResponseCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		catalog: cat,
		store:   store,
		encoder: encoder,
		engine:  engine,
		fuser:   fuser,
		cache:   cache,
		config:  cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *Assembler) limits(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = a.config.DefaultLimit
	}
	if limit <= 0 {
		limit = 20
	}
	if a.config.MaxLimit > 0 && limit > a.config.MaxLimit {
		limit = a.config.MaxLimit
	}
	return limit, max(offset, 0)
}

func (a *Assembler) candidates(ctx context.Context, category models.Category, now time.Time) ([]*models.Article, error) {
	since := time.Time{}
	if a.config.CandidateWindow > 0 {
		since = now.Add(-a.config.CandidateWindow)
	}
	pool := a.config.CandidatePool
	if pool <= 0 {
		pool = 200
	}
	if category != "" {
		return a.catalog.QueryByCategory(ctx, category, since, pool)
	}
	return a.catalog.Recent(ctx, since, pool)
}

// UserContext loads the profile and preference signal of userID. Missing
// records yield nil fields.
func (a *Assembler) UserContext(ctx context.Context, userID string) (features.UserContext, error) {
	uc := features.UserContext{UserID: userID}
	if userID == "" {
		return uc, nil
	}
	profile, err := a.store.GetUserProfile(ctx, userID)
	switch {
	case err == nil:
		uc.Profile = profile
	case !errors.Is(err, storage.ErrNotFound):
		return uc, fmt.Errorf("failed to load profile: %w", err)
	}
	signal, err := a.store.GetSignal(ctx, userID)
	switch {
	case err == nil:
		uc.Signal = signal
	case !errors.Is(err, storage.ErrNotFound):
		return uc, fmt.Errorf("failed to load preference signal: %w", err)
	}
	return uc, nil
}

// userContextOrDefault is UserContext that degrades instead of failing: a
// profile or signal that cannot be loaded is replaced by an empty context
// and reported as degraded. Only cancellation is returned as an error.
func (a *Assembler) userContextOrDefault(ctx context.Context, userID string) (features.UserContext, bool, error) {
	uc, err := a.UserContext(ctx, userID)
	if err == nil {
		return uc, false, nil
	}
	if ctx.Err() != nil {
		return uc, false, ctx.Err()
	}
	a.logger.Warn("user context unavailable, using defaults",
		zap.String("user_id", userID),
		zap.Error(err))
	return features.UserContext{UserID: userID}, true, nil
}

// Feed returns the personalized feed page for req.
func (a *Assembler) Feed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error) {
	start := time.Now()
	limit, offset := a.limits(req.Limit, req.Offset)
	key := a.cache.key("feed", req.UserID, req.Category, limit, offset)
	if resp, ok := a.cache.get(key); ok {
		return resp, nil
	}

	now := a.now()
	articles, err := a.candidates(ctx, req.Category, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	uc, ucDegraded, err := a.userContextOrDefault(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	resp := &models.FeedResponse{GeneratedAt: now, Articles: []models.RankedArticle{}, Degraded: ucDegraded}
	ranked, degraded, err := a.rankWithModel(ctx, uc, articles, now, limit)
	switch {
	case err == nil:
		resp.Algorithm = models.AlgorithmModel
		resp.ModelVersion = a.engine.Version()
		resp.Degraded = resp.Degraded || degraded
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		a.logger.Warn("model ranking unavailable, using fallback",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		ranked = a.rankFallback(uc, articles, now, limit)
		resp.Algorithm = models.AlgorithmFallback
		resp.Fallback = true
	}

	resp.Total = len(ranked)
	resp.Articles = page(ranked, offset, limit)
	if req.UserID != "" && len(resp.Articles) > 0 {
		a.logRecommendation(req.UserID, resp)
	}
	a.cache.set(key, resp)
	metrics.RecordFeed(resp.Algorithm, time.Since(start))
	return resp, nil
}

// rankWithModel encodes and scores candidates within the latency budget.
func (a *Assembler) rankWithModel(ctx context.Context, uc features.UserContext, articles []*models.Article, now time.Time, limit int) ([]models.RankedArticle, bool, error) {
	if a.engine == nil {
		return nil, false, inference.ErrModelUnavailable
	}
	if len(articles) == 0 {
		return nil, false, nil
	}
	bctx := ctx
	if a.config.LatencyBudget > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, a.config.LatencyBudget)
		defer cancel()
	}

	feats, err := a.encoder.EncodeBatch(bctx, uc, articles, now, a.config.EncodeConcurrency)
	if err != nil {
		return nil, false, err
	}
	vectors := make([][]float32, len(feats))
	degraded := false
	for i, f := range feats {
		vectors[i] = f.Vector
		degraded = degraded || f.Degraded
	}
	preds, err := a.engine.Score(bctx, vectors)
	if err != nil {
		return nil, false, err
	}
	if err := bctx.Err(); err != nil {
		return nil, false, err
	}
	cands := make([]ranking.Candidate, len(articles))
	for i, art := range articles {
		cands[i] = ranking.Candidate{Article: art, Prediction: preds[i]}
	}
	return a.fuser.Rank(cands, now, limit), degraded, nil
}

func (a *Assembler) rankFallback(uc features.UserContext, articles []*models.Article, now time.Time, limit int) []models.RankedArticle {
	items := make([]models.RankedArticle, len(articles))
	for i, art := range articles {
		match := features.CategoryAffinity(uc.Signal, art.Category)
		if uc.Profile.Declares(art.Category) {
			match = max(match, 1)
		}
		items[i] = models.RankedArticle{Article: art, Score: a.fuser.FallbackScore(art, match, now)}
	}
	return a.fuser.Diversify(items, limit)
}

func page(items []models.RankedArticle, offset, limit int) []models.RankedArticle {
	if offset >= len(items) {
		return []models.RankedArticle{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// Trending returns the non-personalized trending list.
func (a *Assembler) Trending(ctx context.Context, category models.Category, limit int) (*models.FeedResponse, error) {
	start := time.Now()
	limit, _ = a.limits(limit, 0)
	key := a.cache.key("trending", "", category, limit)
	if resp, ok := a.cache.get(key); ok {
		return resp, nil
	}

	now := a.now()
	articles, err := a.candidates(ctx, category, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	counts, err := a.store.EngagementCounts(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement: %w", err)
	}
	raw := make(map[string]float64, len(counts))
	for id, n := range counts {
		raw[id] = float64(n)
	}
	engagement := ranking.NormalizeScores(raw)

	items := make([]models.RankedArticle, len(articles))
	for i, art := range articles {
		items[i] = models.RankedArticle{Article: art, Score: a.fuser.TrendingScore(art, engagement[art.ID], now)}
	}
	ranked := a.fuser.Diversify(items, limit)
	resp := &models.FeedResponse{
		Articles:    page(ranked, 0, limit),
		Algorithm:   models.AlgorithmTrending,
		Total:       len(ranked),
		GeneratedAt: now,
	}
	a.cache.set(key, resp)
	metrics.RecordFeed(resp.Algorithm, time.Since(start))
	return resp, nil
}

// Search runs a catalog search. With a user, hits are reordered by fusing
// the keyword score with the personal model score.
func (a *Assembler) Search(ctx context.Context, req models.SearchRequest) (*models.FeedResponse, error) {
	start := time.Now()
	limit, _ := a.limits(req.Limit, 0)
	now := a.now()
	hits, err := a.catalog.Search(ctx, req.Query, req.Category, limit*3)
	if err != nil {
		return nil, err
	}

	resp := &models.FeedResponse{Algorithm: models.AlgorithmSearch, GeneratedAt: now, Articles: []models.RankedArticle{}}
	byID := make(map[string]*models.Article, len(hits))
	kw := make(map[string]float64, len(hits))
	for _, h := range hits {
		byID[h.Article.ID] = h.Article
		kw[h.Article.ID] = h.Score
	}

	personal := map[string]float64{}
	preds := map[string]inference.Prediction{}
	if req.UserID != "" && a.engine != nil && len(hits) > 0 {
		if p, pr, degraded, err := a.personalScores(ctx, req.UserID, hits, now); err == nil {
			personal, preds = p, pr
			resp.ModelVersion = a.engine.Version()
			resp.Degraded = degraded
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else {
			a.logger.Warn("search personalization failed", zap.Error(err))
			resp.Degraded = true
		}
	}

	fused := a.fuser.Fuse(kw, personal)
	for _, f := range fused {
		resp.Articles = append(resp.Articles, models.RankedArticle{
			Article:          byID[f.ArticleID],
			Score:            f.Score,
			ClickProbability: preds[f.ArticleID].ClickProbability,
			DwellSeconds:     preds[f.ArticleID].DwellSeconds,
		})
	}
	resp.Total = len(resp.Articles)
	resp.Articles = page(resp.Articles, 0, limit)
	if req.UserID != "" && len(resp.Articles) > 0 {
		a.logRecommendation(req.UserID, resp)
	}
	metrics.RecordFeed(resp.Algorithm, time.Since(start))
	return resp, nil
}

func (a *Assembler) personalScores(ctx context.Context, userID string, hits []catalog.SearchHit, now time.Time) (map[string]float64, map[string]inference.Prediction, bool, error) {
	uc, degraded, err := a.userContextOrDefault(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}
	articles := make([]*models.Article, len(hits))
	for i, h := range hits {
		articles[i] = h.Article
	}
	bctx := ctx
	if a.config.LatencyBudget > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, a.config.LatencyBudget)
		defer cancel()
	}
	feats, err := a.encoder.EncodeBatch(bctx, uc, articles, now, a.config.EncodeConcurrency)
	if err != nil {
		return nil, nil, false, err
	}
	vectors := make([][]float32, len(feats))
	for i, f := range feats {
		vectors[i] = f.Vector
		degraded = degraded || f.Degraded
	}
	preds, err := a.engine.Score(bctx, vectors)
	if err != nil {
		return nil, nil, false, err
	}
	scores := make(map[string]float64, len(hits))
	byID := make(map[string]inference.Prediction, len(hits))
	for i, art := range articles {
		scores[art.ID] = a.fuser.Score(ranking.Candidate{Article: art, Prediction: preds[i]}, now)
		byID[art.ID] = preds[i]
	}
	return scores, byID, degraded, nil
}

// Similar returns up to limit recent articles closest to articleID by
// embedding cosine similarity.
func (a *Assembler) Similar(ctx context.Context, articleID string, limit int) ([]models.RankedArticle, error) {
	limit, _ = a.limits(limit, 0)
	target, err := a.catalog.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	ref, err := a.encoder.Embedding(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to embed article: %w", err)
	}
	articles, err := a.candidates(ctx, "", a.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	out := make([]models.RankedArticle, 0, len(articles))
	for _, art := range articles {
		if art.ID == target.ID {
			continue
		}
		emb, err := a.encoder.Embedding(ctx, art)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		out = append(out, models.RankedArticle{Article: art, Score: utils.Cosine(ref, emb)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Article.ID < out[j].Article.ID
	})
	return page(out, 0, limit), nil
}

func (a *Assembler) logRecommendation(userID string, resp *models.FeedResponse) {
	entry := &models.RecommendationLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		Algorithm:    resp.Algorithm,
		ModelVersion: resp.ModelVersion,
		Items:        make([]models.RecommendationItem, len(resp.Articles)),
		CreatedAt:    resp.GeneratedAt,
	}
	for i, r := range resp.Articles {
		entry.Items[i] = models.RecommendationItem{ArticleID: r.Article.ID, Score: r.Score}
	}
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.AppendRecommendationLog(ctx, entry); err != nil {
			a.logger.Warn("failed to append recommendation log",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()
}

// InvalidateUser drops cached feeds of userID.
func (a *Assembler) InvalidateUser(userID string) {
	a.cache.invalidateUser(userID)
}

// InvalidateAll drops every cached response.
func (a *Assembler) InvalidateAll() {
	a.cache.invalidateAll()
}

// Flush waits for pending recommendation log writes.
func (a *Assembler) Flush() {
	a.pending.Wait()
}

// Close flushes pending writes and releases the cache.
func (a *Assembler) Close() {
	a.Flush()
	a.cache.close()
}
