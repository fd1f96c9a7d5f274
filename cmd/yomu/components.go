package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/catalog"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/embedding"
	"github.com/hyperjump/yomu/internal/feed"
	"github.com/hyperjump/yomu/internal/features"
	"github.com/hyperjump/yomu/internal/feedback"
	"github.com/hyperjump/yomu/internal/inference"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/keyword"
	"github.com/hyperjump/yomu/internal/normalize"
	"github.com/hyperjump/yomu/internal/ranking"
	"github.com/hyperjump/yomu/internal/source"
	"github.com/hyperjump/yomu/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	KeywordIndex *keyword.BleveIndex
	Catalog      *catalog.Catalog
	Embedder     embedding.Embedder
	Engine       *inference.Engine
	Assembler    *feed.Assembler
	Feedback     *feedback.Loop
	Scheduler    *ingest.Scheduler
}

// Close releases resources in reverse dependency order. Pending feedback
// and recommendation log writes are flushed first.
func (c *Components) Close() {
	if c.Feedback != nil {
		c.Feedback.Stop()
	}
	if c.Assembler != nil {
		c.Assembler.Flush()
		c.Assembler.Close()
	}
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = idx
	c.Catalog = catalog.New(store, idx, catalog.WithLogger(logger))

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		logger.Warn("failed to create embedder, falling back to mock",
			zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
		embedder = embedding.NewCachedEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	}
	c.Embedder = embedder
	encoder := features.NewEncoder(embedder, cfg.Ranking.RecencyHalfLife)

	engine, err := inference.Load(cfg.Model, encoder.Dimension(), logger)
	if err != nil {
		// Feeds are served with heuristic ranking until a model loads.
		logger.Warn("scoring model unavailable, feeds will use fallback ranking", zap.Error(err))
		engine = nil
	}
	c.Engine = engine
	logger.Info("scoring model initialized",
		zap.String("backend", cfg.Model.Backend),
		zap.String("version", engine.Version()),
		zap.Int("input_dim", encoder.Dimension()))

	fuser := ranking.NewFuser(ranking.FromConfig(cfg.Ranking))
	asm, err := feed.New(c.Catalog, store, encoder, engine, fuser, cfg.Feed, feed.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize feed assembler: %w", err)
	}
	c.Assembler = asm

	c.Feedback = feedback.New(store, c.Catalog, cfg.Feedback,
		feedback.WithLogger(logger),
		feedback.WithInvalidator(asm.InvalidateUser))

	normalizer := normalize.New(c.Catalog, normalize.Config{
		SimilarityThreshold: cfg.Normalize.SimilarityThreshold,
		FuzzyWindow:         cfg.Normalize.FuzzyWindow,
		Trusted:             cfg.Sources.Trusted,
	}, normalize.WithLogger(logger))
	adapters := source.Build(cfg.Sources, cfg.Ingest.FetchTimeout, logger)
	c.Scheduler = ingest.New(adapters, normalizer, c.Catalog, cfg.Ingest,
		ingest.WithLogger(logger),
		ingest.WithInvalidator(asm.InvalidateAll))

	return c, nil
}
