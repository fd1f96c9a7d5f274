// Package inference scores feature vectors with the click/dwell model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/pkg/utils"
)

// ErrModelUnavailable is returned when no model is loaded.
var ErrModelUnavailable = errors.New("scoring model unavailable")

// DimensionError reports a feature vector of the wrong length.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("feature dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Engine bounds concurrent access to a Model.
type Engine struct {
	model  Model
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// NewEngine wraps model, allowing at most maxConcurrency batches in flight.
// A nil model yields an engine that always returns ErrModelUnavailable.
func NewEngine(model Model, maxConcurrency int, opts ...Option) *Engine {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	e := &Engine{model: model, sem: semaphore.NewWeighted(int64(maxConcurrency)), logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load builds the engine described by cfg for vectors of inputDim. An empty
// artifact path selects BaselineArtifact.
func Load(cfg config.ModelConfig, inputDim int, logger *zap.Logger) (*Engine, error) {
	logger = utils.OrNop(logger)
	var (
		model Model
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "native":
		art := BaselineArtifact(inputDim)
		if cfg.ArtifactPath != "" {
			if art, err = LoadArtifact(cfg.ArtifactPath); err != nil {
				return nil, err
			}
		}
		model, err = NewNativeModel(art)
	case "onnx":
		model, err = NewONNXModel(cfg.ArtifactPath, "onnx:"+cfg.ArtifactPath, inputDim)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if model.InputDim() != inputDim {
		_ = model.Close()
		return nil, &DimensionError{Expected: inputDim, Got: model.InputDim()}
	}
	logger.Info("scoring model loaded",
		zap.String("version", model.Version()),
		zap.Int("input_dim", inputDim))
	return NewEngine(model, cfg.MaxConcurrency, WithLogger(logger)), nil
}

// Version is the loaded model's version, or "" without a model.
func (e *Engine) Version() string {
	if e == nil || e.model == nil {
		return ""
	}
	return e.model.Version()
}

// Score predicts click probability and dwell time for every vector.
func (e *Engine) Score(ctx context.Context, batch [][]float32) ([]Prediction, error) {
	if e == nil || e.model == nil {
		return nil, ErrModelUnavailable
	}
	dim := e.model.InputDim()
	for _, x := range batch {
		if len(x) != dim {
			return nil, &DimensionError{Expected: dim, Got: len(x)}
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	preds, err := e.model.Predict(ctx, batch)
	if err != nil {
		return nil, err
	}
	metrics.RecordInference(len(batch), time.Since(start))
	return preds, nil
}

// Close releases the model.
func (e *Engine) Close() error {
	if e == nil || e.model == nil {
		return nil
	}
	return e.model.Close()
}
