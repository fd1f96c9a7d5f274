package source

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// GuardConfig configures Guard.
type GuardConfig struct {
	Timeout         time.Duration
	RateLimit       float64 // requests per second; <= 0 disables limiting
	RateBurst       int
	BreakerFailures uint32 // consecutive failures that open the breaker
	BreakerCooldown time.Duration
	Logger          *zap.Logger
}

// Guarded wraps an adapter with a timeout, a rate limiter and a circuit
// breaker.
type Guarded struct {
	inner   Adapter
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]models.RawArticle]
	logger  *zap.Logger
}

// Guard wraps inner.
func Guard(inner Adapter, cfg GuardConfig) *Guarded {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 2 * time.Minute
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	g := &Guarded{inner: inner, cfg: cfg, logger: utils.OrNop(cfg.Logger)}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	name := inner.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	g.breaker = gobreaker.NewCircuitBreaker[[]models.RawArticle](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// Cancellation by the caller says nothing about the source.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("source circuit breaker state change",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return g
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Carries delegates to the wrapped adapter.
func (g *Guarded) Carries(category models.Category) bool { return Carries(g.inner, category) }

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.breaker.State() }

// Fetch implements Adapter. Every error is a *Failure.
func (g *Guarded) Fetch(ctx context.Context, category models.Category, limit int) ([]models.RawArticle, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	items, err := g.breaker.Execute(func() ([]models.RawArticle, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, &Failure{Source: g.Name(), Kind: FailureTimeout, Err: err}
			}
		}
		items, err := g.inner.Fetch(ctx, category, limit)
		if err != nil && ctx.Err() != nil {
			// The inner error may hide the deadline behind a transport error.
			return nil, &Failure{Source: g.Name(), Kind: FailureTimeout, Err: ctx.Err()}
		}
		return items, err
	})
	if err == nil {
		return items, nil
	}
	var f *Failure
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		f = &Failure{Source: g.Name(), Kind: FailureCircuitOpen, Err: err}
	} else {
		f = AsFailure(g.Name(), err)
	}
	metrics.SourceFailures.WithLabelValues(f.Source, string(f.Kind)).Inc()
	return nil, f
}
