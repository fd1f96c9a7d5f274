// Package feedback records user interactions and folds them into per-user
// preference signals.
package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/pkg/utils"
)

var (
	// ErrInvalidEvent is returned for events that fail validation.
	ErrInvalidEvent = errors.New("invalid interaction event")
	// ErrStopped is returned by Record after the loop has shut down.
	ErrStopped = errors.New("feedback loop stopped")
)

// ArticleLookup resolves the article an event refers to.
type ArticleLookup interface {
	Get(ctx context.Context, id string) (*models.Article, error)
}

// Ack acknowledges a recorded event.
type Ack struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// Loop owns one actor goroutine per active user. Each actor applies its
// user's events in arrival order.
type Loop struct {
	store      storage.Storage
	articles   ArticleLookup
	config     config.FeedbackConfig
	invalidate func(userID string)
	logger     *zap.Logger
	now        func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	actors    map[string]*actor
	stopped   bool
	recording sync.WaitGroup
	wg        sync.WaitGroup
	pending   atomic.Int64
}

type actor struct {
	userID  string
	mailbox chan *models.InteractionEvent
	// sending counts enqueuers holding this actor outside l.mu.
	sending atomic.Int32
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) { lp.logger = utils.OrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(lp *Loop) { lp.now = now }
}

// WithInvalidator sets the callback run after a preference-altering event
// has been applied.
func WithInvalidator(fn func(userID string)) Option {
	return func(lp *Loop) { lp.invalidate = fn }
}

// New creates a Loop.
func New(store storage.Storage, articles ArticleLookup, cfg config.FeedbackConfig, opts ...Option) *Loop {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = 72 * time.Hour
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		store:      store,
		articles:   articles,
		config:     cfg,
		invalidate: func(string) {},
		logger:     zap.NewNop(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		actors:     make(map[string]*actor),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// EventID derives the dedup key of an event without one.
func EventID(ev *models.InteractionEvent) string {
	h := sha256.New()
	h.Write([]byte(ev.UserID + "|" + ev.ArticleID + "|" + string(ev.Kind) + "|" + strconv.FormatInt(ev.OccurredAt.UnixMilli(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Loop) validate(ev *models.InteractionEvent) error {
	switch {
	case ev.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	case ev.ArticleID == "":
		return fmt.Errorf("%w: missing article id", ErrInvalidEvent)
	case !ev.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	case ev.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidEvent)
	}
	return nil
}

// Record validates ev, appends it to the interaction log and hands it to
// the user's actor. It does not wait for the signal update. Once an event is
// in the log it is always handed to an actor, so Stop cannot strand it.
func (l *Loop) Record(ctx context.Context, event models.InteractionEvent) (Ack, error) {
	ev := &event
	if err := l.validate(ev); err != nil {
		return Ack{}, err
	}
	now := l.now()
	if ev.OccurredAt.IsZero() || ev.OccurredAt.After(now) {
		ev.OccurredAt = now
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	if ev.ID == "" {
		ev.ID = EventID(ev)
	}

	// Stop waits for accepted events to be enqueued before it stops the
	// actors.
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return Ack{}, ErrStopped
	}
	l.recording.Add(1)
	l.mu.Unlock()
	defer l.recording.Done()

	inserted, err := l.store.AppendInteraction(ctx, ev)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to append interaction: %w", err)
	}
	metrics.RecordInteraction(string(ev.Kind), !inserted)
	if !inserted {
		return Ack{EventID: ev.ID, Duplicate: true}, nil
	}
	l.enqueue(ev)
	return Ack{EventID: ev.ID}, nil
}

// enqueue hands ev to its user's actor, starting one if needed. The send is
// not cancellable: the event is already in the log and must be applied.
func (l *Loop) enqueue(ev *models.InteractionEvent) {
	l.mu.Lock()
	a, ok := l.actors[ev.UserID]
	if !ok {
		a = &actor{userID: ev.UserID, mailbox: make(chan *models.InteractionEvent, l.config.MailboxSize)}
		l.actors[ev.UserID] = a
		l.wg.Add(1)
		metrics.ActiveActors.Inc()
		go l.run(a)
	}
	a.sending.Add(1)
	l.pending.Add(1)
	l.mu.Unlock()

	// The actor drains without taking l.mu, so a full mailbox only blocks
	// until it catches up.
	a.mailbox <- ev
	a.sending.Add(-1)
}

func (l *Loop) run(a *actor) {
	defer l.wg.Done()
	defer metrics.ActiveActors.Dec()
	idle := time.NewTimer(l.config.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case ev := <-a.mailbox:
			l.apply(l.ctx, ev)
			l.pending.Add(-1)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(l.config.IdleTimeout)
		case <-idle.C:
			l.mu.Lock()
			if len(a.mailbox) > 0 || a.sending.Load() > 0 {
				l.mu.Unlock()
				idle.Reset(l.config.IdleTimeout)
				continue
			}
			delete(l.actors, a.userID)
			l.mu.Unlock()
			return
		case <-l.ctx.Done():
			// Events left in the mailbox are already in the log; apply them
			// with a short deadline so the signal is not lost on shutdown.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			for {
				select {
				case ev := <-a.mailbox:
					l.apply(ctx, ev)
					l.pending.Add(-1)
					continue
				default:
				}
				break
			}
			cancel()
			return
		}
	}
}

func (l *Loop) apply(ctx context.Context, ev *models.InteractionEvent) {
	article, err := l.articles.Get(ctx, ev.ArticleID)
	if err != nil {
		l.logger.Warn("interaction for unknown article",
			zap.String("user_id", ev.UserID),
			zap.String("article_id", ev.ArticleID),
			zap.Error(err))
		article = nil
	}
	sig, err := l.store.GetSignal(ctx, ev.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		sig, err = models.NewPreferenceSignal(ev.UserID), nil
	}
	if err != nil {
		l.logger.Error("failed to load preference signal", zap.String("user_id", ev.UserID), zap.Error(err))
		return
	}
	Apply(sig, article, ev, l.config.HalfLife)
	if err := l.store.PutSignal(ctx, sig); err != nil {
		l.logger.Error("failed to store preference signal", zap.String("user_id", ev.UserID), zap.Error(err))
		return
	}
	if AltersPreference(ev.Kind) {
		l.invalidate(ev.UserID)
	}
}

// Signal returns the user's preference signal decayed to now. Unknown users
// get an empty signal.
func (l *Loop) Signal(ctx context.Context, userID string) (*models.PreferenceSignal, error) {
	sig, err := l.store.GetSignal(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewPreferenceSignal(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return DecayTo(sig, l.now(), l.config.HalfLife), nil
}

// History returns the user's most recent interactions, newest first.
func (l *Loop) History(ctx context.Context, userID string, limit int) ([]*models.InteractionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.ListInteractions(ctx, userID, limit)
}

// ActiveActors returns the number of running actors.
func (l *Loop) ActiveActors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actors)
}

// Drain blocks until every enqueued event has been applied or ctx is done.
func (l *Loop) Drain(ctx context.Context) error {
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()
	for l.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Serve runs until ctx is cancelled, then stops all actors.
func (l *Loop) Serve(ctx context.Context) error {
	<-ctx.Done()
	l.Stop()
	return ctx.Err()
}

// Stop rejects new events, waits for accepted ones to reach their actors,
// then waits for actors to apply them and exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.recording.Wait()
	l.cancel()
	l.wg.Wait()
}

// String implements fmt.Stringer for supervisor logs.
func (l *Loop) String() string { return "feedback-loop" }
