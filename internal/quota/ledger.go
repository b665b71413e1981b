// Package quota enforces the daily cap on SMS send attempts.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
	"github.com/shohag/smsrelay/internal/storage"
)

// DailyLimit is the number of send attempts allowed per local calendar day.
const DailyLimit = 90

const dateLayout = "2006-01-02"

type Store interface {
	GetQuota(ctx context.Context) (*models.QuotaState, error)
	PutQuota(ctx context.Context, q *models.QuotaState) error
}

// Ledger counts send attempts per local calendar day. Every operation runs the
// day-rollover check and its mutation under one lock.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics

	state    models.QuotaState
	loaded   bool
	unsynced int
}

type Option func(*Ledger)

// WithClock overrides the wall clock used for day boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store Store, log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "quota").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanSend reports whether another attempt fits in today's quota. While the
// stored state cannot be read it answers false.
func (l *Ledger) CanSend(ctx context.Context) bool {
	return l.CanSendAfter(ctx, 0)
}

// CanSendAfter is CanSend with `reserved` attempts already admitted but not
// yet recorded by Increment.
func (l *Ledger) CanSendAfter(ctx context.Context, reserved int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.rollover(ctx) {
		return false
	}
	return l.state.Count+reserved < DailyLimit
}

// Increment records one send attempt. Call it after the send primitive was
// invoked, whatever the eventual outcome. Attempts made while the store is
// unreadable are held in memory and added once it loads.
func (l *Ledger) Increment(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.rollover(ctx) {
		l.unsynced++
		return
	}
	l.state.Count++
	l.persist(ctx)
}

// Details returns "<count> / <limit>".
func (l *Ledger) Details(ctx context.Context) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover(ctx)
	return fmt.Sprintf("%d / %d", l.state.Count+l.unsynced, DailyLimit)
}

// Snapshot returns a copy of the current state after the rollover check.
func (l *Ledger) Snapshot(ctx context.Context) models.QuotaState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover(ctx)
	state := l.state
	state.Count += l.unsynced
	return state
}

// rollover loads persisted state on first use and resets the counter when the
// stored date is not today. It returns false, without touching the store, if
// the state could not be loaded. Caller holds l.mu.
func (l *Ledger) rollover(ctx context.Context) bool {
	if !l.loaded && !l.load(ctx) {
		return false
	}

	today := l.now().Local().Format(dateLayout)
	if l.state.ResetDate != today {
		l.log.Info().
			Str("previous_date", l.state.ResetDate).
			Int("previous_count", l.state.Count).
			Str("date", today).
			Msg("daily quota reset")

		l.state = models.QuotaState{Count: 0, ResetDate: today}
		l.persist(ctx)
	}

	if l.unsynced > 0 {
		l.state.Count += l.unsynced
		l.unsynced = 0
		l.persist(ctx)
	}
	return true
}

// load reads the stored state. A corrupt record counts as a fresh ledger; any
// other read error leaves the ledger unloaded so the next call retries.
func (l *Ledger) load(ctx context.Context) bool {
	q, err := l.store.GetQuota(ctx)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		l.log.Warn().Err(err).Msg("quota state corrupt, starting from zero")
	case err != nil:
		l.log.Error().Err(err).Msg("quota state unavailable")
		return false
	case q == nil:
	case q.Count < 0:
		l.log.Warn().Int("count", q.Count).Msg("negative quota count, starting from zero")
	default:
		l.state = *q
	}

	l.loaded = true
	return true
}

func (l *Ledger) persist(ctx context.Context) {
	l.metrics.SetQuotaUsed(l.state.Count)

	state := l.state
	if err := l.store.PutQuota(ctx, &state); err != nil {
		l.log.Error().Err(err).Int("count", state.Count).Msg("failed to persist quota state")
	}
}
