// Package dispatch correlates asynchronous telephony completion signals with
// the instructions that caused them.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
)

// Outcome is the result of resolving one phase of a dispatch.
type Outcome struct {
	MessageID string
	Recipient string
	Phase     models.Phase
	Status    models.Status
	Error     string
}

type entry struct {
	recipient         string
	sentResolved      bool
	deliveredResolved bool
	registeredAt      time.Time
}

type opKind int

const (
	opRegister opKind = iota
	opResolve
	opForget
	opCount
)

type request struct {
	op        opKind
	messageID string
	recipient string
	phase     models.Phase
	code      int
	reply     chan response
}

type response struct {
	outcome Outcome
	count   int
	err     error
}

// Correlator owns the pending-dispatch map. All access goes through a single
// goroutine started by Start; the public methods only exchange messages with it.
type Correlator struct {
	requests   chan request
	stop       chan struct{}
	done       chan struct{}
	retention  time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	log        zerolog.Logger
	metrics    *metrics.Metrics

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}

	// owned by the loop goroutine
	pending map[string]*entry
}

type Option func(*Correlator)

// WithRetention evicts entries older than d, checked every sweepEvery.
// A zero d keeps entries until both phases resolve.
func WithRetention(d, sweepEvery time.Duration) Option {
	return func(c *Correlator) {
		c.retention = d
		c.sweepEvery = sweepEvery
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

func NewCorrelator(log zerolog.Logger, opts ...Option) *Correlator {
	c := &Correlator{
		requests:   make(chan request),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		started:    make(chan struct{}),
		retention:  24 * time.Hour,
		sweepEvery: 10 * time.Minute,
		now:        time.Now,
		log:        log.With().Str("component", "correlator").Logger(),
		pending:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepEvery <= 0 {
		c.sweepEvery = time.Minute
	}
	return c
}

func (c *Correlator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		close(c.started)
		go c.loop(ctx)
	})
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (c *Correlator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		select {
		case <-c.started:
			<-c.done
		default:
		}
	})
}

// Register starts tracking a dispatch. It fails with ErrDuplicateDispatch if
// the message id is already pending.
func (c *Correlator) Register(ctx context.Context, messageID, recipient string) error {
	resp := c.call(ctx, request{op: opRegister, messageID: messageID, recipient: recipient})
	return resp.err
}

func (c *Correlator) ResolveSent(ctx context.Context, messageID string, code int) (Outcome, error) {
	return c.Resolve(ctx, models.Signal{MessageID: messageID, Phase: models.PhaseSent, Code: code})
}

func (c *Correlator) ResolveDelivered(ctx context.Context, messageID string, code int) (Outcome, error) {
	return c.Resolve(ctx, models.Signal{MessageID: messageID, Phase: models.PhaseDelivered, Code: code})
}

// Resolve marks the signal's phase resolved and maps its result code to a status.
func (c *Correlator) Resolve(ctx context.Context, sig models.Signal) (Outcome, error) {
	resp := c.call(ctx, request{op: opResolve, messageID: sig.MessageID, phase: sig.Phase, code: sig.Code})
	return resp.outcome, resp.err
}

// Forget drops a dispatch whose send never started.
func (c *Correlator) Forget(ctx context.Context, messageID string) {
	c.call(ctx, request{op: opForget, messageID: messageID})
}

// Pending returns the number of tracked dispatches.
func (c *Correlator) Pending(ctx context.Context) int {
	return c.call(ctx, request{op: opCount}).count
}

func (c *Correlator) call(ctx context.Context, req request) response {
	req.reply = make(chan response, 1)
	select {
	case c.requests <- req:
	case <-c.stop:
		return response{err: ErrStopped}
	case <-c.done:
		return response{err: ErrStopped}
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
	return <-req.reply
}

func (c *Correlator) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case req := <-c.requests:
			req.reply <- c.handle(req)
			c.metrics.SetPending(len(c.pending))
		case <-ticker.C:
			c.evict()
			c.metrics.SetPending(len(c.pending))
		}
	}
}

func (c *Correlator) handle(req request) response {
	switch req.op {
	case opRegister:
		if _, ok := c.pending[req.messageID]; ok {
			return response{err: fmt.Errorf("%w: %s", ErrDuplicateDispatch, req.messageID)}
		}
		c.pending[req.messageID] = &entry{recipient: req.recipient, registeredAt: c.now()}
		return response{}
	case opResolve:
		return c.resolve(req)
	case opForget:
		delete(c.pending, req.messageID)
		return response{}
	case opCount:
		return response{count: len(c.pending)}
	default:
		return response{err: fmt.Errorf("unknown correlator op %d", req.op)}
	}
}

func (c *Correlator) resolve(req request) response {
	e, ok := c.pending[req.messageID]
	if !ok {
		return response{err: fmt.Errorf("%w: %s", ErrUnknownDispatch, req.messageID)}
	}

	out := Outcome{MessageID: req.messageID, Recipient: e.recipient, Phase: req.phase}

	switch req.phase {
	case models.PhaseSent:
		if e.sentResolved {
			return response{err: fmt.Errorf("%w: %s %s", ErrPhaseResolved, req.phase, req.messageID)}
		}
		e.sentResolved = true
		out.Status, out.Error = models.SentOutcome(req.code)
		if out.Status == models.StatusFailed {
			// no delivery signal follows a failed send
			delete(c.pending, req.messageID)
			return response{outcome: out}
		}
	case models.PhaseDelivered:
		if e.deliveredResolved {
			return response{err: fmt.Errorf("%w: %s %s", ErrPhaseResolved, req.phase, req.messageID)}
		}
		e.deliveredResolved = true
		out.Status, out.Error = models.DeliveredOutcome(req.code)
	default:
		return response{err: fmt.Errorf("unknown phase %q for %s", req.phase, req.messageID)}
	}

	if e.sentResolved && e.deliveredResolved {
		delete(c.pending, req.messageID)
	}
	return response{outcome: out}
}

func (c *Correlator) evict() {
	if c.retention <= 0 {
		return
	}
	cutoff := c.now().Add(-c.retention)
	for id, e := range c.pending {
		if e.registeredAt.Before(cutoff) {
			c.log.Warn().
				Str("message_id", id).
				Str("recipient", e.recipient).
				Bool("sent_resolved", e.sentResolved).
				Time("registered_at", e.registeredAt).
				Msg("evicting dispatch that never completed")
			delete(c.pending, id)
		}
	}
}
