// Package relay turns send instructions and telephony signals into status
// reports for the controller.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/dispatch"
	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
)

// Telephony is the one-shot send primitive. Send returns an error only for
// immediate rejection; completion arrives later as sent and delivered signals.
type Telephony interface {
	Send(ctx context.Context, messageID, recipient, body string) error
	SendPermitted() bool
}

// Quota admits send attempts. reserved counts attempts admitted whose send
// call has not returned yet.
type Quota interface {
	CanSendAfter(ctx context.Context, reserved int) bool
	Increment(ctx context.Context)
}

type Correlator interface {
	Register(ctx context.Context, messageID, recipient string) error
	Resolve(ctx context.Context, sig models.Signal) (dispatch.Outcome, error)
	Forget(ctx context.Context, messageID string)
}

// Reporter must not block.
type Reporter interface {
	Report(messageID string, status models.Status, errMsg string)
}

type Coordinator struct {
	// admit guards reserved. Admission and settlement are serialized so
	// concurrent instructions cannot overrun the daily limit; the send call
	// itself runs outside the lock.
	admit    sync.Mutex
	reserved int

	phone      Telephony
	quota      Quota
	correlator Correlator
	reporter   Reporter
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

func NewCoordinator(phone Telephony, quota Quota, correlator Correlator, reporter Reporter, log zerolog.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		phone:      phone,
		quota:      quota,
		correlator: correlator,
		reporter:   reporter,
		log:        log.With().Str("component", "coordinator").Logger(),
		metrics:    m,
	}
}

// HandleInstruction runs one instruction up to the send primitive. Failures
// the controller must hear about are reported before returning; the returned
// error only classifies the outcome for the caller's logs.
func (c *Coordinator) HandleInstruction(ctx context.Context, data map[string]string) error {
	in, err := ParseInstruction(data)
	if err != nil {
		c.metrics.Instruction("malformed")
		c.log.Warn().Err(err).Str("message_id", data["message_id"]).Msg("dropping malformed instruction")
		return err
	}

	log := c.log.With().Str("message_id", in.MessageID).Logger()

	// A replay of an in-flight id must be rejected before any report is sent.
	if err := c.correlator.Register(ctx, in.MessageID, in.Recipient); err != nil {
		if errors.Is(err, dispatch.ErrDuplicateDispatch) {
			c.metrics.Instruction("duplicate")
			log.Warn().Msg("instruction already in flight, ignoring replay")
			return err
		}
		c.metrics.Instruction("error")
		log.Error().Err(err).Msg("failed to register dispatch")
		return err
	}

	if !c.phone.SendPermitted() {
		c.correlator.Forget(ctx, in.MessageID)
		c.metrics.Instruction("permission_denied")
		log.Error().Msg("send permission not granted")
		c.reporter.Report(in.MessageID, models.StatusFailed, PermissionDeniedMessage)
		return ErrPermissionDenied
	}

	if !c.reserve(ctx) {
		c.correlator.Forget(ctx, in.MessageID)
		c.metrics.Instruction("quota_exceeded")
		log.Error().Str("recipient", in.Recipient).Msg("daily SMS limit reached")
		c.reporter.Report(in.MessageID, models.StatusFailed, QuotaExceededMessage)
		return ErrQuotaExceeded
	}

	err = c.phone.Send(ctx, in.MessageID, in.Recipient, in.Body)
	// counts the attempt, not the outcome
	c.settle(ctx, err == nil)

	if err != nil {
		c.correlator.Forget(ctx, in.MessageID)
		c.metrics.Instruction("rejected")
		log.Error().Err(err).Str("recipient", in.Recipient).Msg("failed to send SMS")
		c.reporter.Report(in.MessageID, models.StatusFailed, err.Error())
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	c.metrics.Instruction("accepted")
	log.Info().Str("recipient", in.Recipient).Msg("SMS queued")
	return nil
}

// reserve admits one attempt against the quota, counting attempts whose send
// is still running.
func (c *Coordinator) reserve(ctx context.Context) bool {
	c.admit.Lock()
	defer c.admit.Unlock()

	if !c.quota.CanSendAfter(ctx, c.reserved) {
		return false
	}
	c.reserved++
	return true
}

// settle releases a reservation, recording it in the ledger if the send
// primitive accepted the message.
func (c *Coordinator) settle(ctx context.Context, issued bool) {
	c.admit.Lock()
	defer c.admit.Unlock()

	if issued {
		c.quota.Increment(ctx)
	}
	c.reserved--
}

// HandleSignal resolves one completion signal and reports its status.
// Signals that match nothing are logged and dropped.
func (c *Coordinator) HandleSignal(ctx context.Context, sig models.Signal) error {
	log := c.log.With().
		Str("message_id", sig.MessageID).
		Str("phase", string(sig.Phase)).
		Int("code", sig.Code).
		Logger()

	out, err := c.correlator.Resolve(ctx, sig)
	if err != nil {
		c.metrics.Signal(string(sig.Phase), "ignored")
		switch {
		case errors.Is(err, dispatch.ErrUnknownDispatch), errors.Is(err, dispatch.ErrPhaseResolved):
			log.Warn().Err(err).Msg("ignoring signal")
		default:
			log.Error().Err(err).Msg("failed to resolve signal")
		}
		return err
	}

	c.metrics.Signal(string(out.Phase), string(out.Status))
	log.Info().Str("status", string(out.Status)).Msg("dispatch phase resolved")
	c.reporter.Report(out.MessageID, out.Status, out.Error)
	return nil
}

// Run consumes signals until ctx is done or the channel is closed.
func (c *Coordinator) Run(ctx context.Context, signals <-chan models.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			_ = c.HandleSignal(ctx, sig)
		}
	}
}
