package telephony

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/models"
)

// Loopback accepts every well-formed send and raises its signals after a
// fixed delay with configured result codes. It stands in for a modem in
// development and tests.
type Loopback struct {
	cfg       config.LoopbackConfig
	permitted bool
	signals   chan<- models.Signal
	log       zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       conc.WaitGroup
}

func NewLoopback(cfg config.LoopbackConfig, permitted bool, signals chan<- models.Signal, log zerolog.Logger) *Loopback {
	return &Loopback{
		cfg:       cfg,
		permitted: permitted,
		signals:   signals,
		log:       log.With().Str("component", "loopback").Logger(),
		stop:      make(chan struct{}),
	}
}

func (l *Loopback) SendPermitted() bool { return l.permitted }

func (l *Loopback) Send(ctx context.Context, messageID, recipient, body string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrInvalidRecipient
	}
	if body == "" {
		return ErrInvalidBody
	}

	l.log.Debug().
		Str("message_id", messageID).
		Str("recipient", recipient).
		Int("length", len(body)).
		Msg("loopback send")

	l.wg.Go(func() {
		timer := time.NewTimer(l.cfg.Delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-l.stop:
			return
		}

		if !l.emit(models.Signal{MessageID: messageID, Phase: models.PhaseSent, Code: l.cfg.SentCode}) {
			return
		}
		if l.cfg.SentCode == models.ResultOK {
			l.emit(models.Signal{MessageID: messageID, Phase: models.PhaseDelivered, Code: l.cfg.DeliveredCode})
		}
	})
	return nil
}

func (l *Loopback) emit(sig models.Signal) bool {
	select {
	case l.signals <- sig:
		return true
	case <-l.stop:
		return false
	}
}

// Close drops signals not yet raised and waits for pending sends.
func (l *Loopback) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
	return nil
}
