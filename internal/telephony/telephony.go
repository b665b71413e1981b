// Package telephony provides the one-shot SMS send primitive.
package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/models"
)

var (
	ErrInvalidRecipient = errors.New("invalid destination address")
	ErrInvalidBody      = errors.New("invalid message body")
	// ErrRejected means the modem gateway refused the send.
	ErrRejected = errors.New("gateway rejected send")
)

// Adapter sends one SMS. Completion is reported later as a sent signal and,
// when the send succeeded, a delivered signal carrying the message id.
type Adapter interface {
	Send(ctx context.Context, messageID, recipient, body string) error
	SendPermitted() bool
	Close() error
}

// New builds the adapter selected by cfg.Driver. Signals raised by the
// adapter are written to signals.
func New(cfg config.TelephonyConfig, signals chan<- models.Signal, log zerolog.Logger) (Adapter, error) {
	switch cfg.Driver {
	case "", "loopback":
		return NewLoopback(cfg.Loopback, cfg.SendPermitted, signals, log), nil
	case "gateway":
		return NewGateway(cfg.Gateway, cfg.SendPermitted, log)
	default:
		return nil, fmt.Errorf("unsupported telephony driver: %s", cfg.Driver)
	}
}
