package telephony

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/models"
)

func receive(t *testing.T, signals <-chan models.Signal) models.Signal {
	t.Helper()
	select {
	case sig := <-signals:
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("no signal raised")
		return models.Signal{}
	}
}

func TestLoopback_RaisesBothSignals(t *testing.T) {
	signals := make(chan models.Signal, 4)
	l := NewLoopback(config.LoopbackConfig{Delay: time.Millisecond}, true, signals, zerolog.Nop())
	defer l.Close()

	require.NoError(t, l.Send(context.Background(), "m1", "+100", "hi"))

	assert.Equal(t, models.Signal{MessageID: "m1", Phase: models.PhaseSent, Code: 0}, receive(t, signals))
	assert.Equal(t, models.Signal{MessageID: "m1", Phase: models.PhaseDelivered, Code: 0}, receive(t, signals))
}

func TestLoopback_FailedSendHasNoDeliverySignal(t *testing.T) {
	signals := make(chan models.Signal, 4)
	l := NewLoopback(config.LoopbackConfig{SentCode: models.ResultRadioOff}, true, signals, zerolog.Nop())

	require.NoError(t, l.Send(context.Background(), "m1", "+100", "hi"))
	assert.Equal(t, models.Signal{MessageID: "m1", Phase: models.PhaseSent, Code: 2}, receive(t, signals))

	require.NoError(t, l.Close())
	assert.Empty(t, signals)
}

func TestLoopback_DeliveredCode(t *testing.T) {
	signals := make(chan models.Signal, 4)
	l := NewLoopback(config.LoopbackConfig{DeliveredCode: 1}, true, signals, zerolog.Nop())
	defer l.Close()

	require.NoError(t, l.Send(context.Background(), "m1", "+100", "hi"))
	receive(t, signals)
	assert.Equal(t, 1, receive(t, signals).Code)
}

func TestLoopback_RejectsSynchronously(t *testing.T) {
	signals := make(chan models.Signal, 4)
	l := NewLoopback(config.LoopbackConfig{}, true, signals, zerolog.Nop())
	defer l.Close()

	assert.ErrorIs(t, l.Send(context.Background(), "m1", "  ", "hi"), ErrInvalidRecipient)
	assert.ErrorIs(t, l.Send(context.Background(), "m2", "+100", ""), ErrInvalidBody)
}

func TestLoopback_CloseDropsPendingSignals(t *testing.T) {
	signals := make(chan models.Signal)
	l := NewLoopback(config.LoopbackConfig{Delay: time.Hour}, false, signals, zerolog.Nop())

	require.NoError(t, l.Send(context.Background(), "m1", "+100", "hi"))
	assert.False(t, l.SendPermitted())

	done := make(chan struct{})
	go func() {
		_ = l.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a pending send")
	}
}

func TestNew_SelectsDriver(t *testing.T) {
	signals := make(chan models.Signal, 1)

	a, err := New(config.TelephonyConfig{Driver: "loopback", SendPermitted: true}, signals, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Loopback{}, a)
	assert.True(t, a.SendPermitted())
	require.NoError(t, a.Close())

	a, err = New(config.TelephonyConfig{Driver: "gateway", Gateway: config.GatewayConfig{URL: "http://modem.local"}}, signals, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Gateway{}, a)

	_, err = New(config.TelephonyConfig{Driver: "gateway"}, signals, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(config.TelephonyConfig{Driver: "carrier-pigeon"}, signals, zerolog.Nop())
	assert.Error(t, err)
}
