// Package heartbeat sends the periodic device liveness beacon.
package heartbeat

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
)

const (
	Path         = "/devices/heartbeat"
	apiKeyHeader = "x-api-key"
	idHeader     = "X-Relay-Heartbeat-ID"
)

type Result int

const (
	Success Result = iota
	Retry
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

type CredentialSource interface {
	GetCredentials(ctx context.Context) (*models.Credentials, error)
}

// QuotaGate reports whether the daily send budget still has room.
type QuotaGate interface {
	CanSend(ctx context.Context) bool
}

type Beacon struct {
	client   *resty.Client
	creds    CredentialSource
	quota    QuotaGate
	interval time.Duration
	schedule []time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewBeacon(client *resty.Client, creds CredentialSource, quota QuotaGate, interval time.Duration, schedule []time.Duration, log zerolog.Logger, m *metrics.Metrics) *Beacon {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if schedule == nil {
		schedule = DefaultRetrySchedule
	}
	return &Beacon{
		client:   client,
		creds:    creds,
		quota:    quota,
		interval: interval,
		schedule: schedule,
		log:      log.With().Str("component", "heartbeat").Logger(),
		metrics:  m,
	}
}

// Beat sends one heartbeat. Beacons are skipped while the daily send limit is
// reached; that still counts as Success.
func (b *Beacon) Beat(ctx context.Context) Result {
	result := b.beat(ctx)
	b.metrics.Heartbeat(result.String())
	return result
}

func (b *Beacon) beat(ctx context.Context) Result {
	creds, err := b.creds.GetCredentials(ctx)
	if err != nil || !creds.Configured() {
		b.log.Error().Err(err).Msg("missing credentials, skipping heartbeat")
		return Failure
	}

	if !b.quota.CanSend(ctx) {
		b.log.Warn().Msg("daily SMS limit reached, skipping heartbeat")
		return Success
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, creds.APIKey).
		SetHeader(idHeader, models.NewID("hb")).
		SetBody([]byte("{}")).
		Post(strings.TrimRight(creds.ServerURL, "/") + Path)
	if err != nil {
		b.log.Error().Err(err).Msg("heartbeat error")
		return Retry
	}
	if !IsSuccess(resp.StatusCode()) {
		b.log.Error().Int("status_code", resp.StatusCode()).Msg("heartbeat failed")
		return Retry
	}

	b.log.Debug().Dur("latency", resp.Time()).Msg("heartbeat successful")
	return Success
}

// Run beats immediately and then every interval until ctx is done. After a
// Retry the next beat follows the retry schedule instead.
func (b *Beacon) Run(ctx context.Context) {
	b.log.Info().
		Dur("interval", b.interval).
		Int("retry_steps", len(b.schedule)).
		Msg("heartbeat started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	retries := 0
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("heartbeat stopped")
			return
		case <-timer.C:
		}

		delay := b.interval
		if b.Beat(ctx) == Retry {
			retries++
			delay = NextDelay(retries, b.schedule, b.interval)
		} else {
			retries = 0
		}
		timer.Reset(delay)
	}
}
