// Package report delivers message status updates to the controller.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
	"github.com/shohag/smsrelay/internal/signing"
)

const (
	StatusPath     = "/sms/status"
	APIKeyHeader   = "x-api-key"
	ReportIDHeader = "X-Relay-Report-ID"
)

var (
	// ErrNotConfigured means the server URL or API key has not been stored yet.
	ErrNotConfigured = errors.New("relay credentials not configured")
	// ErrReportDelivery means the report request failed or timed out.
	ErrReportDelivery = errors.New("status report delivery failed")
)

type CredentialSource interface {
	GetCredentials(ctx context.Context) (*models.Credentials, error)
}

// Reporter posts status reports without retry. Report is fire-and-forget;
// Wait drains reports still in flight.
type Reporter struct {
	client  *resty.Client
	creds   CredentialSource
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
	wg      conc.WaitGroup
}

func NewReporter(client *resty.Client, creds CredentialSource, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		client:  client,
		creds:   creds,
		timeout: timeout,
		now:     time.Now,
		log:     log.With().Str("component", "reporter").Logger(),
		metrics: m,
	}
}

// Report sends the status in the background. It never blocks the caller and
// never returns an error; failures are logged and dropped.
func (r *Reporter) Report(messageID string, status models.Status, errMsg string) {
	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.Deliver(ctx, messageID, status, errMsg); err != nil {
			r.log.Error().
				Err(err).
				Str("message_id", messageID).
				Str("status", string(status)).
				Msg("status report dropped")
		}
	})
}

// Wait blocks until every report started by Report has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Deliver performs one synchronous report attempt. Any HTTP response counts
// as delivered; non-2xx answers are only logged.
func (r *Reporter) Deliver(ctx context.Context, messageID string, status models.Status, errMsg string) error {
	creds, err := r.creds.GetCredentials(ctx)
	if err != nil {
		r.metrics.Report(string(status), "dropped")
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	if !creds.Configured() {
		r.metrics.Report(string(status), "dropped")
		return ErrNotConfigured
	}

	body, err := json.Marshal(models.StatusReport{
		MessageID:   messageID,
		Status:      status,
		DeviceToken: creds.Token(),
		Error:       errMsg,
	})
	if err != nil {
		return err
	}

	sig, ts := signing.Sign(creds.APIKey, body, r.now())

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader(APIKeyHeader, creds.APIKey).
		SetHeader(ReportIDHeader, models.NewID("rpt")).
		SetHeader(signing.HeaderTimestamp, strconv.FormatInt(ts, 10)).
		SetHeader(signing.HeaderSignature, sig).
		SetBody(body).
		Post(strings.TrimRight(creds.ServerURL, "/") + StatusPath)
	if err != nil {
		r.metrics.Report(string(status), "failed")
		return fmt.Errorf("%w: %v", ErrReportDelivery, err)
	}

	if !resp.IsSuccess() {
		r.metrics.Report(string(status), "rejected")
		r.log.Warn().
			Str("message_id", messageID).
			Str("status", string(status)).
			Int("status_code", resp.StatusCode()).
			Msg("controller rejected status report")
		return nil
	}

	r.metrics.Report(string(status), "ok")
	r.log.Debug().
		Str("message_id", messageID).
		Str("status", string(status)).
		Dur("latency", resp.Time()).
		Msg("status reported")
	return nil
}
