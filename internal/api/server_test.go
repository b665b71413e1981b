package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
	"github.com/shohag/smsrelay/internal/relay"
	"github.com/shohag/smsrelay/internal/signing"
)

type recordingRelay struct {
	mu   sync.Mutex
	seen []map[string]string
	ctx  context.Context
}

func (r *recordingRelay) HandleInstruction(ctx context.Context, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, data)
	r.ctx = ctx
	if data["action"] != "send_sms" {
		return relay.ErrMalformedInstruction
	}
	return nil
}

type fixedQuota struct{}

func (fixedQuota) Snapshot(ctx context.Context) models.QuotaState {
	return models.QuotaState{Count: 12, ResetDate: "2026-10-15"}
}

func (fixedQuota) Details(ctx context.Context) string { return "12 / 90" }

type testServer struct {
	handler http.Handler
	relay   *recordingRelay
	signals chan models.Signal
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Instruction("accepted")

	ts := &testServer{relay: &recordingRelay{}, signals: make(chan models.Signal, 4)}
	srv := NewServer(config.ServerConfig{}, config.IngressConfig{Secret: secret}, Deps{
		Instructions: ts.relay,
		Quota:        fixedQuota{},
		Signals:      ts.signals,
		Gatherer:     reg,
	}, zerolog.Nop())
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"smsrelay"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `smsrelay_instructions_total{outcome="accepted"} 1`)
}

func TestInstruction_Accepted(t *testing.T) {
	ts := newTestServer(t, "")
	body := `{"action":"send_sms","message_id":"m1","recipient":"+100","message":"hi"}`

	rec := ts.do(http.MethodPost, "/v1/instructions", body, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted","message_id":"m1"}`, rec.Body.String())

	require.Len(t, ts.relay.seen, 1)
	assert.Equal(t, "+100", ts.relay.seen[0]["recipient"])
}

func TestInstruction_MalformedStillAccepted(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(http.MethodPost, "/v1/instructions", `{"action":"reboot"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, ts.relay.seen, 1)
}

func TestInstruction_NotJSON(t *testing.T) {
	ts := newTestServer(t, "")

	for _, body := range []string{"not json", `{"code": 5}`, `["a"]`} {
		rec := ts.do(http.MethodPost, "/v1/instructions", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, ts.relay.seen)
}

func TestInstruction_ContextSurvivesRequest(t *testing.T) {
	ts := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/v1/instructions",
		strings.NewReader(`{"action":"send_sms","message_id":"m1","recipient":"+1","message":"x"}`)).WithContext(ctx)
	ts.handler.ServeHTTP(httptest.NewRecorder(), req)
	cancel()

	require.NotNil(t, ts.relay.ctx)
	assert.NoError(t, ts.relay.ctx.Err())
}

func TestTelephonyCallback(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPost, "/v1/telephony/sent", `{"message_id":"m1","code":0}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/telephony/delivered", `{"message_id":"m1","code":1}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, models.Signal{MessageID: "m1", Phase: models.PhaseSent, Code: 0}, <-ts.signals)
	assert.Equal(t, models.Signal{MessageID: "m1", Phase: models.PhaseDelivered, Code: 1}, <-ts.signals)
}

func TestTelephonyCallback_Rejects(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPost, "/v1/telephony/queued", `{"message_id":"m1"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/telephony/sent", `{"code":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/telephony/sent", `garbage`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, ts.signals)
}

func TestQuota(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(http.MethodGet, "/v1/quota", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got quotaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, quotaResponse{Count: 12, Limit: 90, ResetDate: "2026-10-15", Details: "12 / 90"}, got)
}

func signedHeader(secret, body string, at time.Time) http.Header {
	sig, ts := signing.Sign(secret, []byte(body), at)
	h := http.Header{}
	h.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(signing.HeaderSignature, sig)
	return h
}

func TestSignedIngress(t *testing.T) {
	const secret = "s3cret"
	ts := newTestServer(t, secret)
	body := `{"action":"send_sms","message_id":"m1","recipient":"+100","message":"hi"}`

	rec := ts.do(http.MethodPost, "/v1/instructions", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/instructions", body, signedHeader("other", body, time.Now()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/instructions", body, signedHeader(secret, body, time.Now().Add(-10*time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.relay.seen)

	rec = ts.do(http.MethodPost, "/v1/instructions", body, signedHeader(secret, body, time.Now()))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ts.relay.seen, 1)
	assert.Equal(t, "m1", ts.relay.seen[0]["message_id"])

	rec = ts.do(http.MethodGet, "/v1/quota", "", signedHeader(secret, "", time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays open
	rec = ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
