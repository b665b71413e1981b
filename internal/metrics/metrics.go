// Package metrics holds the relay's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smsrelay"

type Metrics struct {
	Instructions    *prometheus.CounterVec
	Signals         *prometheus.CounterVec
	Reports         *prometheus.CounterVec
	Heartbeats      *prometheus.CounterVec
	QuotaUsed       prometheus.Gauge
	DispatchPending prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Instructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Send instructions received, by outcome",
			},
			[]string{"outcome"},
		),
		Signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Telephony completion signals, by phase and derived status",
			},
			[]string{"phase", "status"},
		),
		Reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Status reports, by status and delivery result",
			},
			[]string{"status", "result"},
		),
		Heartbeats: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_total",
				Help:      "Heartbeat attempts, by result",
			},
			[]string{"result"},
		),
		QuotaUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_used",
			Help:      "Sends recorded against today's quota",
		}),
		DispatchPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_pending",
			Help:      "Dispatches awaiting completion signals",
		}),
	}
}

func (m *Metrics) Instruction(outcome string) {
	if m == nil {
		return
	}
	m.Instructions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Signal(phase, status string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(phase, status).Inc()
}

func (m *Metrics) Report(status, result string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(status, result).Inc()
}

func (m *Metrics) Heartbeat(result string) {
	if m == nil {
		return
	}
	m.Heartbeats.WithLabelValues(result).Inc()
}

func (m *Metrics) SetQuotaUsed(n int) {
	if m == nil {
		return
	}
	m.QuotaUsed.Set(float64(n))
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.DispatchPending.Set(float64(n))
}
