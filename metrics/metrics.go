// Package metrics holds prometheus collectors for ledger requests and transfers.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	RequestErrors  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	TransfersTotal *prometheus.CounterVec
	InFlight       prometheus.Gauge
}

// New creates collectors and registers them on reg, nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tonwallet_requests_total",
				Help: "Total number of ledger requests",
			},
			[]string{"method"},
		),
		RequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tonwallet_request_errors_total",
				Help: "Total number of failed ledger requests",
			},
			[]string{"method", "error_type"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tonwallet_request_latency_seconds",
				Help:    "Ledger request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TransfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tonwallet_transfers_total",
				Help: "Transfers by the stage they finished on and result",
			},
			[]string{"stage", "result"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tonwallet_requests_in_flight",
				Help: "Ledger requests currently holding a concurrency slot",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RequestErrors, m.RequestLatency, m.TransfersTotal, m.InFlight)
	}
	return m
}

func (m *Metrics) ObserveRequest(method string, started time.Time, errType string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method).Inc()
	m.RequestLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if errType != "" {
		m.RequestErrors.WithLabelValues(method, errType).Inc()
	}
}

func (m *Metrics) ObserveTransfer(stage, result string) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) AddInFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}
