// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics provides Prometheus collectors for agent sessions.
//
// All methods are safe to be called on a nil *Metrics, which disables
// metrics without further checks at the call sites.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace of all metrics.
const Namespace = "dtnclient"

// RequestBuckets covers the round trip to a local daemon, from 1ms to 30s.
var RequestBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// Metrics of one or more sessions.
type Metrics struct {
	// FramesTotal counts frames by direction (in/out).
	FramesTotal *prometheus.CounterVec

	// RequestsTotal counts requests by kind and outcome.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration records the request round trip in seconds by kind.
	RequestDuration *prometheus.HistogramVec

	// PendingRequests tracks requests awaiting their response.
	PendingRequests prometheus.Gauge

	// DeliveriesTotal counts deliveries by outcome (queued/orphaned/discarded).
	DeliveriesTotal *prometheus.CounterVec

	// ProtocolErrorsTotal counts undecodable or unexpected frames by reason.
	ProtocolErrorsTotal *prometheus.CounterVec

	// SessionsActive tracks open sessions.
	SessionsActive prometheus.Gauge
}

// New creates and registers all collectors. A nil Registerer creates
// unregistered collectors. Collectors already registered by another Metrics
// on the same Registerer are shared.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "frames_total",
				Help:      "Agent frames",
			},
			[]string{"direction"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Agent requests",
			},
			[]string{"kind", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Agent request round trip",
				Buckets:   RequestBuckets,
			},
			[]string{"kind"},
		),
		PendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "pending_requests",
				Help:      "Requests awaiting a response",
			},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "deliveries_total",
				Help:      "Bundle deliveries",
			},
			[]string{"outcome"},
		),
		ProtocolErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "protocol_errors_total",
				Help:      "Undecodable or unexpected frames",
			},
			[]string{"reason"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "sessions_active",
				Help:      "Open agent sessions",
			},
		),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.FramesTotal, err = register(reg, m.FramesTotal); err != nil {
		return nil, err
	}
	if m.RequestsTotal, err = register(reg, m.RequestsTotal); err != nil {
		return nil, err
	}
	if m.RequestDuration, err = register(reg, m.RequestDuration); err != nil {
		return nil, err
	}
	if m.PendingRequests, err = register(reg, m.PendingRequests); err != nil {
		return nil, err
	}
	if m.DeliveriesTotal, err = register(reg, m.DeliveriesTotal); err != nil {
		return nil, err
	}
	if m.ProtocolErrorsTotal, err = register(reg, m.ProtocolErrorsTotal); err != nil {
		return nil, err
	}
	if m.SessionsActive, err = register(reg, m.SessionsActive); err != nil {
		return nil, err
	}

	return m, nil
}

// register c or return the equal collector which is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// FrameIn counts a received frame.
func (m *Metrics) FrameIn() {
	if m != nil {
		m.FramesTotal.WithLabelValues("in").Inc()
	}
}

// FrameOut counts a sent frame.
func (m *Metrics) FrameOut() {
	if m != nil {
		m.FramesTotal.WithLabelValues("out").Inc()
	}
}

// RequestStarted increments the pending requests.
func (m *Metrics) RequestStarted() {
	if m != nil {
		m.PendingRequests.Inc()
	}
}

// RequestFinished decrements the pending requests and records the outcome.
func (m *Metrics) RequestFinished(kind, outcome string, started time.Time) {
	if m != nil {
		m.PendingRequests.Dec()
		m.RequestsTotal.WithLabelValues(kind, outcome).Inc()
		m.RequestDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	}
}

// Delivery counts a delivery's outcome.
func (m *Metrics) Delivery(outcome string, n int) {
	if m != nil && n > 0 {
		m.DeliveriesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ProtocolError counts an undecodable or unexpected frame.
func (m *Metrics) ProtocolError(reason string) {
	if m != nil {
		m.ProtocolErrorsTotal.WithLabelValues(reason).Inc()
	}
}

// SessionOpened increments the active sessions.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

// SessionClosed decrements the active sessions.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}
