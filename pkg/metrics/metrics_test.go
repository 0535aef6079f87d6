// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}

	m.FrameIn()
	m.FrameOut()
	m.RequestStarted()
	m.RequestFinished("RegisterRequest", "ok", time.Now())
	m.Delivery("queued", 1)
	m.ProtocolError("unknown tag")
	m.SessionOpened()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"dtnclient_frames_total":             false,
		"dtnclient_requests_total":           false,
		"dtnclient_request_duration_seconds": false,
		"dtnclient_pending_requests":         false,
		"dtnclient_deliveries_total":         false,
		"dtnclient_protocol_errors_total":    false,
		"dtnclient_sessions_active":          false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in registry", name)
		}
	}
}

func TestMetricsValues(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		m.FrameOut()
	}
	m.RequestStarted()
	m.RequestStarted()
	m.RequestFinished("SubmitRequest", "rejected", time.Now())
	m.Delivery("orphaned", 2)
	m.Delivery("orphaned", 0)

	if v := testutil.ToFloat64(m.FramesTotal.WithLabelValues("out")); v != 3 {
		t.Fatalf("expected 3 outgoing frames, got %v", v)
	}
	if v := testutil.ToFloat64(m.PendingRequests); v != 1 {
		t.Fatalf("expected 1 pending request, got %v", v)
	}
	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("SubmitRequest", "rejected")); v != 1 {
		t.Fatalf("expected 1 rejected submission, got %v", v)
	}
	if v := testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("orphaned")); v != 2 {
		t.Fatalf("expected 2 orphaned deliveries, got %v", v)
	}
	if n := histogramCount(t, m.RequestDuration, "SubmitRequest"); n != 1 {
		t.Fatalf("expected 1 observation, got %d", n)
	}
}

func TestMetricsShared(t *testing.T) {
	reg := prometheus.NewRegistry()

	m1, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := New(reg)
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}

	m1.SessionOpened()
	m2.SessionOpened()

	if v := testutil.ToFloat64(m1.SessionsActive); v != 2 {
		t.Fatalf("expected 2 active sessions, got %v", v)
	}
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics

	m.FrameIn()
	m.FrameOut()
	m.RequestStarted()
	m.RequestFinished("RegisterRequest", "ok", time.Now())
	m.Delivery("queued", 1)
	m.ProtocolError("unknown tag")
	m.SessionOpened()
	m.SessionClosed()
}

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
