// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package metrics exposes dashboard activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one monitor process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	historyLen    prometheus.Gauge
	wsClients     prometheus.Gauge
	connected     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ infusion.Recorder = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivmonitor_sampler_ticks_total",
			Help: "Sampler ticks by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivmonitor_notifications_total",
			Help: "Pushed value updates received by key.",
		}, []string{"key"}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ivmonitor_history_points",
			Help: "Points currently held in the trailing weight history.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ivmonitor_websocket_clients",
			Help: "Connected websocket viewers.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ivmonitor_broker_connected",
			Help: "1 while the broker connection is up.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivmonitor_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ivmonitor_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.notifications,
		m.historyLen,
		m.wsClients,
		m.connected,
		m.httpRequests,
		m.httpDuration,
	)

	for _, outcome := range []infusion.TickOutcome{
		infusion.TickAppended,
		infusion.TickSkipped,
		infusion.TickDropped,
		infusion.TickFailed,
	} {
		m.ticks.WithLabelValues(string(outcome))
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Tick counts one sampler tick.
func (m *Metrics) Tick(outcome infusion.TickOutcome) {
	if m == nil || outcome == infusion.TickStopped {
		return
	}
	m.ticks.WithLabelValues(string(outcome)).Inc()
}

// Notification counts one pushed update.
func (m *Metrics) Notification(key string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(key).Inc()
}

// HistoryLen records the history size.
func (m *Metrics) HistoryLen(n int) {
	if m == nil {
		return
	}
	m.historyLen.Set(float64(n))
}

// ClientConnected and ClientDisconnected track websocket viewers.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}

// SetConnected records the broker connection state.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// Wrap instruments an HTTP handler under the given route name.
func (m *Metrics) Wrap(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := httpsnoop.CaptureMetrics(next, w, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(stats.Code)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(stats.Duration.Seconds())
	})
}
