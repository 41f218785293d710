// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder(t *testing.T) {
	m := New()

	m.Tick(infusion.TickAppended)
	m.Tick(infusion.TickAppended)
	m.Tick(infusion.TickDropped)
	m.Tick(infusion.TickStopped)
	m.Notification("infusion/remaining_sec")
	m.HistoryLen(17)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.SetConnected(true)

	body := scrape(t, m)
	require.Contains(t, body, `ivmonitor_sampler_ticks_total{outcome="appended"} 2`)
	require.Contains(t, body, `ivmonitor_sampler_ticks_total{outcome="dropped"} 1`)
	require.Contains(t, body, `ivmonitor_sampler_ticks_total{outcome="error"} 0`)
	require.NotContains(t, body, `outcome="stopped"`)
	require.Contains(t, body, `ivmonitor_notifications_total{key="infusion/remaining_sec"} 1`)
	require.Contains(t, body, "ivmonitor_history_points 17")
	require.Contains(t, body, "ivmonitor_websocket_clients 1")
	require.Contains(t, body, "ivmonitor_broker_connected 1")
}

func TestWrap(t *testing.T) {
	m := New()
	h := m.Wrap("snapshot", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	body := scrape(t, m)
	require.Contains(t, body, `ivmonitor_http_requests_total{route="snapshot",status="418"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Tick(infusion.TickAppended)
	m.Notification("k")
	m.HistoryLen(1)
	m.ClientConnected()
	m.ClientDisconnected()
	m.SetConnected(false)

	next := http.NotFoundHandler()
	rec := httptest.NewRecorder()
	m.Wrap("x", next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
