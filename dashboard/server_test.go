// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type emptyStore struct{}

type emptySubscription struct{}

func (emptyStore) ReadOnce(context.Context, string) (infusion.Value, error) {
	return infusion.Value{}, nil
}

func (emptyStore) Subscribe(
	context.Context,
	string,
	func(infusion.Value),
) (infusion.Subscription, error) {
	return emptySubscription{}, nil
}

func (emptySubscription) Unsubscribe(context.Context) error { return nil }

func newSession(t *testing.T) *infusion.Session {
	s, err := infusion.NewSession(emptyStore{}, infusion.WithCapacity(20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, url string) (int, string) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func TestRoutes(t *testing.T) {
	session := newSession(t)
	session.SetConnected(true)

	var access bytes.Buffer
	m := metrics.New()
	srv := httptest.NewServer(New(session, WithMetrics(m), WithAccessLog(&access)).Handler())
	defer srv.Close()

	code, body := get(t, srv.URL+"/api/snapshot")
	require.Equal(t, http.StatusOK, code)
	var snap infusion.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	require.True(t, snap.Connected)
	require.Equal(t, 20, snap.Capacity)
	require.Equal(t, "≤ 0 min", snap.RemainingText)
	require.Contains(t, body, `"labels":[]`)
	require.Contains(t, body, `"status":"ok"`)
	require.Contains(t, body, `"alerts":[]`)
	require.Contains(t, body, `"updated_at":""`)

	code, body = get(t, srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok","connected":true}`, body)

	code, body = get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `<canvas id="history">`)
	require.Contains(t, body, `<ul id="alerts">`)

	code, body = get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `ivmonitor_http_requests_total{route="snapshot",status="200"} 1`)

	require.Contains(t, access.String(), "GET /api/snapshot")
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	session := newSession(t)
	m := metrics.New()
	srv := httptest.NewServer(New(session, WithMetrics(m)).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap infusion.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	require.False(t, snap.Connected)

	session.SetConnected(true)
	require.NoError(t, conn.ReadJSON(&snap))
	require.True(t, snap.Connected)

	_, body := get(t, srv.URL+"/metrics")
	require.Contains(t, body, "ivmonitor_websocket_clients 1")

	require.NoError(t, session.Close())
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err)
}

func TestListenAndServe(t *testing.T) {
	s := New(newSession(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:18834") }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://127.0.0.1:18834/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
