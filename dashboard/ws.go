// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/gorilla/websocket"
)

// serveWS streams the snapshot: once on connect and again after every change.
// The stream ends when the viewer disconnects or the session closes.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Log(r.Context(), slog.LevelDebug, "websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	s.metrics.ClientConnected()
	defer s.metrics.ClientDisconnected()

	changes, stop := s.source.Watch()
	defer stop()

	// Reads are only needed to process control frames and notice closure.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := wallclock.Instance.NewTicker(s.options.PingInterval)
	defer ping.Stop()

	if err := s.send(conn); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return

		case _, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					wallclock.Instance.Now().Add(s.options.WriteTimeout),
				)
				return
			}
			if err := s.send(conn); err != nil {
				return
			}

		case <-ping.C():
			err := conn.WriteControl(
				websocket.PingMessage,
				nil,
				wallclock.Instance.Now().Add(s.options.WriteTimeout),
			)
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(wallclock.Instance.Now().Add(s.options.WriteTimeout))
	return conn.WriteJSON(s.source.Snapshot())
}
