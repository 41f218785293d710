// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package dashboard serves the infusion session to browsers: a JSON snapshot,
// a websocket stream of snapshots, metrics, and a single-page view.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/metrics"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type (
	// Source is the state being displayed.
	Source interface {
		Snapshot() infusion.Snapshot
		Watch() (<-chan struct{}, func())
	}

	// Server is the dashboard HTTP surface.
	Server struct {
		source   Source
		metrics  *metrics.Metrics
		log      log.Logger
		options  Options
		upgrader websocket.Upgrader
		handler  http.Handler
	}

	// Options configure the server.
	Options struct {
		// AccessLog receives one Apache combined log line per request. Access
		// logging is off when nil.
		AccessLog io.Writer

		// WriteTimeout bounds each websocket write.
		WriteTimeout time.Duration

		// PingInterval is the websocket keepalive period.
		PingInterval time.Duration

		// ShutdownTimeout bounds the graceful shutdown in ListenAndServe.
		ShutdownTimeout time.Duration

		Metrics *metrics.Metrics
		Logger  *slog.Logger
	}

	// Option configures the server.
	Option func(*Options)
)

//go:embed static
var static embed.FS

// WithAccessLog enables access logging to w.
func WithAccessLog(w io.Writer) Option {
	return func(o *Options) { o.AccessLog = w }
}

// WithMetrics exposes m on /metrics and instruments the routes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithPingInterval sets the websocket keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(o *Options) { o.PingInterval = d }
}

// New creates the dashboard server for source.
func New(source Source, opts ...Option) *Server {
	o := Options{
		WriteTimeout:    5 * time.Second,
		PingInterval:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		source:  source,
		metrics: o.Metrics,
		log:     log.Wrap(o.Logger),
		options: o,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.Handle("/api/snapshot", s.metrics.Wrap("snapshot",
		http.HandlerFunc(s.serveSnapshot))).Methods(http.MethodGet)
	r.Handle("/ws", s.metrics.Wrap("ws",
		http.HandlerFunc(s.serveWS))).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.serveHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	root, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	r.PathPrefix("/").Handler(s.metrics.Wrap("static",
		http.FileServer(http.FS(root)))).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
	)(h)
	if s.options.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.options.AccessLog, h)
	}
	return h
}

func (s *Server) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(s.source.Snapshot())
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"connected": s.source.Snapshot().Connected,
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	s.log.Log(ctx, slog.LevelInfo, "dashboard listening", slog.String("addr", addr))

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type recoveryLogger struct{ log log.Logger }

func (l recoveryLogger) Println(v ...any) {
	var msg []slog.Attr
	for _, x := range v {
		msg = append(msg, slog.Any("panic", x))
	}
	l.log.Log(context.Background(), slog.LevelError, "handler panicked", msg...)
}
