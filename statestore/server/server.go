// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package server is an in-memory state store service reachable over MQTT. It
// speaks the same request, response and notification protocol as the broker
// state store so clients can be developed and tested against a plain broker.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/errors"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

type (
	// MQTTClient is the subset of the session client used by the server.
	MQTTClient interface {
		Subscribe(
			ctx context.Context,
			topic string,
			handler mqtt.MessageHandler,
		) (mqtt.Subscription, error)
		Publish(
			ctx context.Context,
			topic string,
			payload []byte,
			opts ...mqtt.PublishOption,
		) error
	}

	// Server serves state store requests from an in-memory map.
	Server struct {
		client MQTTClient
		log    log.Logger
		store  *Store

		outbox chan outgoing
	}

	// Option represents a single server option.
	Option func(*Options)

	// Options are the resolved server options.
	Options struct {
		Logger *slog.Logger

		// SweepInterval is how often expired keys are removed and their
		// watchers notified.
		SweepInterval time.Duration
	}

	outgoing struct {
		topic string
		body  []byte
		opts  []mqtt.PublishOption
	}
)

const outboxSize = 256

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithSweepInterval sets how often expired keys are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Options) { o.SweepInterval = d }
}

// New creates a state store server.
func New(client MQTTClient, opt ...Option) *Server {
	opts := Options{SweepInterval: time.Second}
	for _, o := range opt {
		o(&opts)
	}
	return &Server{
		client: client,
		log:    log.Wrap(opts.Logger),
		store:  NewStore(opts.SweepInterval),
		outbox: make(chan outgoing, outboxSize),
	}
}

// Store exposes the underlying key space.
func (s *Server) Store() *Store {
	return s.store
}

// Run subscribes to the request topic and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	sub, err := s.client.Subscribe(ctx, statestore.RequestTopic(), s.onRequest)
	if err != nil {
		return err
	}
	s.log.Log(ctx, slog.LevelInfo, "state store serving",
		slog.String("topic", statestore.RequestTopic()),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweep(ctx)
	}()

	s.drain(ctx)
	wg.Wait()

	ctx, cancel := wallclock.Instance.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sub.Unsubscribe(ctx)
}

// onRequest executes a request synchronously, preserving per-client order,
// and queues the reply and any notifications for publishing.
func (s *Server) onRequest(ctx context.Context, msg *mqtt.Message) {
	if msg.ResponseTopic == "" {
		s.log.Log(ctx, slog.LevelWarn, "request without response topic")
		return
	}

	args, err := resp.BlobArray(msg.Payload)
	var reply []byte
	var notes []Notification
	if err != nil {
		reply = resp.FormatError(string(errors.SyntaxError))
	} else {
		invoker := msg.UserProperties[statestore.InvokerClientIDProperty]
		reply, notes = s.store.Execute(invoker, args)
	}

	s.enqueue(ctx, outgoing{
		topic: msg.ResponseTopic,
		body:  reply,
		opts: []mqtt.PublishOption{
			mqtt.WithQoS(1),
			mqtt.WithCorrelationData(msg.CorrelationData),
		},
	})
	s.publishNotes(ctx, notes)
}

func (s *Server) publishNotes(ctx context.Context, notes []Notification) {
	for _, n := range notes {
		s.enqueue(ctx, outgoing{
			topic: statestore.NotifyTopic(n.ClientID, n.Key),
			body:  n.Payload(),
			opts:  []mqtt.PublishOption{mqtt.WithQoS(1)},
		})
	}
}

func (s *Server) enqueue(ctx context.Context, out outgoing) {
	select {
	case s.outbox <- out:
	case <-ctx.Done():
	}
}

// drain publishes queued messages in order. Publishing happens outside the
// receive path so a QoS 1 acknowledgement never waits on the handler.
func (s *Server) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-s.outbox:
			if err := s.client.Publish(ctx, out.topic, out.body, out.opts...); err != nil {
				s.log.Warn(ctx, "state store publish failed", err,
					slog.String("topic", out.topic),
				)
			}
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	ticker := wallclock.Instance.NewTicker(s.store.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.publishNotes(ctx, s.store.Expire())
		}
	}
}
