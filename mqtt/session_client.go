// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/internal"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/retry"
	"github.com/eclipse/paho.golang/paho"
)

type (
	// SessionClient is an MQTT v5 client that keeps its session alive across
	// connection drops. It reconnects in the background, restores its
	// subscriptions and holds publishes until the connection is back.
	SessionClient struct {
		// Ensures Start is only called once and gates user operations.
		started atomic.Bool

		// Closed by Stop; cancels background goroutines and in-flight calls.
		shutdown *internal.Lifetime

		// Context for the connection manager and message handlers; cancelled
		// together with shutdown.
		ctx    context.Context
		cancel context.CancelFunc

		conn *internal.Connection[*paho.Client]

		messageHandlers         *internal.Handlers[MessageHandler]
		connectEventHandlers    *internal.Handlers[ConnectEventHandler]
		disconnectEventHandlers *internal.Handlers[DisconnectEventHandler]

		// Topic filters and their QoS, restored after every reconnect.
		// Subscribe, Unsubscribe and the post-connect restore are serialized
		// by subscriptionsMu.
		subscriptions   map[string]byte
		subscriptionsMu sync.Mutex

		connectionProvider ConnectionProvider
		options            SessionClientOptions

		log internal.Logger
	}

	// ConnectEvent describes a successful (re)connection. Reconnect is false
	// for the first connection of the client.
	ConnectEvent struct {
		ReasonCode     byte
		SessionPresent bool
		Reconnect      bool
	}

	// DisconnectEvent describes a lost connection. Err is nil when the client
	// was stopped by the user.
	DisconnectEvent struct {
		Err error
	}

	// ConnectEventHandler is called after each successful connection.
	ConnectEventHandler func(*ConnectEvent)

	// DisconnectEventHandler is called after each lost connection.
	DisconnectEventHandler func(*DisconnectEvent)
)

const (
	defaultKeepAlive         = 60
	defaultSessionExpiry     = 3600
	defaultConnectionTimeout = 30 * time.Second
)

// NewSessionClient constructs a new session client with user options.
func NewSessionClient(
	connectionProvider ConnectionProvider,
	opts ...SessionClientOption,
) *SessionClient {
	c := &SessionClient{
		shutdown: internal.NewLifetime(&ClientStateError{ShutDown}),
		conn:     internal.NewConnection[*paho.Client](),

		messageHandlers:         internal.NewHandlers[MessageHandler](),
		connectEventHandlers:    internal.NewHandlers[ConnectEventHandler](),
		disconnectEventHandlers: internal.NewHandlers[DisconnectEventHandler](),

		subscriptions:      map[string]byte{},
		connectionProvider: connectionProvider,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.options.Apply(opts)

	if c.options.ClientID == "" {
		prefix := c.options.ClientIDPrefix
		if prefix == "" {
			prefix = "session"
		}
		c.options.ClientID = internal.RandomClientID(prefix)
	}
	if c.options.KeepAlive == 0 {
		c.options.KeepAlive = defaultKeepAlive
	}
	if c.options.SessionExpiry == 0 {
		c.options.SessionExpiry = defaultSessionExpiry
	}
	if c.options.ConnectionTimeout == 0 {
		c.options.ConnectionTimeout = defaultConnectionTimeout
	}
	if c.options.ConnectionRetry == nil {
		c.options.ConnectionRetry = &retry.ExponentialBackoff{
			Logger: c.options.Logger,
		}
	}

	c.log = internal.Logger{Logger: log.Wrap(c.options.Logger)}
	return c
}

// ID returns the MQTT client ID for this session client.
func (c *SessionClient) ID() string {
	return c.options.ClientID
}

// Start connects in the background. Operations issued before the first
// connection completes wait for it.
func (c *SessionClient) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return &ClientStateError{Started}
	}

	go c.manageConnection(c.ctx)
	return nil
}

// Stop sends a DISCONNECT if connected and terminates the session client.
func (c *SessionClient) Stop() error {
	if !c.started.Load() {
		return &ClientStateError{NotStarted}
	}
	select {
	case <-c.shutdown.Done():
		return &ClientStateError{ShutDown}
	default:
	}

	c.close()

	if client := c.conn.Current().Client; client != nil {
		dc := &paho.Disconnect{ReasonCode: disconnectNormal}
		c.log.Packet(context.Background(), "disconnect", dc)
		if err := client.Disconnect(dc); err != nil {
			c.log.Warn(context.Background(), "disconnect failed", err)
		}
	}
	return nil
}

func (c *SessionClient) close() {
	c.shutdown.End()
	c.cancel()
}

// RegisterConnectEventHandler registers a handler called after each
// successful connection. It returns a function that removes the handler.
func (c *SessionClient) RegisterConnectEventHandler(
	handler ConnectEventHandler,
) func() {
	return c.connectEventHandlers.Add(handler)
}

// RegisterDisconnectEventHandler registers a handler called after each lost
// connection. It returns a function that removes the handler.
func (c *SessionClient) RegisterDisconnectEventHandler(
	handler DisconnectEventHandler,
) func() {
	return c.disconnectEventHandlers.Add(handler)
}

// Connected reports whether the client currently holds a live connection.
func (c *SessionClient) Connected() bool {
	return c.conn.Current().Client != nil
}

// prepare checks the lifecycle state and ties ctx to client shutdown.
func (c *SessionClient) prepare(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if !c.started.Load() {
		return nil, nil, &ClientStateError{NotStarted}
	}
	select {
	case <-c.shutdown.Done():
		return nil, nil, &ClientStateError{ShutDown}
	default:
	}
	ctx, cancel := c.shutdown.Bind(ctx)
	return ctx, cancel, nil
}

func (c *SessionClient) onPublishReceived(p paho.PublishReceived) (bool, error) {
	c.log.Packet(c.ctx, "publish received", p.Packet)
	msg := buildMessage(p.Packet)
	for handler := range c.messageHandlers.All() {
		handler(c.ctx, msg)
	}
	return true, nil
}
