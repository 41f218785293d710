// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package statestore

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/errors"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
	"github.com/google/uuid"
)

type (
	// MQTTClient is the subset of the session client used by the state store
	// client.
	MQTTClient interface {
		ID() string
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
		RegisterConnectEventHandler(mqtt.ConnectEventHandler) func()
	}

	// Client is a client of the MQTT state store.
	Client struct {
		client MQTTClient
		log    log.Logger

		responseTopic string
		notifyFilter  string
		timeout       time.Duration

		pending   map[string]chan *mqtt.Message
		pendingMu sync.Mutex

		keynotify   map[string]int
		keynotifyMu sync.RWMutex

		notify   map[string]map[chan Notify]chan struct{}
		notifyMu sync.RWMutex
	}

	// ClientOption represents a single option for the client.
	ClientOption interface{ client(*ClientOptions) }

	// ClientOptions are the resolved options for the client.
	ClientOptions struct {
		// Timeout is the default per-request timeout.
		Timeout time.Duration
		Logger  *slog.Logger
	}

	// WithTimeout sets the request timeout, either for the client or for a
	// single request.
	WithTimeout time.Duration

	ServiceError  = errors.Service
	PayloadError  = errors.Payload
	ArgumentError = errors.Argument

	withLogger struct{ *slog.Logger }
)

const (
	serviceID      = "FA9AE35F-2F64-47CD-9BFF-08E2B32A0FE8"
	requestTopic   = "statestore/v1/" + serviceID + "/command/invoke"
	defaultTimeout = 10 * time.Second

	// InvokerClientIDProperty identifies the invoking client to the service
	// so it can address notifications.
	InvokerClientIDProperty = "__invId"
)

var (
	ErrService  = errors.ErrService
	ErrPayload  = errors.ErrPayload
	ErrArgument = errors.ErrArgument
)

// RequestTopic is the topic state store requests are published to.
func RequestTopic() string {
	return requestTopic
}

// ResponseTopic is the topic a client receives its responses on.
func ResponseTopic(clientID string) string {
	return "clients/" + clientID + "/" + requestTopic + "/response"
}

// NotifyTopicPrefix is the topic prefix a client receives notifications on;
// the hex-encoded key is appended.
func NotifyTopicPrefix(clientID string) string {
	return "clients/statestore/v1/" + serviceID + "/" + clientID +
		"/command/notify/"
}

// New creates a new state store client.
func New(client MQTTClient, opt ...ClientOption) (*Client, error) {
	if client == nil {
		return nil, ArgumentError{Name: "client"}
	}
	id := client.ID()
	if id == "" || strings.ContainsAny(id, "/+#") {
		return nil, ArgumentError{Name: "client ID", Value: id}
	}

	var opts ClientOptions
	opts.Apply(opt)
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	return &Client{
		client:        client,
		log:           log.Wrap(opts.Logger),
		responseTopic: ResponseTopic(id),
		notifyFilter:  NotifyTopicPrefix(id) + "+",
		timeout:       opts.Timeout,
		pending:       map[string]chan *mqtt.Message{},
		keynotify:     map[string]int{},
		notify:        map[string]map[chan Notify]chan struct{}{},
	}, nil
}

// Listen subscribes to the response and notification topics and restores key
// notifications whenever the MQTT client reconnects. It must be called before
// any state store method. It returns a function to stop listening.
func (c *Client) Listen(ctx context.Context) (func(), error) {
	responses, err := c.client.Subscribe(ctx, c.responseTopic, c.onResponse)
	if err != nil {
		return nil, err
	}

	notifications, err := c.client.Subscribe(ctx, c.notifyFilter, c.onNotify)
	if err != nil {
		_ = responses.Unsubscribe(ctx)
		return nil, err
	}

	bg, cancel := context.WithCancel(context.Background())
	removeHandler := c.client.RegisterConnectEventHandler(
		func(event *mqtt.ConnectEvent) {
			// Registrations made before the first connection are sent by
			// their own requests; only a reconnect needs to catch up.
			if event.Reconnect {
				go c.reconnect(bg)
			}
		},
	)

	return sync.OnceFunc(func() {
		removeHandler()
		cancel()

		ctx, cancel := wallclock.Instance.WithTimeout(
			context.Background(),
			c.timeout,
		)
		defer cancel()
		if err := notifications.Unsubscribe(ctx); err != nil {
			c.log.Warn(ctx, "unsubscribe from notifications failed", err)
		}
		if err := responses.Unsubscribe(ctx); err != nil {
			c.log.Warn(ctx, "unsubscribe from responses failed", err)
		}
	}), nil
}

// invoke sends a request and waits for the correlated response payload.
func (c *Client) invoke(
	ctx context.Context,
	timeout time.Duration,
	req []byte,
) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := wallclock.Instance.WithTimeout(ctx, timeout)
	defer cancel()

	id := uuid.New()
	corr := string(id[:])
	res := make(chan *mqtt.Message, 1)

	c.pendingMu.Lock()
	c.pending[corr] = res
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, corr)
		c.pendingMu.Unlock()
	}()

	if err := c.client.Publish(
		ctx,
		requestTopic,
		req,
		mqtt.WithQoS(1),
		mqtt.WithResponseTopic(c.responseTopic),
		mqtt.WithCorrelationData(id[:]),
		mqtt.WithMessageExpiry(timeout),
		mqtt.WithUserProperties{InvokerClientIDProperty: c.client.ID()},
	); err != nil {
		return nil, err
	}

	select {
	case msg := <-res:
		if len(msg.Payload) == 0 {
			return nil, PayloadError("empty response")
		}
		return msg.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) onResponse(ctx context.Context, msg *mqtt.Message) {
	c.pendingMu.Lock()
	res, ok := c.pending[string(msg.CorrelationData)]
	c.pendingMu.Unlock()

	if !ok {
		c.log.Log(ctx, slog.LevelDebug, "response without pending request",
			slog.String("topic", msg.Topic),
		)
		return
	}

	select {
	case res <- msg:
	default:
	}
}

// parseOK checks a SET or KEYNOTIFY reply. SET answers :-1 when a condition
// prevents the write; KEYNOTIFY answers :0 when already registered.
func parseOK(data []byte) (bool, error) {
	switch data[0] {
	case '+':
		res, err := resp.String(data)
		if err != nil {
			return false, err
		}
		if res != "OK" {
			return false, resp.PayloadError("unexpected response %q", res)
		}
		return true, nil

	case ':':
		res, err := resp.Number(data)
		if err != nil {
			return false, err
		}
		if res > 0 {
			return false, resp.PayloadError("unexpected response %d", res)
		}
		return false, nil

	default:
		if _, err := resp.String(data); err != nil {
			return false, err
		}
		return false, resp.PayloadError("wrong type %q", data[0])
	}
}

// Apply resolves the provided list of options.
func (o *ClientOptions) Apply(opts []ClientOption, rest ...ClientOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.client(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.client(o)
		}
	}
}

func (o *ClientOptions) client(opt *ClientOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithTimeout) client(opt *ClientOptions) {
	opt.Timeout = time.Duration(o)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return withLogger{logger}
}

func (o withLogger) client(opt *ClientOptions) {
	opt.Logger = o.Logger
}
