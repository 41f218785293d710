// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore"
)

type (
	// StateStoreClient is the subset of the state store client backing a
	// Store.
	StateStoreClient interface {
		Get(
			ctx context.Context,
			key string,
			opt ...statestore.GetOption,
		) (*statestore.Response, error)
		KeyNotify(
			ctx context.Context,
			key string,
			opt ...statestore.KeyNotifyOption,
		) error
		KeyNotifyStop(
			ctx context.Context,
			key string,
			opt ...statestore.KeyNotifyOption,
		) error
		Notify(key string) (<-chan statestore.Notify, func())
	}

	stateStore struct {
		client StateStoreClient
		log    log.Logger
	}

	stateStoreSubscription struct {
		store  *stateStore
		key    string
		cancel context.CancelFunc
		done   chan struct{}
		once   sync.Once
		err    error
	}
)

const unsubscribeTimeout = 5 * time.Second

// NewStateStore adapts a state store client to the Store interface. Reads map
// to GET and listeners to KEYNOTIFY.
func NewStateStore(client StateStoreClient, logger *slog.Logger) Store {
	return &stateStore{client: client, log: log.Wrap(logger)}
}

func (s *stateStore) ReadOnce(ctx context.Context, key string) (Value, error) {
	res, err := s.client.Get(ctx, key)
	if err != nil {
		return Value{}, err
	}
	return Value{Data: res.Value, Present: res.Present}, nil
}

func (s *stateStore) Subscribe(
	ctx context.Context,
	key string,
	callback func(Value),
) (Subscription, error) {
	ch, remove := s.client.Notify(key)
	if err := s.client.KeyNotify(ctx, key); err != nil {
		remove()
		return nil, err
	}

	initial, err := s.client.Get(ctx, key)
	if err != nil {
		remove()
		s.release(key)
		return nil, err
	}

	bg, cancel := context.WithCancel(context.Background())
	sub := &stateStoreSubscription{
		store:  s,
		key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer remove()

		callback(Value{Data: initial.Value, Present: initial.Present})
		for {
			select {
			case <-bg.Done():
				return
			case n, ok := <-ch:
				if !ok {
					return
				}
				s.log.Log(bg, slog.LevelDebug, "key changed",
					slog.String("key", n.Key),
					slog.String("operation", n.Operation),
				)
				switch n.Operation {
				case "SET":
					callback(Value{Data: n.Value, Present: true})
				case "DELETE":
					callback(Value{})
				}
			}
		}
	}()

	return sub, nil
}

func (s *stateStore) release(key string) {
	ctx, cancel := wallclock.Instance.WithTimeout(
		context.Background(),
		unsubscribeTimeout,
	)
	defer cancel()
	if err := s.client.KeyNotifyStop(ctx, key); err != nil {
		s.log.Warn(ctx, "releasing key notification failed", err,
			slog.String("key", key),
		)
	}
}

// Unsubscribe stops the callback goroutine and releases the key
// notification. Further calls return the first result.
func (u *stateStoreSubscription) Unsubscribe(ctx context.Context) error {
	u.once.Do(func() {
		u.cancel()
		select {
		case <-u.done:
		case <-ctx.Done():
		}
		u.err = u.store.client.KeyNotifyStop(ctx, u.key)
	})
	return u.err
}
