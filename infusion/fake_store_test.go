// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"errors"
	"sync"
)

type (
	fakeStore struct {
		mu     sync.Mutex
		values map[string]Value
		reads  int

		// block, when set, is called at the start of every read.
		block func(ctx context.Context) error

		subscribeErrs []error
		callbacks     map[string]func(Value)
		unsubscribed  map[string]int
	}

	fakeSubscription struct {
		store *fakeStore
		key   string
	}

	fakeRecorder struct {
		mu            sync.Mutex
		ticks         map[TickOutcome]int
		notifications int
		historyLen    int
	}
)

var errTransport = errors.New("broker unreachable")

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:       map[string]Value{},
		callbacks:    map[string]func(Value){},
		unsubscribed: map[string]int{},
	}
}

func (s *fakeStore) set(key string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = Value{Data: []byte(data), Present: true}
}

func (s *fakeStore) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeStore) ReadOnce(ctx context.Context, key string) (Value, error) {
	s.mu.Lock()
	s.reads++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		if err := block(ctx); err != nil {
			return Value{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *fakeStore) Subscribe(
	_ context.Context,
	key string,
	callback func(Value),
) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subscribeErrs) > 0 {
		err := s.subscribeErrs[0]
		s.subscribeErrs = s.subscribeErrs[1:]
		return nil, err
	}
	s.callbacks[key] = callback
	return &fakeSubscription{s, key}, nil
}

func (s *fakeStore) subscribed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.callbacks[key]
	return ok
}

// push delivers a value to the subscriber of key, as the store would on change.
func (s *fakeStore) push(key string, v Value) {
	s.mu.Lock()
	callback := s.callbacks[key]
	s.mu.Unlock()
	if callback != nil {
		callback(v)
	}
}

func (s *fakeStore) unsubscribes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed[key]
}

func (s *fakeSubscription) Unsubscribe(context.Context) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.callbacks, s.key)
	s.store.unsubscribed[s.key]++
	return nil
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ticks: map[TickOutcome]int{}}
}

func (r *fakeRecorder) Tick(outcome TickOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks[outcome]++
}

func (r *fakeRecorder) Notification(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications++
}

func (r *fakeRecorder) HistoryLen(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyLen = n
}

func (r *fakeRecorder) count(outcome TickOutcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks[outcome]
}

func (r *fakeRecorder) lastHistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyLen
}
