// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package server

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/errors"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

type (
	// Store is the key space of the state store with per-key watchers.
	Store struct {
		mu       sync.Mutex
		entries  map[string]entry
		watchers map[string]map[string]struct{}

		sweepInterval time.Duration
	}

	entry struct {
		value   []byte
		expires time.Time
	}

	// Notification is a change event addressed to one watching client.
	Notification struct {
		ClientID  string
		Key       string
		Operation string
		Value     []byte
	}
)

func NewStore(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	return &Store{
		entries:       map[string]entry{},
		watchers:      map[string]map[string]struct{}{},
		sweepInterval: sweepInterval,
	}
}

// Payload encodes the notification as the state store does.
func (n *Notification) Payload() []byte {
	if n.Operation == "SET" {
		return resp.Op("NOTIFY", []byte("SET"), []byte("VALUE"), n.Value)
	}
	return resp.Op("NOTIFY", []byte(n.Operation))
}

// Execute runs one command on behalf of invoker and returns the RESP reply
// with the notifications it triggered.
func (s *Store) Execute(
	invoker string,
	args [][]byte,
) ([]byte, []Notification) {
	if len(args) == 0 {
		return errorReply(errors.SyntaxError), nil
	}
	if len(args) > 1 && len(args[1]) == 0 {
		return errorReply(errors.KeyLengthZero), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(string(args[0])) {
	case "GET":
		if len(args) != 2 {
			return errorReply(errors.WrongNumberOfArguments), nil
		}
		e, ok := s.lookup(string(args[1]))
		if !ok {
			return resp.FormatBlob(nil), nil
		}
		return resp.FormatBlob(e.value), nil

	case "SET":
		return s.set(args[1:])

	case "DEL":
		if len(args) != 2 {
			return errorReply(errors.WrongNumberOfArguments), nil
		}
		key := string(args[1])
		if _, ok := s.lookup(key); !ok {
			return resp.FormatNumber(0), nil
		}
		delete(s.entries, key)
		return resp.FormatNumber(1), s.notify(key, "DELETE", nil)

	case "KEYNOTIFY":
		return s.keynotify(invoker, args[1:])

	default:
		return errorReply(errors.UnknownCommand), nil
	}
}

func (s *Store) set(args [][]byte) ([]byte, []Notification) {
	if len(args) < 2 {
		return errorReply(errors.WrongNumberOfArguments), nil
	}
	key, val := string(args[0]), args[1]

	var cond string
	var expires time.Time
	for i := 2; i < len(args); i++ {
		switch opt := strings.ToUpper(string(args[i])); opt {
		case "NX", "NEX":
			cond = opt
		case "PX":
			if i+1 >= len(args) {
				return errorReply(errors.SyntaxError), nil
			}
			i++
			ms, err := strconv.ParseInt(string(args[i]), 10, 64)
			if err != nil || ms <= 0 {
				return errorReply(errors.SyntaxError), nil
			}
			expires = wallclock.Instance.Now().Add(time.Duration(ms) * time.Millisecond)
		default:
			return errorReply(errors.SyntaxError), nil
		}
	}

	old, exists := s.lookup(key)
	switch {
	case cond == "NX" && exists,
		cond == "NEX" && exists && !bytes.Equal(old.value, val):
		return resp.FormatNumber(-1), nil
	}

	s.entries[key] = entry{
		value:   append([]byte{}, val...),
		expires: expires,
	}
	return resp.FormatString("OK"), s.notify(key, "SET", val)
}

func (s *Store) keynotify(invoker string, args [][]byte) ([]byte, []Notification) {
	if invoker == "" {
		return errorReply(errors.MissingClientID), nil
	}

	switch {
	case len(args) == 1:
		key := string(args[0])
		w, ok := s.watchers[key]
		if !ok {
			w = map[string]struct{}{}
			s.watchers[key] = w
		}
		if _, ok := w[invoker]; ok {
			return resp.FormatNumber(0), nil
		}
		w[invoker] = struct{}{}
		return resp.FormatString("OK"), nil

	case len(args) == 2 && strings.EqualFold(string(args[1]), "STOP"):
		key := string(args[0])
		if w, ok := s.watchers[key]; ok {
			delete(w, invoker)
			if len(w) == 0 {
				delete(s.watchers, key)
			}
		}
		return resp.FormatString("OK"), nil

	default:
		return errorReply(errors.SyntaxError), nil
	}
}

// Expire removes expired keys and returns DELETE notifications for them.
func (s *Store) Expire() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := wallclock.Instance.Now()
	var notes []Notification
	for key, e := range s.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.entries, key)
			notes = append(notes, s.notify(key, "DELETE", nil)...)
		}
	}
	return notes
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := wallclock.Instance.Now()
	n := 0
	for _, e := range s.entries {
		if e.expires.IsZero() || now.Before(e.expires) {
			n++
		}
	}
	return n
}

// lookup returns a live entry; expired entries read as absent.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !wallclock.Instance.Now().Before(e.expires) {
		return entry{}, false
	}
	return e, true
}

func (s *Store) notify(key, op string, val []byte) []Notification {
	w := s.watchers[key]
	if len(w) == 0 {
		return nil
	}
	notes := make([]Notification, 0, len(w))
	for id := range w {
		notes = append(notes, Notification{
			ClientID:  id,
			Key:       key,
			Operation: op,
			Value:     append([]byte{}, val...),
		})
	}
	return notes
}

func errorReply(err errors.Service) []byte {
	return resp.FormatError(string(err))
}
