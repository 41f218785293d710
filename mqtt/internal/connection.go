// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"context"
	"sync"
)

type (
	// Connection tracks the live client of a reconnecting session. Exactly one
	// of up and down is open at any time: up closes when a client connects and
	// down closes when it is lost.
	Connection[Client comparable] struct {
		mu      sync.RWMutex
		current Link[Client]
	}

	// Link is a snapshot of the connection state.
	Link[Client comparable] struct {
		// Client is the zero value while disconnected.
		Client Client

		// Err is the cause of the most recent disconnection, if any.
		Err error

		// Attempt counts connection attempts, successful or not.
		Attempt uint64

		// Down is closed when Client disconnects.
		Down *Lifetime

		up chan struct{}
	}
)

func NewConnection[Client comparable]() *Connection[Client] {
	c := &Connection[Client]{}
	c.current.up = make(chan struct{})
	c.current.Down = NewLifetime(context.Canceled)
	c.current.Down.End()
	return c
}

// Attempt begins a new connection attempt and returns its number. Disconnects
// reported for earlier attempts are ignored from here on.
func (c *Connection[Client]) Attempt() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current.Err = nil
	c.current.Attempt++
	return c.current.Attempt
}

// Up records a successful connection. It fails with the recorded error if the
// attempt was already reported lost before the CONNACK was processed.
func (c *Connection[Client]) Up(client Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Err != nil {
		return c.current.Err
	}

	c.current.Client = client
	close(c.current.up)
	c.current.Down = NewLifetime(&DisconnectedError{})
	return nil
}

// Lost records the loss of the given attempt's connection.
func (c *Connection[Client]) Lost(attempt uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Attempt != attempt {
		return
	}
	if c.current.Err == nil {
		c.current.Err = err
	}

	var zero Client
	if c.current.Client == zero {
		return
	}

	c.current.Client = zero
	c.current.up = make(chan struct{})
	c.current.Down.End()
}

func (c *Connection[Client]) Current() Link[Client] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Wait blocks until a client is connected or ctx is done.
func (c *Connection[Client]) Wait(ctx context.Context) (Link[Client], error) {
	for {
		link := c.Current()
		var zero Client
		if link.Client != zero {
			return link, nil
		}
		select {
		case <-ctx.Done():
			return link, context.Cause(ctx)
		case <-link.up:
		}
	}
}

// DisconnectedError cancels operations that were in flight on a connection
// that has since dropped.
type DisconnectedError struct{}

func (*DisconnectedError) Error() string {
	return "connection lost while the operation was in flight"
}
