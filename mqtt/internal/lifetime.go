// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import "context"

// Lifetime is a span (a connection, a client) that operations can be bound
// to. When it ends, every bound context is cancelled with the lifetime's
// cause.
type Lifetime struct {
	ctx   context.Context
	end   context.CancelCauseFunc
	cause error
}

func NewLifetime(cause error) *Lifetime {
	ctx, end := context.WithCancelCause(context.Background())
	return &Lifetime{ctx, end, cause}
}

// Bind derives a context from ctx that is also cancelled when the lifetime
// ends.
func (l *Lifetime) Bind(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(l.ctx, func() { cancel(l.cause) })
	return bound, func() {
		stop()
		cancel(context.Canceled)
	}
}

func (l *Lifetime) End() {
	l.end(l.cause)
}

func (l *Lifetime) Done() <-chan struct{} {
	return l.ctx.Done()
}
