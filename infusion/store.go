// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import "context"

type (
	// Value is the result of reading a key. Present is false when the key
	// does not exist.
	Value struct {
		Data    []byte
		Present bool
	}

	// Store is the remote key-value store the dashboard reads from.
	Store interface {
		// Subscribe registers a persistent listener on key. The callback
		// fires once with the current value and then on every change until
		// the subscription is released.
		Subscribe(
			ctx context.Context,
			key string,
			callback func(Value),
		) (Subscription, error)

		// ReadOnce performs a single read of key.
		ReadOnce(ctx context.Context, key string) (Value, error)
	}

	// Subscription is a live listener registration.
	Subscription interface {
		Unsubscribe(ctx context.Context) error
	}
)
