// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package statestore

import (
	"context"
	"log/slog"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

type (
	// Response is the result of a read. Present is false when the key does
	// not exist, which is distinct from a present but empty value.
	Response struct {
		Value   []byte
		Present bool
	}

	// GetOption represents a single option for the Get method.
	GetOption interface{ get(*GetOptions) }

	// GetOptions are the resolved options for the Get method.
	GetOptions struct {
		Timeout time.Duration
	}
)

// Get reads the current value of the given key.
func (c *Client) Get(
	ctx context.Context,
	key string,
	opt ...GetOption,
) (*Response, error) {
	if key == "" {
		return nil, ArgumentError{Name: "key"}
	}

	var opts GetOptions
	opts.Apply(opt)

	c.log.Log(ctx, slog.LevelDebug, "GET", slog.String("key", key))
	data, err := c.invoke(ctx, opts.Timeout, resp.OpK("GET", key))
	if err != nil {
		return nil, err
	}

	val, err := resp.Blob(data)
	if err != nil {
		return nil, err
	}
	return &Response{Value: val, Present: val != nil}, nil
}

// Apply resolves the provided list of options.
func (o *GetOptions) Apply(opts []GetOption, rest ...GetOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.get(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.get(o)
		}
	}
}

func (o *GetOptions) get(opt *GetOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithTimeout) get(opt *GetOptions) {
	opt.Timeout = time.Duration(o)
}
