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
	// DelOption represents a single option for the Del method.
	DelOption interface{ del(*DelOptions) }

	// DelOptions are the resolved options for the Del method.
	DelOptions struct {
		Timeout time.Duration
	}
)

// Del deletes the given key and returns the number of keys removed.
func (c *Client) Del(
	ctx context.Context,
	key string,
	opt ...DelOption,
) (int, error) {
	if key == "" {
		return 0, ArgumentError{Name: "key"}
	}

	var opts DelOptions
	opts.Apply(opt)

	c.log.Log(ctx, slog.LevelDebug, "DEL", slog.String("key", key))
	data, err := c.invoke(ctx, opts.Timeout, resp.OpK("DEL", key))
	if err != nil {
		return 0, err
	}
	return resp.Number(data)
}

// Apply resolves the provided list of options.
func (o *DelOptions) Apply(opts []DelOption, rest ...DelOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.del(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.del(o)
		}
	}
}

func (o *DelOptions) del(opt *DelOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithTimeout) del(opt *DelOptions) {
	opt.Timeout = time.Duration(o)
}
