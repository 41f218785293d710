// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package statestore

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

type (
	// Condition restricts when a SET is applied.
	Condition string

	// SetOption represents a single option for the Set method.
	SetOption interface{ set(*SetOptions) }

	// SetOptions are the resolved options for the Set method.
	SetOptions struct {
		Expiry    time.Duration
		Condition Condition
		Timeout   time.Duration
	}

	// WithCondition sets the condition for a SET.
	WithCondition Condition

	// WithExpiry expires the key after the given duration.
	WithExpiry time.Duration
)

const (
	// Always sets the key unconditionally.
	Always Condition = ""

	// NotExists only sets the key if it is not present.
	NotExists Condition = "NX"

	// NotExistsOrEqual only sets the key if it is not present or already
	// holds the same value.
	NotExistsOrEqual Condition = "NEX"
)

// Set writes the value of the given key. It returns false when the write was
// skipped due to the requested condition.
func (c *Client) Set(
	ctx context.Context,
	key string,
	val []byte,
	opt ...SetOption,
) (bool, error) {
	if key == "" {
		return false, ArgumentError{Name: "key"}
	}

	var opts SetOptions
	opts.Apply(opt)

	var rest [][]byte
	switch opts.Condition {
	case Always:
	case NotExists, NotExistsOrEqual:
		rest = append(rest, []byte(opts.Condition))
	default:
		return false, ArgumentError{Name: "Condition", Value: opts.Condition}
	}

	switch {
	case opts.Expiry < 0:
		return false, ArgumentError{Name: "Expiry", Value: opts.Expiry}
	case opts.Expiry > 0:
		ms := strconv.FormatInt(opts.Expiry.Milliseconds(), 10)
		rest = append(rest, []byte("PX"), []byte(ms))
	}

	if val == nil {
		val = []byte{}
	}

	c.log.Log(ctx, slog.LevelDebug, "SET",
		slog.String("key", key),
		slog.Int("size", len(val)),
	)
	args := append([][]byte{[]byte(key), val}, rest...)
	data, err := c.invoke(ctx, opts.Timeout, resp.Op("SET", args...))
	if err != nil {
		return false, err
	}
	return parseOK(data)
}

// Apply resolves the provided list of options.
func (o *SetOptions) Apply(opts []SetOption, rest ...SetOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.set(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.set(o)
		}
	}
}

func (o *SetOptions) set(opt *SetOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithCondition) set(opt *SetOptions) {
	opt.Condition = Condition(o)
}

func (o WithExpiry) set(opt *SetOptions) {
	opt.Expiry = time.Duration(o)
}

func (o WithTimeout) set(opt *SetOptions) {
	opt.Timeout = time.Duration(o)
}
