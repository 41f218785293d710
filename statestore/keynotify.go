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
	// KeyNotifyOption represents a single option for the KeyNotify method.
	KeyNotifyOption interface{ keynotify(*KeyNotifyOptions) }

	// KeyNotifyOptions are the resolved options for the KeyNotify method.
	KeyNotifyOptions struct {
		Timeout time.Duration
	}
)

// KeyNotify asks the state store to send notifications for the given key.
// Registrations are counted; each successful call should be paired with a
// KeyNotifyStop.
func (c *Client) KeyNotify(
	ctx context.Context,
	key string,
	opt ...KeyNotifyOption,
) error {
	if key == "" {
		return ArgumentError{Name: "key"}
	}

	var opts KeyNotifyOptions
	opts.Apply(opt)

	c.keynotifyMu.Lock()
	defer c.keynotifyMu.Unlock()

	c.log.Log(ctx, slog.LevelDebug, "KEYNOTIFY", slog.String("key", key))
	data, err := c.invoke(ctx, opts.Timeout, resp.OpK("KEYNOTIFY", key))
	if err != nil {
		return err
	}
	if _, err := parseOK(data); err != nil {
		return err
	}

	c.keynotify[key]++
	return nil
}

// KeyNotifyStop releases one KeyNotify registration. The state store is only
// told to stop once the last registration for the key is released.
func (c *Client) KeyNotifyStop(
	ctx context.Context,
	key string,
	opt ...KeyNotifyOption,
) error {
	if key == "" {
		return ArgumentError{Name: "key"}
	}

	var opts KeyNotifyOptions
	opts.Apply(opt)

	c.keynotifyMu.Lock()
	defer c.keynotifyMu.Unlock()

	switch c.keynotify[key] {
	case 0:
		return nil
	case 1:
		c.log.Log(ctx, slog.LevelDebug, "KEYNOTIFY",
			slog.String("key", key),
			slog.Bool("stop", true),
		)
		req := resp.OpK("KEYNOTIFY", key, "STOP")
		data, err := c.invoke(ctx, opts.Timeout, req)
		if err != nil {
			return err
		}
		if _, err := parseOK(data); err != nil {
			return err
		}
		delete(c.keynotify, key)
	default:
		c.keynotify[key]--
	}
	return nil
}

// Apply resolves the provided list of options.
func (o *KeyNotifyOptions) Apply(
	opts []KeyNotifyOption,
	rest ...KeyNotifyOption,
) {
	for _, opt := range opts {
		if opt != nil {
			opt.keynotify(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.keynotify(o)
		}
	}
}

func (o *KeyNotifyOptions) keynotify(opt *KeyNotifyOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithTimeout) keynotify(opt *KeyNotifyOptions) {
	opt.Timeout = time.Duration(o)
}
