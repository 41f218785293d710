// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package statestore

import (
	"context"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

// reconnect re-registers key notifications after the MQTT client reconnects,
// then reads each key and emits a synthetic notification so that listeners
// catch up on changes missed while offline.
func (c *Client) reconnect(ctx context.Context) {
	c.keynotifyMu.RLock()
	keys := make([]string, 0, len(c.keynotify))
	for k := range c.keynotify {
		keys = append(keys, k)
	}
	c.keynotifyMu.RUnlock()

	for _, key := range keys {
		// Sent raw so the registration count is untouched.
		if _, err := c.invoke(ctx, 0, resp.OpK("KEYNOTIFY", key)); err != nil {
			c.log.Warn(ctx, "re-registering key notification failed", err)
		}

		res, err := c.Get(ctx, key)
		if err != nil {
			c.log.Warn(ctx, "refreshing key after reconnect failed", err)
			continue
		}

		n := &Notify{Key: key, Operation: "DELETE"}
		if res.Present {
			n.Operation = "SET"
			n.Value = res.Value
		}
		c.notifySend(ctx, n)
	}
}
