// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package statestore

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/internal/resp"
)

// Notify is a key change event. Operation is "SET" or "DELETE"; Value is only
// set for "SET".
type Notify struct {
	Key       string
	Operation string
	Value     []byte
}

// Notify returns a channel of change events for key and a function that
// removes and closes it. KeyNotify must also be called for the state store to
// send anything. The state store does not queue notifications while the client
// is disconnected, so events may be missed or duplicated around a reconnect;
// a synthetic event with the current value is sent after each reconnect.
func (c *Client) Notify(key string) (<-chan Notify, func()) {
	ch := make(chan Notify, 1)
	done := make(chan struct{})

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	kn, ok := c.notify[key]
	if !ok {
		kn = map[chan Notify]chan struct{}{}
		c.notify[key] = kn
	}
	kn[ch] = done

	return ch, sync.OnceFunc(func() {
		close(done)

		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()

		close(ch)
		delete(kn, ch)
		if len(kn) == 0 {
			delete(c.notify, key)
		}
	})
}

func (c *Client) onNotify(ctx context.Context, msg *mqtt.Message) {
	n, err := parseNotify(msg.Topic, msg.Payload)
	if err != nil {
		c.log.Warn(ctx, "discarding malformed notification", err)
		return
	}
	c.notifySend(ctx, n)
}

func parseNotify(topic string, payload []byte) (*Notify, error) {
	idx := strings.LastIndexByte(topic, '/')
	hexKey := topic[idx+1:]
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) == 0 {
		return nil, resp.PayloadError("invalid key name %q", hexKey)
	}

	data, err := resp.BlobArray(payload)
	if err != nil {
		return nil, err
	}

	opOnly := len(data) == 2
	hasValue := len(data) == 4
	if (!opOnly && !hasValue) ||
		string(data[0]) != "NOTIFY" ||
		(hasValue && string(data[2]) != "VALUE") {
		return nil, resp.PayloadError("invalid payload %q", string(payload))
	}

	n := &Notify{Key: string(key), Operation: string(data[1])}
	if hasValue {
		n.Value = data[3]
	}
	return n, nil
}

// NotifyTopic is the topic a notification for key is delivered to.
func NotifyTopic(clientID, key string) string {
	return NotifyTopicPrefix(clientID) + hex.EncodeToString([]byte(key))
}

func (c *Client) notifySend(ctx context.Context, n *Notify) {
	c.notifyMu.RLock()
	defer c.notifyMu.RUnlock()

	for ch, done := range c.notify[n.Key] {
		select {
		case ch <- *n:
		case <-done:
		case <-ctx.Done():
		}
	}
}
