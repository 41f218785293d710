// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"errors"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/internal"
)

// Publish sends a message, waiting for a connection if there is none. A QoS 1
// publish interrupted by a connection drop is re-sent on the next connection
// until ctx is done.
func (c *SessionClient) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
	opts ...PublishOption,
) error {
	var opt PublishOptions
	opt.Apply(opts)

	if opt.QoS > 1 {
		return &InvalidArgumentError{message: "unsupported QoS"}
	}
	if topic == "" {
		return &InvalidArgumentError{message: "topic is empty"}
	}

	ctx, cancel, err := c.prepare(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	packet := buildPublish(topic, payload, &opt)

	for {
		link, err := c.conn.Wait(ctx)
		if err != nil {
			return err
		}

		err = func() error {
			lctx, lcancel := link.Down.Bind(ctx)
			defer lcancel()

			c.log.Packet(lctx, "publish", packet)
			res, err := link.Client.Publish(lctx, packet)
			if res != nil && res.ReasonCode >= 0x80 {
				ack := &AckError{Packet: "PUBLISH", ReasonCode: res.ReasonCode}
				if res.Properties != nil {
					ack.ReasonString = res.Properties.ReasonString
				}
				return ack
			}
			if err != nil {
				var disconnected *internal.DisconnectedError
				if ctx.Err() == nil &&
					errors.As(context.Cause(lctx), &disconnected) {
					return context.Cause(lctx)
				}
				return &ConnectionError{message: "publish failed", wrapped: err}
			}
			return nil
		}()

		var disconnected *internal.DisconnectedError
		if errors.As(err, &disconnected) && opt.QoS > 0 {
			continue
		}
		return err
	}
}
