// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"errors"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/internal"
	"github.com/eclipse/paho.golang/paho"
)

type (
	// Subscription is an active topic subscription.
	Subscription interface {
		Unsubscribe(context.Context) error
	}

	subscription struct {
		client *SessionClient
		topic  string
		remove func()
	}
)

// Subscribe registers handler for messages matching topic and subscribes at
// QoS 1. The subscription is restored automatically after every reconnect. If
// the client is not connected, the SUBSCRIBE is sent on the next connection.
func (c *SessionClient) Subscribe(
	ctx context.Context,
	topic string,
	handler MessageHandler,
) (Subscription, error) {
	if topic == "" {
		return nil, &InvalidArgumentError{message: "topic filter is empty"}
	}
	if handler == nil {
		return nil, &InvalidArgumentError{message: "handler is nil"}
	}

	ctx, cancel, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	c.subscriptionsMu.Lock()
	defer c.subscriptionsMu.Unlock()

	if _, ok := c.subscriptions[topic]; ok {
		return nil, &InvalidArgumentError{
			message: "already subscribed to " + topic,
		}
	}

	remove := c.messageHandlers.Add(func(ctx context.Context, msg *Message) {
		if IsTopicFilterMatch(topic, msg.Topic) {
			handler(ctx, msg)
		}
	})
	c.subscriptions[topic] = 1

	link := c.conn.Current()
	if link.Client == nil {
		return &subscription{c, topic, remove}, nil
	}

	lctx, lcancel := link.Down.Bind(ctx)
	defer lcancel()

	err = c.subscribe(lctx, link.Client, topic, 1)
	var disconnected *internal.DisconnectedError
	switch {
	case err == nil:
	case errors.As(context.Cause(lctx), &disconnected) && ctx.Err() == nil:
		// Restored with the other subscriptions on reconnect.
	default:
		delete(c.subscriptions, topic)
		remove()
		return nil, err
	}

	return &subscription{c, topic, remove}, nil
}

func (c *SessionClient) subscribe(
	ctx context.Context,
	client *paho.Client,
	topic string,
	qos byte,
) error {
	packet := &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
	}
	c.log.Packet(ctx, "subscribe", packet)
	suback, err := client.Subscribe(ctx, packet)
	c.log.Packet(ctx, "suback", suback)

	if suback != nil && len(suback.Reasons) > 0 && suback.Reasons[0] >= 0x80 {
		ack := &AckError{Packet: "SUBSCRIBE", ReasonCode: suback.Reasons[0]}
		if suback.Properties != nil {
			ack.ReasonString = suback.Properties.ReasonString
		}
		return ack
	}
	if err != nil {
		return &ConnectionError{message: "subscribe failed", wrapped: err}
	}
	return nil
}

// Unsubscribe removes the handler and sends UNSUBSCRIBE if connected.
func (s *subscription) Unsubscribe(ctx context.Context) error {
	c := s.client

	ctx, cancel, err := c.prepare(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	c.subscriptionsMu.Lock()
	defer c.subscriptionsMu.Unlock()

	if _, ok := c.subscriptions[s.topic]; !ok {
		return nil
	}
	delete(c.subscriptions, s.topic)
	s.remove()

	link := c.conn.Current()
	if link.Client == nil {
		return nil
	}

	lctx, lcancel := link.Down.Bind(ctx)
	defer lcancel()

	packet := &paho.Unsubscribe{Topics: []string{s.topic}}
	c.log.Packet(lctx, "unsubscribe", packet)
	unsuback, err := link.Client.Unsubscribe(lctx, packet)
	c.log.Packet(lctx, "unsuback", unsuback)

	if unsuback != nil && len(unsuback.Reasons) > 0 &&
		unsuback.Reasons[0] >= 0x80 {
		return &AckError{Packet: "UNSUBSCRIBE", ReasonCode: unsuback.Reasons[0]}
	}
	if err != nil && ctx.Err() == nil {
		var disconnected *internal.DisconnectedError
		if errors.As(context.Cause(lctx), &disconnected) {
			return nil
		}
		return &ConnectionError{message: "unsubscribe failed", wrapped: err}
	}
	return err
}
