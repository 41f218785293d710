// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"time"

	"github.com/eclipse/paho.golang/paho"
)

type (
	// Message is a received PUBLISH.
	Message struct {
		Topic   string
		Payload []byte
		PublishOptions
	}

	// MessageHandler processes received messages. It is called on the
	// client's receive path and must not block for long.
	MessageHandler func(context.Context, *Message)

	// PublishOptions are the resolved options for a PUBLISH.
	PublishOptions struct {
		QoS             byte
		Retain          bool
		ContentType     string
		CorrelationData []byte
		ResponseTopic   string
		MessageExpiry   uint32
		UserProperties  map[string]string
	}

	// PublishOption represents a single publish option.
	PublishOption interface{ publish(*PublishOptions) }

	// WithQoS sets the QoS level (0 or 1).
	WithQoS byte

	// WithRetain sets the retain flag.
	WithRetain bool

	// WithContentType sets the content type property.
	WithContentType string

	// WithCorrelationData sets the correlation data property.
	WithCorrelationData []byte

	// WithResponseTopic sets the response topic property.
	WithResponseTopic string

	// WithMessageExpiry sets the message expiry interval.
	WithMessageExpiry time.Duration

	// WithUserProperties sets user properties.
	WithUserProperties map[string]string
)

// Apply resolves the provided list of options.
func (o *PublishOptions) Apply(opts []PublishOption, rest ...PublishOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.publish(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.publish(o)
		}
	}
}

func (o *PublishOptions) publish(opt *PublishOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithQoS) publish(opt *PublishOptions) { opt.QoS = byte(o) }

func (o WithRetain) publish(opt *PublishOptions) { opt.Retain = bool(o) }

func (o WithContentType) publish(opt *PublishOptions) {
	opt.ContentType = string(o)
}

func (o WithCorrelationData) publish(opt *PublishOptions) {
	opt.CorrelationData = []byte(o)
}

func (o WithResponseTopic) publish(opt *PublishOptions) {
	opt.ResponseTopic = string(o)
}

func (o WithMessageExpiry) publish(opt *PublishOptions) {
	opt.MessageExpiry = uint32(time.Duration(o).Seconds())
}

func (o WithUserProperties) publish(opt *PublishOptions) {
	if opt.UserProperties == nil {
		opt.UserProperties = make(map[string]string, len(o))
	}
	for k, v := range o {
		opt.UserProperties[k] = v
	}
}

func buildMessage(p *paho.Publish) *Message {
	msg := &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		PublishOptions: PublishOptions{
			QoS:    p.QoS,
			Retain: p.Retain,
		},
	}
	if p.Properties != nil {
		msg.ContentType = p.Properties.ContentType
		msg.CorrelationData = p.Properties.CorrelationData
		msg.ResponseTopic = p.Properties.ResponseTopic
		if p.Properties.MessageExpiry != nil {
			msg.MessageExpiry = *p.Properties.MessageExpiry
		}
		if len(p.Properties.User) > 0 {
			msg.UserProperties = make(map[string]string, len(p.Properties.User))
			for _, u := range p.Properties.User {
				msg.UserProperties[u.Key] = u.Value
			}
		}
	}
	return msg
}

func buildPublish(topic string, payload []byte, opt *PublishOptions) *paho.Publish {
	pub := &paho.Publish{
		QoS:     opt.QoS,
		Retain:  opt.Retain,
		Topic:   topic,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType:     opt.ContentType,
			CorrelationData: opt.CorrelationData,
			ResponseTopic:   opt.ResponseTopic,
		},
	}
	if opt.MessageExpiry > 0 {
		expiry := opt.MessageExpiry
		pub.Properties.MessageExpiry = &expiry
	}
	for k, v := range opt.UserProperties {
		pub.Properties.User = append(
			pub.Properties.User,
			paho.UserProperty{Key: k, Value: v},
		)
	}
	return pub
}
