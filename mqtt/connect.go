// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/eclipse/paho.golang/paho"
)

const disconnectNormal byte = 0x00

// manageConnection connects, waits for the connection to drop and reconnects
// until the client is stopped or the server rejects it permanently.
func (c *SessionClient) manageConnection(ctx context.Context) {
	for first := true; ; first = false {
		err := c.options.ConnectionRetry.Start(
			ctx,
			"connect",
			func(ctx context.Context) (bool, error) {
				return c.connect(ctx, first)
			},
		)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Err(ctx, err)
				c.log.Log(ctx, slog.LevelError, "giving up on connection; stopping")
				c.close()
			}
			return
		}

		link := c.conn.Current()
		select {
		case <-ctx.Done():
			c.emitDisconnect(nil)
			return
		case <-link.Down.Done():
		}

		lost := c.conn.Current().Err
		select {
		case <-ctx.Done():
			c.emitDisconnect(nil)
			return
		default:
		}
		c.log.Warn(ctx, "connection lost; reconnecting", lost)
		c.emitDisconnect(lost)
	}
}

// connect makes a single connection attempt. Clean start is only requested
// for the first connection so that the session survives reconnects.
func (c *SessionClient) connect(
	ctx context.Context,
	cleanStart bool,
) (retry bool, err error) {
	attempt := c.conn.Attempt()

	ctx, cancel := wallclock.Instance.WithTimeout(ctx, c.options.ConnectionTimeout)
	defer cancel()

	netConn, err := c.connectionProvider(ctx)
	if err != nil {
		return true, err
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: c.options.ClientID,
		Conn:     netConn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			c.onPublishReceived,
		},
		OnClientError: func(err error) {
			c.conn.Lost(attempt, err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.log.Packet(c.ctx, "disconnect received", d)
			c.conn.Lost(attempt, &DisconnectError{ReasonCode: d.ReasonCode})
		},
	})

	packet, err := c.buildConnect(cleanStart)
	if err != nil {
		_ = netConn.Close()
		return false, err
	}

	c.log.Packet(ctx, "connect", packet)
	connack, err := client.Connect(ctx, packet)
	c.log.Packet(ctx, "connack", connack)

	if connack != nil && connack.ReasonCode >= 0x80 {
		_ = netConn.Close()
		return !isFatalConnack(connack.ReasonCode),
			&ConnackError{ReasonCode: connack.ReasonCode}
	}
	if err != nil {
		_ = netConn.Close()
		return true, &ConnectionError{message: "connect failed", wrapped: err}
	}

	if err := c.restore(ctx, client, attempt); err != nil {
		_ = netConn.Close()
		return true, err
	}

	c.log.Log(ctx, slog.LevelInfo, "connected",
		slog.String("client_id", c.options.ClientID),
		slog.Bool("session_present", connack.SessionPresent),
	)
	c.emitConnect(&ConnectEvent{
		ReasonCode:     connack.ReasonCode,
		SessionPresent: connack.SessionPresent,
		Reconnect:      !cleanStart,
	})
	return false, nil
}

// restore re-sends SUBSCRIBE for every tracked filter before publishing the
// client as live, so no caller observes a connection missing subscriptions.
func (c *SessionClient) restore(
	ctx context.Context,
	client *paho.Client,
	attempt uint64,
) error {
	c.subscriptionsMu.Lock()
	defer c.subscriptionsMu.Unlock()

	for topic, qos := range c.subscriptions {
		if err := c.subscribe(ctx, client, topic, qos); err != nil {
			var ack *AckError
			if errors.As(err, &ack) {
				c.log.Err(ctx, err)
				continue
			}
			c.conn.Lost(attempt, err)
			return err
		}
	}

	return c.conn.Up(client)
}

func (c *SessionClient) buildConnect(cleanStart bool) (*paho.Connect, error) {
	expiry := c.options.SessionExpiry
	packet := &paho.Connect{
		ClientID:   c.options.ClientID,
		CleanStart: cleanStart,
		KeepAlive:  c.options.KeepAlive,
		Properties: &paho.ConnectProperties{
			SessionExpiryInterval: &expiry,
			RequestProblemInfo:    true,
		},
	}

	if c.options.Username != "" {
		packet.UsernameFlag = true
		packet.Username = c.options.Username
	}

	if c.options.PasswordFile != "" {
		password, err := os.ReadFile(c.options.PasswordFile)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "could not read MQTT password file",
				wrapped: err,
			}
		}
		packet.PasswordFlag = true
		packet.Password = []byte(strings.TrimSpace(string(password)))
	}

	return packet, nil
}

func (c *SessionClient) emitConnect(event *ConnectEvent) {
	for handler := range c.connectEventHandlers.All() {
		handler(event)
	}
}

func (c *SessionClient) emitDisconnect(err error) {
	for handler := range c.disconnectEventHandlers.All() {
		handler(&DisconnectEvent{Err: err})
	}
}
