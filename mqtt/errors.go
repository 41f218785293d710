// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"fmt"
	"log/slog"
)

type (
	// ClientState indicates the lifecycle stage a session client was in when
	// an operation was rejected.
	ClientState byte

	// ClientStateError is returned when an operation is not valid in the
	// client's current lifecycle state.
	ClientStateError struct {
		State ClientState
	}

	// ConnectionError wraps a failure to establish or use the transport.
	ConnectionError struct {
		message string
		wrapped error
	}

	// InvalidArgumentError is returned for malformed options or input.
	InvalidArgumentError struct {
		message string
		wrapped error
	}

	// ConnackError is returned when the server rejects a CONNECT.
	ConnackError struct {
		ReasonCode byte
	}

	// DisconnectError records a server-initiated DISCONNECT.
	DisconnectError struct {
		ReasonCode byte
	}

	// AckError is returned when a SUBACK, UNSUBACK or PUBACK carries a failure
	// reason code.
	AckError struct {
		Packet       string
		ReasonCode   byte
		ReasonString string
	}
)

const (
	NotStarted ClientState = iota
	Started
	ShutDown
)

func (e *ClientStateError) Error() string {
	switch e.State {
	case NotStarted:
		return "session client not yet started"
	case Started:
		return "session client already started"
	case ShutDown:
		return "session client is shut down"
	default:
		return "session client in an unknown state"
	}
}

func (e *ConnectionError) Error() string {
	if e.wrapped == nil {
		return e.message
	}
	return e.message + ": " + e.wrapped.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped == nil {
		return e.message
	}
	return e.message + ": " + e.wrapped.Error()
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}

func (e *ConnackError) Error() string {
	return fmt.Sprintf("CONNACK rejected with reason code 0x%02X", e.ReasonCode)
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf(
		"server sent DISCONNECT with reason code 0x%02X",
		e.ReasonCode,
	)
}

func (e *AckError) Error() string {
	msg := fmt.Sprintf("%s failed with reason code 0x%02X", e.Packet, e.ReasonCode)
	if e.ReasonString != "" {
		msg += ": " + e.ReasonString
	}
	return msg
}

func (e *AckError) Attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("packet", e.Packet),
		slog.Int("reason_code", int(e.ReasonCode)),
	}
}

// Reason codes which indicate a configuration or authorization problem that
// another connection attempt will not fix.
func isFatalConnack(code byte) bool {
	switch code {
	case 0x81, // Malformed packet
		0x82, // Protocol error
		0x84, // Unsupported protocol version
		0x85, // Client identifier not valid
		0x86, // Bad user name or password
		0x87, // Not authorized
		0x8C, // Bad authentication method
		0x90, // Topic name invalid
		0x95, // Packet too large
		0x9A, // Retain not supported
		0x9B, // QoS not supported
		0x9C, // Use another server
		0x9D, // Server moved
		0x9F: // Connection rate exceeded
		return true
	default:
		return false
	}
}
