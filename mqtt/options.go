// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"log/slog"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/retry"
)

type (
	// SessionClientOptions are the resolved options for the session client.
	SessionClientOptions struct {
		// ClientID is generated when empty.
		ClientID string

		// ClientIDPrefix prefixes a generated client ID.
		ClientIDPrefix string

		Username string

		// PasswordFile is re-read on every connection attempt.
		PasswordFile string

		// KeepAlive in seconds; defaults to 60.
		KeepAlive uint16

		// SessionExpiry in seconds; defaults to one hour so subscriptions
		// survive a broker restart of reasonable length.
		SessionExpiry uint32

		// ConnectionTimeout bounds each individual connection attempt.
		ConnectionTimeout time.Duration

		// ConnectionRetry is the policy for (re)connecting; retries forever
		// with exponential backoff by default.
		ConnectionRetry retry.Policy

		Logger *slog.Logger
	}

	// SessionClientOption represents a single session client option.
	SessionClientOption interface{ sessionClient(*SessionClientOptions) }

	// WithClientID sets the MQTT client ID.
	WithClientID string

	// WithClientIDPrefix prefixes the generated client ID.
	WithClientIDPrefix string

	// WithUsername sets the MQTT username.
	WithUsername string

	// WithPasswordFile reads the MQTT password from the named file.
	WithPasswordFile string

	// WithKeepAlive sets the keep-alive interval in seconds.
	WithKeepAlive uint16

	// WithSessionExpiry sets the session expiry interval in seconds.
	WithSessionExpiry uint32

	// WithConnectionTimeout bounds each connection attempt.
	WithConnectionTimeout time.Duration

	withConnectionRetry struct{ retry.Policy }
	withLogger          struct{ *slog.Logger }
)

// Apply resolves the provided list of options.
func (o *SessionClientOptions) Apply(
	opts []SessionClientOption,
	rest ...SessionClientOption,
) {
	for _, opt := range opts {
		if opt != nil {
			opt.sessionClient(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.sessionClient(o)
		}
	}
}

func (o *SessionClientOptions) sessionClient(opt *SessionClientOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithClientID) sessionClient(opt *SessionClientOptions) {
	opt.ClientID = string(o)
}

func (o WithClientIDPrefix) sessionClient(opt *SessionClientOptions) {
	opt.ClientIDPrefix = string(o)
}

func (o WithUsername) sessionClient(opt *SessionClientOptions) {
	opt.Username = string(o)
}

func (o WithPasswordFile) sessionClient(opt *SessionClientOptions) {
	opt.PasswordFile = string(o)
}

func (o WithKeepAlive) sessionClient(opt *SessionClientOptions) {
	opt.KeepAlive = uint16(o)
}

func (o WithSessionExpiry) sessionClient(opt *SessionClientOptions) {
	opt.SessionExpiry = uint32(o)
}

func (o WithConnectionTimeout) sessionClient(opt *SessionClientOptions) {
	opt.ConnectionTimeout = time.Duration(o)
}

// WithConnectionRetry sets the connection retry policy.
func WithConnectionRetry(policy retry.Policy) SessionClientOption {
	return withConnectionRetry{policy}
}

func (o withConnectionRetry) sessionClient(opt *SessionClientOptions) {
	opt.ConnectionRetry = o.Policy
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) SessionClientOption {
	return withLogger{logger}
}

func (o withLogger) sessionClient(opt *SessionClientOptions) {
	opt.Logger = o.Logger
}
