// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/iso"
)

type connectionProviderBuilder struct {
	hostname string
	port     uint16
	useTLS   *bool
	caFile   string
	certFile string
	keyFile  string
	passFile string
}

// SessionClientConfigFromEnv parses a session client configuration from the
// IV_* environment variables. It only fails when a variable is malformed; a
// nil provider is returned when no broker hostname is configured.
func SessionClientConfigFromEnv() (
	ConnectionProvider,
	*SessionClientOptions,
	error,
) {
	settings := map[string]string{}
	for _, env := range os.Environ() {
		key, val, _ := strings.Cut(env, "=")
		name, ok := envSettings[key]
		if ok {
			settings[name] = val
		}
	}
	return parseSettings(settings)
}

// NewSessionClientFromEnv is a shorthand for constructing a session client
// using SessionClientConfigFromEnv.
func NewSessionClientFromEnv(
	opt ...SessionClientOption,
) (*SessionClient, error) {
	provider, opts, err := SessionClientConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, &InvalidArgumentError{
			message: "connection must be configured",
		}
	}
	return NewSessionClient(provider, opts, withOptions(opt)), nil
}

// NewSessionClientFromConnectionString constructs a session client from a
// semicolon-separated connection string, e.g.
// "HostName=localhost;TcpPort=1883;UseTls=false;ClientId=ivmonitor".
// Durations (KeepAlive, SessionExpiry) accept Go or ISO 8601 syntax.
func NewSessionClientFromConnectionString(
	connStr string,
	opt ...SessionClientOption,
) (*SessionClient, error) {
	settings := map[string]string{}
	for _, param := range strings.Split(connStr, ";") {
		key, val, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}
		settings[strings.ToLower(strings.TrimSpace(key))] =
			strings.TrimSpace(val)
	}

	provider, opts, err := parseSettings(settings)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, &InvalidArgumentError{
			message: "connection string has no HostName",
		}
	}
	return NewSessionClient(provider, opts, withOptions(opt)), nil
}

var envSettings = map[string]string{
	"IV_BROKER_HOSTNAME":       "hostname",
	"IV_BROKER_TCP_PORT":       "tcpport",
	"IV_MQTT_USE_TLS":          "usetls",
	"IV_MQTT_CLIENT_ID":        "clientid",
	"IV_MQTT_USERNAME":         "username",
	"IV_MQTT_PASSWORD_FILE":    "passwordfile",
	"IV_MQTT_KEEP_ALIVE":       "keepalive",
	"IV_MQTT_SESSION_EXPIRY":   "sessionexpiry",
	"IV_TLS_CA_FILE":           "cafile",
	"IV_TLS_CERT_FILE":         "certfile",
	"IV_TLS_KEY_FILE":          "keyfile",
	"IV_TLS_KEY_PASSWORD_FILE": "keypasswordfile",
}

func parseSettings(
	settings map[string]string,
) (ConnectionProvider, *SessionClientOptions, error) {
	opts := &SessionClientOptions{}
	conn := connectionProviderBuilder{
		hostname: settings["hostname"],
		caFile:   settings["cafile"],
		certFile: settings["certfile"],
		keyFile:  settings["keyfile"],
		passFile: settings["keypasswordfile"],
	}

	if val := settings["tcpport"]; val != "" {
		port, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return nil, nil, &InvalidArgumentError{
				message: "could not parse broker TCP port",
				wrapped: err,
			}
		}
		conn.port = uint16(port)
	}

	if val := settings["usetls"]; val != "" {
		useTLS, err := strconv.ParseBool(val)
		if err != nil {
			return nil, nil, &InvalidArgumentError{
				message: "could not parse MQTT use TLS",
				wrapped: err,
			}
		}
		conn.useTLS = &useTLS
	}

	if val := settings["keepalive"]; val != "" {
		d, err := parseSeconds(val, 1<<16-1)
		if err != nil {
			return nil, nil, &InvalidArgumentError{
				message: "could not parse MQTT keep-alive",
				wrapped: err,
			}
		}
		opts.KeepAlive = uint16(d)
	}

	if val := settings["sessionexpiry"]; val != "" {
		d, err := parseSeconds(val, 1<<32-1)
		if err != nil {
			return nil, nil, &InvalidArgumentError{
				message: "could not parse MQTT session expiry",
				wrapped: err,
			}
		}
		opts.SessionExpiry = uint32(d)
	}

	opts.ClientID = settings["clientid"]
	opts.Username = settings["username"]
	opts.PasswordFile = settings["passwordfile"]

	provider, err := conn.build()
	if err != nil {
		return nil, nil, err
	}
	return provider, opts, nil
}

// parseSeconds accepts a bare integer number of seconds or a duration.
func parseSeconds(val string, limit uint64) (uint64, error) {
	if n, err := strconv.ParseUint(val, 10, 64); err == nil {
		if n > limit {
			return 0, strconv.ErrRange
		}
		return n, nil
	}
	d, err := iso.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	secs := uint64(d / time.Second)
	if d < 0 || secs > limit {
		return 0, strconv.ErrRange
	}
	return secs, nil
}

func (b *connectionProviderBuilder) build() (ConnectionProvider, error) {
	if b.hostname == "" {
		if b.port != 0 || b.useTLS != nil || b.hasTLS() {
			return nil, &InvalidArgumentError{
				message: "connection configuration provided without hostname",
			}
		}
		return nil, nil
	}

	useTLS := b.useTLS == nil || *b.useTLS
	if b.port == 0 {
		if useTLS {
			b.port = 8883
		} else {
			b.port = 1883
		}
	}

	if !useTLS {
		if b.hasTLS() {
			return nil, &InvalidArgumentError{
				message: "TLS configuration provided but not using TLS",
			}
		}
		return TCPConnection(b.hostname, b.port), nil
	}

	if (b.certFile != "") != (b.keyFile != "") {
		return nil, &InvalidArgumentError{
			message: "certificate file and key file must be provided together",
		}
	}

	var opts []TLSOption
	if b.hostname == "localhost" {
		opts = append(opts, WithInsecureSkipVerify())
	}
	switch {
	case b.certFile != "" && b.passFile != "":
		opts = append(opts, WithEncryptedX509(b.certFile, b.keyFile, b.passFile))
	case b.certFile != "":
		opts = append(opts, WithX509(b.certFile, b.keyFile))
	}
	if b.caFile != "" {
		opts = append(opts, WithCA(b.caFile))
	}

	return TLSConnection(b.hostname, b.port, opts...), nil
}

func (b *connectionProviderBuilder) hasTLS() bool {
	return b.caFile != "" || b.certFile != "" ||
		b.keyFile != "" || b.passFile != ""
}

type withOptions []SessionClientOption

func (o withOptions) sessionClient(opt *SessionClientOptions) {
	opt.Apply(o)
}
