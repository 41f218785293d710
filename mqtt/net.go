// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"github.com/eclipse/paho.golang/packets"
)

type (
	// ConnectionProvider opens a fresh network connection to the MQTT server.
	// It is called once per connection attempt.
	ConnectionProvider func(context.Context) (net.Conn, error)

	// TLSOption mutates the TLS configuration used for each connection
	// attempt, so credentials on disk are re-read on reconnect.
	TLSOption func(context.Context, *tls.Config) error
)

// TCPConnection connects to an MQTT server over plain TCP.
func TCPConnection(hostname string, port uint16) ConnectionProvider {
	addr := net.JoinHostPort(hostname, strconv.Itoa(int(port)))
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TCP connection",
				wrapped: err,
			}
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}

// TLSConnection connects to an MQTT server over TLS.
func TLSConnection(
	hostname string,
	port uint16,
	opts ...TLSOption,
) ConnectionProvider {
	addr := net.JoinHostPort(hostname, strconv.Itoa(int(port)))
	return func(ctx context.Context) (net.Conn, error) {
		cfg := &tls.Config{
			ServerName: hostname,
			MinVersion: tls.VersionTLS12,
		}
		for _, opt := range opts {
			if err := opt(ctx, cfg); err != nil {
				return nil, &ConnectionError{
					message: "error getting TLS configuration",
					wrapped: err,
				}
			}
		}

		d := tls.Dialer{Config: cfg}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TLS connection",
				wrapped: err,
			}
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}

// WithX509 presents a client certificate loaded from PEM files.
func WithX509(certFile, keyFile string) TLSOption {
	return func(_ context.Context, cfg *tls.Config) error {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
		cfg.Certificates = append(cfg.Certificates, cert)
		return nil
	}
}

// WithEncryptedX509 presents a client certificate whose private key is
// encrypted with the password stored in passFile.
func WithEncryptedX509(certFile, keyFile, passFile string) TLSOption {
	return func(_ context.Context, cfg *tls.Config) error {
		cert, err := loadX509KeyPairWithPassword(certFile, keyFile, passFile)
		if err != nil {
			return err
		}
		cfg.Certificates = append(cfg.Certificates, cert)
		return nil
	}
}

// WithCA trusts the certificate authorities in caFile.
func WithCA(caFile string) TLSOption {
	return func(_ context.Context, cfg *tls.Config) error {
		pool, err := loadCACertPool(caFile)
		if err != nil {
			return err
		}
		cfg.RootCAs = pool
		return nil
	}
}

// WithInsecureSkipVerify disables server certificate verification. Only
// used when deliberately connecting to localhost.
func WithInsecureSkipVerify() TLSOption {
	return func(_ context.Context, cfg *tls.Config) error {
		cfg.InsecureSkipVerify = true // #nosec G402
		return nil
	}
}
