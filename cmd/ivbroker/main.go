// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command ivbroker runs a local MQTT broker with the state store service
// attached, for development without a cluster.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/config"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore/server"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

func main() {
	logger := log.NewConsole(os.Getenv("LOG_LEVEL"))
	if err := run(logger); err != nil {
		logger.Error("ivbroker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	host, portStr, err := net.SplitHostPort(cfg.Broker.Listen)
	if err != nil {
		return fmt.Errorf("invalid IV_BROKER_LISTEN: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid IV_BROKER_LISTEN: %w", err)
	}
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	broker := mochi.New(&mochi.Options{Logger: logger})
	if err := broker.AddHook(new(auth.AllowHook), nil); err != nil {
		return err
	}
	if err := broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: cfg.Broker.Listen,
	})); err != nil {
		return err
	}
	if err := broker.Serve(); err != nil {
		return err
	}
	defer broker.Close()

	client := mqtt.NewSessionClient(
		mqtt.TCPConnection(host, uint16(port)),
		mqtt.WithClientID("statestore"),
		mqtt.WithLogger(logger),
	)
	if err := client.Start(); err != nil {
		return err
	}
	defer client.Stop()

	logger.Info("broker listening", "addr", cfg.Broker.Listen)
	err = server.New(client, server.WithLogger(logger)).Run(ctx)

	logger.Info("shutting down...")
	return err
}
