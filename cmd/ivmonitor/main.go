// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command ivmonitor serves the IV drip dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/config"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/dashboard"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/metrics"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore"
)

func main() {
	logger := log.NewConsole(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.FromEnv()
	if err == nil {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("ivmonitor failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves the dashboard until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {

	client, err := cfg.SessionClient(
		mqtt.WithClientIDPrefix("ivmonitor"),
		mqtt.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create MQTT client: %w", err)
	}

	stateStore, err := statestore.New(client, statestore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create state store client: %w", err)
	}

	m := metrics.New()
	session, err := infusion.NewSession(
		infusion.NewStateStore(stateStore, logger),
		append(
			cfg.Monitor.SessionOptions(),
			infusion.WithRecorder(m),
			infusion.WithLogger(logger),
		)...,
	)
	if err != nil {
		return err
	}
	defer session.Close()

	client.RegisterConnectEventHandler(func(*mqtt.ConnectEvent) {
		session.SetConnected(true)
		m.SetConnected(true)
	})
	client.RegisterDisconnectEventHandler(func(*mqtt.DisconnectEvent) {
		session.SetConnected(false)
		m.SetConnected(false)
	})

	if err := client.Start(); err != nil {
		return fmt.Errorf("failed to start MQTT connection: %w", err)
	}
	defer client.Stop()

	done, err := stateStore.Listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to start state store client: %w", err)
	}
	defer done()

	if err := session.Start(ctx); err != nil {
		return err
	}

	srv := dashboard.New(session,
		dashboard.WithMetrics(m),
		dashboard.WithLogger(logger),
		dashboard.WithAccessLog(os.Stdout),
	)
	err = srv.ListenAndServe(ctx, cfg.Monitor.HTTPAddr)

	logger.Info("shutting down...")
	// The session releases its key notification while the state store
	// listener and the MQTT connection are still up.
	return errors.Join(err, session.Close())
}
