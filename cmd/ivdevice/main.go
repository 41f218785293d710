// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command ivdevice simulates an IV pole load cell publishing the bag weight
// and remaining-time estimate to the state store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/config"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/device"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore"
)

func main() {
	logger := log.NewConsole(os.Getenv("LOG_LEVEL"))
	if err := run(logger); err != nil {
		logger.Error("ivdevice failed", "error", err)
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

	client, err := cfg.SessionClient(
		mqtt.WithClientIDPrefix("ivdevice"),
		mqtt.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create MQTT client: %w", err)
	}

	stateStore, err := statestore.New(client, statestore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create state store client: %w", err)
	}

	if err := client.Start(); err != nil {
		return fmt.Errorf("failed to start MQTT connection: %w", err)
	}
	defer client.Stop()

	done, err := stateStore.Listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to start state store client: %w", err)
	}
	defer done()

	d := cfg.Device
	sim := &device.Simulator{
		Cell: device.NewLoadCell(
			d.InitialWeight,
			d.FlowRate,
			d.Noise,
			time.Now().UnixNano(),
		),
		Estimator: device.NewEstimator(d.TargetWeight, d.Interval),
		Publisher: device.NewPublisher(
			stateStore,
			cfg.Monitor.WeightKey,
			cfg.Monitor.RemainingKey,
			0,
		),
		SampleInterval: d.Interval / 50,
		Logger:         logger,
	}

	logger.Info("simulating infusion",
		"initial_g", d.InitialWeight,
		"flow_g_per_s", d.FlowRate,
		"target_g", d.TargetWeight,
	)
	sim.Run(ctx)

	logger.Info("shutting down...")
	return nil
}
