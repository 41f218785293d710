// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/infusion"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/iso"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt"
)

type (
	// Config is the configuration shared by the binaries. Each binary reads
	// the fields it needs.
	Config struct {
		LogLevel slog.Level

		// ConnectionString, when set, takes precedence over the individual
		// IV_BROKER_* and IV_MQTT_* variables.
		ConnectionString string

		Monitor Monitor
		Device  Device
		Broker  Broker
	}

	// Monitor configures the dashboard service.
	Monitor struct {
		WeightKey       string
		RemainingKey    string
		SampleInterval  time.Duration
		HistoryCapacity int
		LabelFormat     string
		HTTPAddr        string

		NurseCallKey     string
		AlmostDoneWeight float64
		DoneWeight       float64
	}

	// Device configures the simulated IV pole.
	Device struct {
		Interval      time.Duration
		InitialWeight float64
		TargetWeight  float64
		FlowRate      float64
		Noise         float64
	}

	// Broker configures the local broker.
	Broker struct {
		Listen string
	}

	// InvalidVariableError is returned for an environment variable that
	// cannot be parsed.
	InvalidVariableError struct {
		Name  string
		Value string
		Err   error
	}
)

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		LogLevel: slog.LevelInfo,
		Monitor: Monitor{
			WeightKey:       infusion.DefaultWeightKey,
			RemainingKey:    infusion.DefaultRemainingKey,
			SampleInterval:  infusion.DefaultInterval,
			HistoryCapacity: infusion.DefaultCapacity,
			LabelFormat:     infusion.DefaultLabelFormat,
			HTTPAddr:        ":8080",

			NurseCallKey:     infusion.DefaultNurseCallKey,
			AlmostDoneWeight: infusion.DefaultAlmostDoneWeight,
			DoneWeight:       infusion.DefaultDoneWeight,
		},
		Device: Device{
			Interval:      500 * time.Millisecond,
			InitialWeight: 500,
			TargetWeight:  20,
			FlowRate:      0.5,
			Noise:         0.2,
		},
		Broker: Broker{
			Listen: ":1883",
		},
	}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	return Parse(os.Environ())
}

// Parse reads the configuration from KEY=VALUE pairs. Unknown keys are
// ignored.
func Parse(environ []string) (*Config, error) {
	cfg := Default()
	for _, env := range environ {
		key, val, _ := strings.Cut(env, "=")
		if err := cfg.set(key, val); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *Config) set(key, val string) error {
	var err error
	switch key {
	case "LOG_LEVEL":
		cfg.LogLevel = log.ParseLevel(val)
	case "IV_MQTT_CONNECTION_STRING":
		cfg.ConnectionString = val

	case "IV_WEIGHT_KEY":
		err = nonEmpty(val, &cfg.Monitor.WeightKey)
	case "IV_REMAINING_KEY":
		err = nonEmpty(val, &cfg.Monitor.RemainingKey)
	case "IV_SAMPLE_INTERVAL":
		err = positiveDuration(val, &cfg.Monitor.SampleInterval)
	case "IV_HISTORY_CAPACITY":
		err = positiveInt(val, &cfg.Monitor.HistoryCapacity)
	case "IV_LABEL_FORMAT":
		err = nonEmpty(val, &cfg.Monitor.LabelFormat)
	case "IV_HTTP_ADDR":
		err = nonEmpty(val, &cfg.Monitor.HTTPAddr)
	case "IV_NURSE_CALL_KEY":
		err = nonEmpty(val, &cfg.Monitor.NurseCallKey)
	case "IV_ALMOST_DONE_WEIGHT":
		err = float(val, &cfg.Monitor.AlmostDoneWeight)
	case "IV_DONE_WEIGHT":
		err = float(val, &cfg.Monitor.DoneWeight)

	case "IV_DEVICE_INTERVAL":
		err = positiveDuration(val, &cfg.Device.Interval)
	case "IV_INITIAL_WEIGHT":
		err = float(val, &cfg.Device.InitialWeight)
	case "IV_TARGET_WEIGHT":
		err = float(val, &cfg.Device.TargetWeight)
	case "IV_FLOW_RATE":
		err = float(val, &cfg.Device.FlowRate)
	case "IV_WEIGHT_NOISE":
		err = float(val, &cfg.Device.Noise)

	case "IV_BROKER_LISTEN":
		err = nonEmpty(val, &cfg.Broker.Listen)
	default:
		return nil
	}

	if err != nil {
		return &InvalidVariableError{Name: key, Value: val, Err: err}
	}
	return nil
}

// SessionClient builds the MQTT session client from the connection string
// when one is configured, or from the IV_BROKER_* and IV_MQTT_* variables.
func (cfg *Config) SessionClient(
	opt ...mqtt.SessionClientOption,
) (*mqtt.SessionClient, error) {
	if cfg.ConnectionString != "" {
		return mqtt.NewSessionClientFromConnectionString(
			cfg.ConnectionString,
			opt...,
		)
	}
	return mqtt.NewSessionClientFromEnv(opt...)
}

// SessionOptions maps the monitor configuration onto session options.
func (m *Monitor) SessionOptions() []infusion.SessionOption {
	return []infusion.SessionOption{
		infusion.WithWeightKey(m.WeightKey),
		infusion.WithRemainingKey(m.RemainingKey),
		infusion.WithInterval(m.SampleInterval),
		infusion.WithCapacity(m.HistoryCapacity),
		infusion.WithLabelFormat(m.LabelFormat),
		infusion.WithNurseCallKey(m.NurseCallKey),
		infusion.WithThresholds{
			AlmostDone: m.AlmostDoneWeight,
			Done:       m.DoneWeight,
		},
	}
}

func (e *InvalidVariableError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Name, e.Value, e.Err)
}

func (e *InvalidVariableError) Unwrap() error {
	return e.Err
}

var errEmpty = errors.New("value must not be empty")

func nonEmpty(val string, dst *string) error {
	val = strings.TrimSpace(val)
	if val == "" {
		return errEmpty
	}
	*dst = val
	return nil
}

func positiveDuration(val string, dst *time.Duration) error {
	d, err := iso.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	*dst = d
	return nil
}

func positiveInt(val string, dst *int) error {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	*dst = n
	return nil
}

func float(val string, dst *float64) error {
	f, err := infusion.ParseValue([]byte(val))
	if err != nil {
		return err
	}
	*dst = f
	return nil
}
