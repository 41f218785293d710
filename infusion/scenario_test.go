// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const scenarioDir = "testdata/scenarios"

type (
	scenarioSession struct {
		Capacity   int     `toml:"capacity" yaml:"capacity"`
		AlmostDone float64 `toml:"almost-done-weight" yaml:"almost-done-weight"`
		Done       float64 `toml:"done-weight" yaml:"done-weight"`
	}

	scenarioDefaults struct {
		Session scenarioSession `toml:"session"`
	}

	scenario struct {
		Description string          `yaml:"description"`
		Session     scenarioSession `yaml:"session"`
		Steps       []scenarioStep  `yaml:"steps"`
	}

	// A step does one of: push a value to a subscriber, set or delete the
	// sampled weight, tick the sampler once per listed weight, or check the
	// snapshot. A missing value means the key is absent.
	scenarioStep struct {
		Push    string          `yaml:"push"`
		Store   string          `yaml:"store"`
		Value   *string         `yaml:"value"`
		Weights []string        `yaml:"weights"`
		Tick    TickOutcome     `yaml:"tick"`
		Expect  *scenarioExpect `yaml:"expect"`
	}

	scenarioExpect struct {
		Weight        *float64    `yaml:"weight"`
		Remaining     *float64    `yaml:"remaining-sec"`
		RemainingText string      `yaml:"remaining-text"`
		Values        []float64   `yaml:"values"`
		Status        Status      `yaml:"status"`
		NurseCall     *bool       `yaml:"nurse-call"`
		Alerts        []AlertKind `yaml:"alerts"`
	}
)

func TestScenarios(t *testing.T) {
	var defaults scenarioDefaults
	_, err := toml.DecodeFile(
		filepath.Join(scenarioDir, "defaults.toml"),
		&defaults,
	)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name, _ := strings.CutSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			runScenario(t, defaults.Session, f)
		})
	}
}

func runScenario(t *testing.T, defaults scenarioSession, file string) {
	data, err := os.ReadFile(file)
	require.NoError(t, err)

	sc := scenario{Session: defaults}
	require.NoError(t, yaml.Unmarshal(data, &sc))
	require.NotEmpty(t, sc.Steps, "scenario has no steps")

	store := newFakeStore()
	s := newTestSession(t, store,
		WithCapacity(sc.Session.Capacity),
		WithThresholds{AlmostDone: sc.Session.AlmostDone, Done: sc.Session.Done},
		WithNurseCallKey(DefaultNurseCallKey),
	)
	ctx := context.Background()

	subscribers := map[string]*Subscriber{
		"remaining":  s.Subscriber(),
		"nurse-call": s.NurseCall(),
	}

	for i, step := range sc.Steps {
		where := fmt.Sprintf("%s step %d", sc.Description, i+1)

		v := Value{}
		if step.Value != nil {
			v = present(*step.Value)
		}

		switch {
		case step.Push != "":
			sub, ok := subscribers[step.Push]
			require.True(t, ok, "%s: unknown subscriber %q", where, step.Push)
			sub.Handle(ctx, v)

		case step.Store != "":
			require.Equal(t, "weight", step.Store, where)
			if v.Present {
				store.set(DefaultWeightKey, *step.Value)
			} else {
				store.del(DefaultWeightKey)
			}

		case len(step.Weights) > 0:
			for _, w := range step.Weights {
				store.set(DefaultWeightKey, w)
				require.Equal(t, step.Tick, s.Sampler().Tick(ctx), where)
			}

		case step.Tick != "":
			require.Equal(t, step.Tick, s.Sampler().Tick(ctx), where)
		}

		if step.Expect != nil {
			checkSnapshot(t, where, s.Snapshot(), step.Expect)
		}
	}
}

func checkSnapshot(t *testing.T, where string, snap Snapshot, want *scenarioExpect) {
	require.Len(t, snap.Labels, len(snap.Values), where)
	require.LessOrEqual(t, len(snap.Values), snap.Capacity, where)

	if want.Weight != nil {
		require.Equal(t, *want.Weight, snap.Weight, where)
	}
	if want.Remaining != nil {
		require.Equal(t, *want.Remaining, snap.RemainingSeconds, where)
	}
	if want.RemainingText != "" {
		require.Equal(t, want.RemainingText, snap.RemainingText, where)
	}
	if want.Values != nil {
		require.Equal(t, want.Values, snap.Values, where)
	}
	if want.Status != "" {
		require.Equal(t, want.Status, snap.Status, where)
	}
	if want.NurseCall != nil {
		require.Equal(t, *want.NurseCall, snap.NurseCall, where)
	}
	if want.Alerts != nil {
		kinds := []AlertKind{}
		for _, a := range snap.Alerts {
			kinds = append(kinds, a.Kind)
		}
		require.Equal(t, want.Alerts, kinds, where)
	}
}
