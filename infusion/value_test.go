// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
	}{
		{"512.5", 512.5},
		{" 20\n", 20},
		{"-1", -1},
		{`"431.25"`, 431.25},
		{"1e3", 1000},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseValue([]byte(tc.in))
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}

	for _, in := range []string{"", "   ", "abc", `"abc"`, "NaN", "+Inf", `{"w":1}`, `"12`} {
		t.Run("malformed "+in, func(t *testing.T) {
			_, err := ParseValue([]byte(in))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestFormatRemaining(t *testing.T) {
	for _, tc := range []struct {
		sec  float64
		want string
	}{
		{-1, "no estimate"},
		{0, "≤ 0 min"},
		{1, "≤ 5 min"},
		{300, "≤ 5 min"},
		{301, "≤ 10 min"},
		{3540, "≤ 1 h"},
		{3300, "≤ 55 min"},
		{3600, "≤ 1 h"},
		{5100, "≤ 1 h 25 min"},
		{7500, "≤ 2 h 5 min"},
	} {
		require.Equal(t, tc.want, FormatRemaining(tc.sec), "%v seconds", tc.sec)
	}
}
