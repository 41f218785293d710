// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlersOrder(t *testing.T) {
	h := NewHandlers[int]()
	h.Add(1)
	remove := h.Add(2)
	h.Add(3)

	require.Equal(t, []int{1, 2, 3}, slices.Collect(h.All()))

	remove()
	remove()
	require.Equal(t, []int{1, 3}, slices.Collect(h.All()))
	require.Equal(t, 2, h.Len())
}

func TestHandlersRemoveWhileIterating(t *testing.T) {
	h := NewHandlers[func()]()
	var calls int
	var remove func()
	remove = h.Add(func() {
		calls++
		remove()
	})

	for f := range h.All() {
		f()
	}
	for f := range h.All() {
		f()
	}
	require.Equal(t, 1, calls)
	require.Zero(t, h.Len())
}
