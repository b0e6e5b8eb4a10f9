// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package diff3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleMergeCleanTwoSidedChange(t *testing.T) {
	base := "a\nb\nc\nd\n"
	a := "a\nB\nc\nd\n"
	b := "a\nb\nc\nD\n"
	merged, conflict, err := SimpleMerge(context.Background(), base, a, b)
	require.NoError(t, err)
	require.False(t, conflict)
	require.Equal(t, "a\nB\nc\nD\n", merged)
}

func TestSimpleMergeConflictingEdits(t *testing.T) {
	base := "x\n"
	a := "y\n"
	b := "z\n"
	_, conflict, err := SimpleMerge(context.Background(), base, a, b)
	require.NoError(t, err)
	require.True(t, conflict, "two sides editing the same line differently must conflict")
}

func TestSimpleMergeOneSidedChangePassesThrough(t *testing.T) {
	base := "a\nb\nc\n"
	a := "a\nb\nc\n"
	b := "a\nb2\nc\n"
	merged, conflict, err := SimpleMerge(context.Background(), base, a, b)
	require.NoError(t, err)
	require.False(t, conflict)
	require.Equal(t, b, merged)
}

func TestSimpleMergeHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := SimpleMerge(ctx, "a\n", "a\n", "a\n")
	require.Error(t, err)
}
