// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "hello, world"))
	got, err := ReadString(&buf)
	require.NoError(t, err)
	require.Equal(t, "hello, world", got)
}

func TestEmptyStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, ""))
	got, err := ReadString(&buf)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestUint32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 4294967295))
	got, err := ReadUint32(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(4294967295), got)
}

func TestInt64RoundTripNegative(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt64(&buf, -12345))
	got, err := ReadInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(-12345), got)
}

func TestIDListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	list := []ids.ID{ids.Of([]byte("a")), ids.Of([]byte("b")), ids.Of([]byte("c"))}
	require.NoError(t, WriteIDList(&buf, list))
	got, err := ReadIDList(&buf)
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestEmptyIDListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIDList(&buf, nil))
	got, err := ReadIDList(&buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadStringErrorsOnTruncatedInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 10))
	buf.WriteString("short")
	_, err := ReadString(&buf)
	require.Error(t, err)
}
