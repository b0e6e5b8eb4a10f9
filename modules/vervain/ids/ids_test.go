// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfIsDeterministicAndContentSensitive(t *testing.T) {
	a1 := Of([]byte("content"))
	a2 := Of([]byte("content"))
	require.Equal(t, a1, a2)

	b := Of([]byte("different"))
	require.NotEqual(t, a1, b)
}

func TestHasherMatchesOf(t *testing.T) {
	h := NewHasher()
	_, err := h.Write([]byte("part1"))
	require.NoError(t, err)
	_, err = h.Write([]byte("part2"))
	require.NoError(t, err)

	require.Equal(t, Of([]byte("part1part2")), h.Sum())
}

func TestEmptyIDIsZeroValue(t *testing.T) {
	var id ID
	require.True(t, id.IsEmpty())
	require.Equal(t, Empty, id)

	nonEmpty := Of([]byte("x"))
	require.False(t, nonEmpty.IsEmpty())
}

func TestHexRoundTrip(t *testing.T) {
	id := Of([]byte("round trip me"))
	str := id.String()
	parsed := FromHex(str)
	require.Equal(t, id, parsed)
}

func TestFromHexInvalidInputYieldsZeroID(t *testing.T) {
	require.Equal(t, Empty, FromHex("not hex!!"))
}

func TestJSONRoundTrip(t *testing.T) {
	id := Of([]byte("json me"))
	b, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, id, decoded)
}

func TestNewChangeIDIsRandomAndNonEmpty(t *testing.T) {
	a := NewChangeID()
	b := NewChangeID()
	require.NotEqual(t, a, b)
	require.False(t, a.IsEmpty())
}

func TestNewWorkspaceIDIsUnique(t *testing.T) {
	a := NewWorkspaceID()
	b := NewWorkspaceID()
	require.NotEqual(t, a, b)
	require.NotEqual(t, DefaultWorkspaceID, a)
}
