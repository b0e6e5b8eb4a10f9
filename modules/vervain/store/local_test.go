// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	content := []byte("hello, local store\n")
	id := ids.Of(content)
	require.NoError(t, l.Put(ctx, id, bytes.NewReader(content)))

	rc, err := l.Get(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestLocalPutIsIdempotentForIdenticalContent(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	content := []byte("same content")
	id := ids.Of(content)
	require.NoError(t, l.Put(ctx, id, bytes.NewReader(content)))
	require.NoError(t, l.Put(ctx, id, bytes.NewReader(content)), "re-putting identical content under its own id must be a no-op, not an error")

	got, err := ReadAll(ctx, l, id)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestLocalHasAndDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	id := ids.Of([]byte("x"))
	ok, err := l.Has(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Put(ctx, id, bytes.NewReader([]byte("x"))))
	ok, err = l.Has(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Delete(ctx, id))
	ok, err = l.Has(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent id again must not error.
	require.NoError(t, l.Delete(ctx, id))
}

func TestLocalGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Get(ctx, ids.Of([]byte("never stored")))
	require.Error(t, err)
}

func TestLocalListEnumeratesStoredIDs(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	var want []ids.ID
	for _, c := range []string{"one", "two", "three"} {
		id := ids.Of([]byte(c))
		require.NoError(t, l.Put(ctx, id, bytes.NewReader([]byte(c))))
		want = append(want, id)
	}

	var got []ids.ID
	require.NoError(t, l.List(ctx, func(id ids.ID) error {
		got = append(got, id)
		return nil
	}))
	require.ElementsMatch(t, want, got)
}
