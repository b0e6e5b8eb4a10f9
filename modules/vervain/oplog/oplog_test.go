// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oplog

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
)

func TestViewEncodeDecodeRoundTrip(t *testing.T) {
	v := NewView()
	c1 := ids.CommitID(ids.Of([]byte("c1")))
	c2 := ids.CommitID(ids.Of([]byte("c2")))
	v.Branches["main"] = merge.Normal(c1)
	v.Tags["v1"] = merge.Merge[ids.CommitID]{Adds: []ids.CommitID{c1, c2}, Removes: []ids.CommitID{c1}}
	v.Remotes["origin"] = map[string]refs.RemoteRef{
		"main": {Target: merge.Normal(c2), State: refs.RemoteRefAhead},
	}
	v.WorkingCopies[ids.DefaultWorkspaceID] = c1

	var buf bytes.Buffer
	require.NoError(t, v.Encode(&buf))

	decoded, err := DecodeView(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, v.Branches, decoded.Branches)
	require.Equal(t, v.Tags, decoded.Tags)
	require.Equal(t, v.Remotes, decoded.Remotes)
	require.Equal(t, v.WorkingCopies, decoded.WorkingCopies)
}

// TestViewEncodeIsDeterministicAcrossMapOrder guards spec.md §4.3's "MUST be
// deterministic... two independent readers produce the same merged op id":
// encoding the same View twice (with multiple branches/tags/remotes/
// workspaces, so Go's randomized map iteration order would otherwise leak
// into the byte stream) must produce byte-identical output every time.
func TestViewEncodeIsDeterministicAcrossMapOrder(t *testing.T) {
	c1 := ids.CommitID(ids.Of([]byte("c1")))
	c2 := ids.CommitID(ids.Of([]byte("c2")))
	c3 := ids.CommitID(ids.Of([]byte("c3")))

	build := func() *View {
		v := NewView()
		v.Branches["alpha"] = merge.Normal(c1)
		v.Branches["beta"] = merge.Normal(c2)
		v.Branches["gamma"] = merge.Normal(c3)
		v.Tags["v1"] = merge.Normal(c1)
		v.Tags["v2"] = merge.Normal(c2)
		v.Remotes["origin"] = map[string]refs.RemoteRef{
			"main": {Target: merge.Normal(c1), State: refs.RemoteRefAhead},
			"dev":  {Target: merge.Normal(c2), State: refs.RemoteRefBehind},
		}
		v.Remotes["upstream"] = map[string]refs.RemoteRef{
			"main": {Target: merge.Normal(c3), State: refs.RemoteRefAhead},
		}
		v.WorkingCopies["ws-a"] = c1
		v.WorkingCopies["ws-b"] = c2
		v.WorkingCopies["ws-c"] = c3
		return v
	}

	var first []byte
	for i := 0; i < 20; i++ {
		var buf bytes.Buffer
		require.NoError(t, build().Encode(&buf))
		if i == 0 {
			first = buf.Bytes()
			continue
		}
		require.Equal(t, first, buf.Bytes(), "View.Encode must be byte-identical regardless of map iteration order")
	}
}

func TestOperationEncodeIsDeterministicAcrossMapOrder(t *testing.T) {
	build := func() *Operation {
		return &Operation{
			ViewID: ids.ViewID(ids.Of([]byte("view"))),
			Tags: map[string]string{
				"op_type":  "commit",
				"hostname": "host",
				"username": "user",
			},
		}
	}

	var first []byte
	for i := 0; i < 20; i++ {
		var buf bytes.Buffer
		require.NoError(t, build().Encode(&buf))
		if i == 0 {
			first = buf.Bytes()
			continue
		}
		require.Equal(t, first, buf.Bytes(), "Operation.Encode must be byte-identical regardless of map iteration order")
	}
}

func TestViewCloneDoesNotAliasMaps(t *testing.T) {
	v := NewView()
	c1 := ids.CommitID(ids.Of([]byte("c1")))
	v.Branches["main"] = merge.Normal(c1)

	clone := v.Clone()
	clone.Branches["main"] = merge.Normal(ids.CommitID(ids.Of([]byte("other"))))

	require.Equal(t, c1, v.Branches["main"].Adds[0], "mutating the clone must not affect the original view")
}

func TestOperationEncodeDecodeRoundTrip(t *testing.T) {
	op := &Operation{
		Parents:     []ids.OperationID{ids.OperationID(ids.Of([]byte("p1")))},
		ViewID:      ids.ViewID(ids.Of([]byte("view"))),
		Description: "do a thing",
		Tags:        map[string]string{"op_type": "commit"},
		StartMillis: 1000,
		EndMillis:   2000,
	}

	var buf bytes.Buffer
	require.NoError(t, op.Encode(&buf))
	decoded, err := DecodeOperation(buf.Bytes())
	require.NoError(t, err)

	require.Equal(t, op.Parents, decoded.Parents)
	require.Equal(t, op.ViewID, decoded.ViewID)
	require.Equal(t, op.Description, decoded.Description)
	require.Equal(t, op.Tags, decoded.Tags)
	require.Equal(t, op.StartMillis, decoded.StartMillis)
	require.Equal(t, op.EndMillis, decoded.EndMillis)
}

func TestStoreRoundTripsViewsAndOperations(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemory())

	v := NewView()
	v.Branches["main"] = merge.Normal(ids.CommitID(ids.Of([]byte("c"))))
	viewID, err := s.WriteView(ctx, v)
	require.NoError(t, err)

	readView, err := s.ReadView(ctx, viewID)
	require.NoError(t, err)
	require.Equal(t, v.Branches, readView.Branches)

	op := &Operation{ViewID: viewID, Description: "init"}
	opID, err := s.WriteOperation(ctx, op)
	require.NoError(t, err)

	readOp, err := s.ReadOperation(ctx, opID)
	require.NoError(t, err)
	require.Equal(t, viewID, readOp.ViewID)
	require.Equal(t, "init", readOp.Description)
}
