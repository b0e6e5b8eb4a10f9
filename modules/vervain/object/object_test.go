// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
)

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	fid := ids.Of([]byte("file content"))
	tr := NewTree(map[string]TreeValue{
		"a.txt": FileValue(ids.FileID(fid), false),
		"bin":   FileValue(ids.FileID(fid), true),
		"dir":   TreeValueOf(ids.TreeID(ids.Of([]byte("subtree")))),
	})

	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))

	decoded, err := DecodeTree(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, tr.Names(), decoded.Names())
	for _, name := range tr.Names() {
		v1, _ := tr.Get(name)
		v2, _ := decoded.Get(name)
		require.Equal(t, v1, v2)
	}
}

func TestTreeRejectsDuplicateEntriesOnDecode(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(TreeMagic[:])
	// count = 2, two identical names "a"
	buf.Write([]byte{0, 0, 0, 2})
	for i := 0; i < 2; i++ {
		buf.Write([]byte{0, 1})
		buf.WriteString("a")
		buf.Write([]byte{byte(ValFile), 0})
		var id ids.ID
		buf.Write(id[:])
	}
	_, err := DecodeTree(buf.Bytes())
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	c := &Commit{
		Parents:      []ids.CommitID{ids.CommitID(ids.Of([]byte("p1"))), ids.CommitID(ids.Of([]byte("p2")))},
		Predecessors: []ids.CommitID{ids.CommitID(ids.Of([]byte("old")))},
		RootTreeAdds: []ids.TreeID{ids.TreeID(ids.Of([]byte("tree")))},
		ChangeID:     ids.NewChangeID(),
		Description:  "a test commit",
		Author:       NewSignature("Ada", "ada@example.com", time.Now().Truncate(time.Millisecond)),
		Committer:    NewSignature("Bob", "bob@example.com", time.Now().Truncate(time.Millisecond)),
	}

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	decoded, err := DecodeCommit(buf.Bytes())
	require.NoError(t, err)

	require.Equal(t, c.Parents, decoded.Parents)
	require.Equal(t, c.Predecessors, decoded.Predecessors)
	require.Equal(t, c.RootTreeAdds, decoded.RootTreeAdds)
	require.Equal(t, c.ChangeID, decoded.ChangeID)
	require.Equal(t, c.Description, decoded.Description)
	require.Equal(t, c.Author, decoded.Author)
	require.Equal(t, c.Committer, decoded.Committer)
}

func TestCommitRootTreeReportsConflictedState(t *testing.T) {
	c := &Commit{
		RootTreeAdds:    []ids.TreeID{ids.TreeID(ids.Of([]byte("a"))), ids.TreeID(ids.Of([]byte("b")))},
		RootTreeRemoves: []ids.TreeID{ids.TreeID(ids.Of([]byte("base")))},
	}
	_, ok := c.RootTree()
	require.False(t, ok, "a multi-term root tree must not report a single resolved id")
}

func TestConflictRoundTripAndValidation(t *testing.T) {
	m := merge.Merge[TreeValue]{
		Adds:    []TreeValue{FileValue(ids.FileID(ids.Of([]byte("a"))), false), FileValue(ids.FileID(ids.Of([]byte("b"))), false)},
		Removes: []TreeValue{FileValue(ids.FileID(ids.Of([]byte("base"))), false)},
	}
	c, err := NewConflict(m)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	decoded, err := DecodeConflict(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, c.Adds, decoded.Adds)
	require.Equal(t, c.Removes, decoded.Removes)
}

func TestNewConflictRejectsMalformedMerge(t *testing.T) {
	bad := merge.Merge[TreeValue]{Adds: []TreeValue{Absent, Absent}, Removes: []TreeValue{}}
	_, err := NewConflict(bad)
	require.Error(t, err)
}

func TestHashDiffersByObjectKind(t *testing.T) {
	tr := NewTree(nil)
	treeHash, err := Hash(tr)
	require.NoError(t, err)

	empty := NewTree(nil)
	var buf bytes.Buffer
	require.NoError(t, empty.Encode(&buf))
	commitLikeBytes := append([]byte(nil), buf.Bytes()...)
	copy(commitLikeBytes, CommitMagic[:])

	// A tree and a differently-magic-prefixed object never collide even if
	// their payload bytes coincide: TreeMagic vs CommitMagic differ.
	require.NotEqual(t, CommitMagic, TreeMagic)
	require.NotEqual(t, ids.ID{}, treeHash)
	require.NotEqual(t, treeHash, ids.Of(commitLikeBytes))
}
