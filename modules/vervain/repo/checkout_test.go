// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/workingcopy"
)

// fileTree writes a single-entry tree {"f": content} and returns its id.
func fileTree(t *testing.T, ctx context.Context, tr *testRepo, content string) ids.TreeID {
	t.Helper()
	fileID, err := tr.db.WriteFile(ctx, []byte(content))
	require.NoError(t, err)
	treeID, err := tr.db.WriteTree(ctx, object.NewTree(map[string]object.TreeValue{
		"f": object.FileValue(fileID, false),
	}))
	require.NoError(t, err)
	return treeID
}

// TestMaterializeRootTreeResolvesConflictedCommit exercises spec.md §4.2's
// tree merger from a commit whose RootTree is itself a genuine alternating
// merge (spec.md §3) — the materialization path a checkout of a conflicted
// commit must go through rather than handing the working copy a bare merge
// of tree ids.
func TestMaterializeRootTreeResolvesConflictedCommit(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	base := fileTree(t, ctx, tr, "x\n")
	sideA := fileTree(t, ctx, tr, "y\n")
	sideB := fileTree(t, ctx, tr, "z\n")

	commitID := tr.writeCommitConflicted(t, ctx, "conflicted merge",
		[]ids.CommitID{}, []ids.TreeID{sideA, sideB}, []ids.TreeID{base})

	r, err := tr.l.Load(ctx)
	require.NoError(t, err)

	resultTreeID, err := r.MaterializeRootTree(ctx, commitID)
	require.NoError(t, err)

	resultTree, err := tr.db.ReadTree(ctx, resultTreeID)
	require.NoError(t, err)
	v, ok := resultTree.Get("f")
	require.True(t, ok)
	require.Equal(t, object.ValConflict, v.Kind, "y vs z with no common resolution must surface as a stored conflict")
}

// TestCheckoutMaterializesConflictedCommit wires MaterializeRootTree's output
// into a WorkingCopy.Checkout call, the end-to-end path the tree merger was
// missing: nothing upstream of a checkout previously called treemerge.Merger
// outside its own unit tests.
func TestCheckoutMaterializesConflictedCommit(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	base := fileTree(t, ctx, tr, "x\n")
	sideA := fileTree(t, ctx, tr, "y\n")
	sideB := fileTree(t, ctx, tr, "z\n")
	commitID := tr.writeCommitConflicted(t, ctx, "conflicted merge",
		[]ids.CommitID{}, []ids.TreeID{sideA, sideB}, []ids.TreeID{base})

	r, err := tr.l.Load(ctx)
	require.NoError(t, err)

	wc := workingcopy.NewMemory(tr.db, ids.DefaultWorkspaceID)
	err = r.Checkout(ctx, wc, ids.TreeID{}, commitID)
	require.NoError(t, err)
}

// writeCommitConflicted writes a commit whose RootTree is a genuine
// alternating merge, for tests exercising materialization of a conflicted
// root tree rather than the common single-tree case testRepo.writeCommit
// covers.
func (tr *testRepo) writeCommitConflicted(t *testing.T, ctx context.Context, desc string, parents []ids.CommitID, adds, removes []ids.TreeID) ids.CommitID {
	t.Helper()
	c := &object.Commit{
		Parents:         parents,
		RootTreeAdds:    adds,
		RootTreeRemoves: removes,
		ChangeID:        ids.NewChangeID(),
		Description:     desc,
	}
	id, err := tr.db.WriteCommit(ctx, c)
	require.NoError(t, err)
	return id
}
