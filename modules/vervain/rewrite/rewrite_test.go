// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
)

func newDB(t *testing.T) *backend.Database {
	t.Helper()
	return backend.NewDatabase(store.NewMemory())
}

func writeFileTree(t *testing.T, ctx context.Context, db *backend.Database, name, content string) ids.TreeID {
	t.Helper()
	fid, err := db.WriteFile(ctx, []byte(content))
	require.NoError(t, err)
	treeID, err := db.WriteTree(ctx, object.NewTree(map[string]object.TreeValue{
		name: object.FileValue(fid, false),
	}))
	require.NoError(t, err)
	return treeID
}

func writeCommit(t *testing.T, ctx context.Context, db *backend.Database, desc string, parents []ids.CommitID, tree ids.TreeID) ids.CommitID {
	t.Helper()
	id, err := db.WriteCommit(ctx, &object.Commit{
		Parents:      parents,
		RootTreeAdds: []ids.TreeID{tree},
		ChangeID:     ids.NewChangeID(),
		Description:  desc,
	})
	require.NoError(t, err)
	return id
}

// TestRebaseDescendantSimplifiesWhenParentUnchanged reproduces the second
// half of spec.md §8 scenario 1: a descendant B', sitting on C with the
// conflicted root tree [B,C]−[A], rebases cleanly onto D (which made no
// change relative to A) and comes out unconflicted.
func TestRebaseDescendantSimplifiesWhenParentUnchanged(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	engine := New(db)

	treeA := writeFileTree(t, ctx, db, "f", "x\n")
	treeD := writeFileTree(t, ctx, db, "f", "x\n") // D: unchanged relative to A

	a := writeCommit(t, ctx, db, "A", nil, treeA)
	d := writeCommit(t, ctx, db, "D", nil, treeD)

	// B' is B rebased onto C, so its root tree is already a conflict over f:
	// adds=[treeB,treeC], removes=[treeA].
	treeB := writeFileTree(t, ctx, db, "f", "y\n")
	treeC := writeFileTree(t, ctx, db, "f", "z\n")
	c := writeCommit(t, ctx, db, "C", []ids.CommitID{a}, treeC)
	bPrime, err := db.WriteCommit(ctx, &object.Commit{
		Parents:         []ids.CommitID{c},
		RootTreeAdds:    []ids.TreeID{treeB, treeC},
		RootTreeRemoves: []ids.TreeID{treeA},
		ChangeID:        ids.NewChangeID(),
		Description:     "B'",
	})
	require.NoError(t, err)

	m := Map{c: d}
	result, err := engine.RebaseDescendants(ctx, m, []ids.CommitID{bPrime}, object.NewSignature("t", "t@example.com", time.Now()))
	require.NoError(t, err)

	newID, ok := result[bPrime]
	require.True(t, ok, "B' must be rewritten since its parent C was rewritten to D")
	newCommit, err := db.ReadCommit(ctx, newID)
	require.NoError(t, err)
	resolvedTree, ok := newCommit.RootTree()
	require.True(t, ok, "B'' must resolve cleanly once D supplies the same f as A")

	resultTree, err := db.ReadTree(ctx, resolvedTree)
	require.NoError(t, err)
	v, ok := resultTree.Get("f")
	require.True(t, ok)
	require.Equal(t, object.ValFile, v.Kind)
	content, err := db.ReadFile(ctx, ids.FileID(v.ID))
	require.NoError(t, err)
	require.Equal(t, "y\n", string(content))
}

// TestRebaseDescendantReusedWhenNoGenuineChange covers spec.md §4.4: a
// descendant whose mapped parents and resulting tree are both unchanged is
// reused rather than rewritten.
func TestRebaseDescendantReusedWhenNoGenuineChange(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	engine := New(db)

	tree := writeFileTree(t, ctx, db, "f", "x\n")
	a := writeCommit(t, ctx, db, "A", nil, tree)
	b := writeCommit(t, ctx, db, "B", []ids.CommitID{a}, tree)

	// Rewriting A to itself (identity) must leave every descendant unchanged.
	m := Map{a: a}
	result, err := engine.RebaseDescendants(ctx, m, []ids.CommitID{b}, object.NewSignature("t", "t@example.com", time.Now()))
	require.NoError(t, err)
	_, rewritten := result[b]
	require.False(t, rewritten, "identity rewrite must not produce a new commit for descendants")
}

// TestMergeCommitRebasePreservesEvil reproduces spec.md §8 scenario 6: a
// merge commit M with parents [P1,P2] whose root tree differs from a clean
// merge of tree(P1)/tree(P2) (an "evil" merge). Rebasing M onto [P1',P2']
// must preserve that evil delta through the conflict algebra rather than
// recomputing a fresh merge.
func TestMergeCommitRebasePreservesEvil(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	engine := New(db)

	treeP1 := writeFileTree(t, ctx, db, "f", "p1\n")
	treeP2 := writeFileTree(t, ctx, db, "g", "p2\n")
	p1 := writeCommit(t, ctx, db, "P1", nil, treeP1)
	p2 := writeCommit(t, ctx, db, "P2", nil, treeP2)

	// M's root tree deliberately does not equal a clean merge of P1/P2: it
	// adds an extra file "evil" that neither parent has, the "evil" delta.
	evilFID, err := db.WriteFile(ctx, []byte("evil\n"))
	require.NoError(t, err)
	treeM, err := db.WriteTree(ctx, object.NewTree(map[string]object.TreeValue{
		"evil": object.FileValue(evilFID, false),
	}))
	require.NoError(t, err)
	m := writeCommit(t, ctx, db, "M", []ids.CommitID{p1, p2}, treeM)

	treeP1Prime := writeFileTree(t, ctx, db, "f", "p1-updated\n")
	p1Prime := writeCommit(t, ctx, db, "P1'", nil, treeP1Prime)
	treeP2Prime := writeFileTree(t, ctx, db, "g", "p2-updated\n")
	p2Prime := writeCommit(t, ctx, db, "P2'", nil, treeP2Prime)

	rewriteMap := Map{p1: p1Prime, p2: p2Prime}
	result, err := engine.RebaseDescendants(ctx, rewriteMap, []ids.CommitID{m}, object.NewSignature("t", "t@example.com", time.Now()))
	require.NoError(t, err)

	newID, ok := result[m]
	require.True(t, ok)
	newCommit, err := db.ReadCommit(ctx, newID)
	require.NoError(t, err)
	require.Equal(t, []ids.CommitID{p1Prime, p2Prime}, newCommit.Parents)

	// The rebased root tree must be the alternating merge
	// [tree(M), tree(P1'), tree(P2')] - [tree(P1), tree(P2)], i.e. still a
	// conflict (since treeM doesn't cancel against either swapped base) that
	// carries forward the "evil" entry rather than a recomputed clean merge.
	require.True(t, len(newCommit.RootTreeRemoves) > 0 || len(newCommit.RootTreeAdds) > 1,
		"an evil merge commit rebased across both parents must remain a carried conflict, not a silently recomputed merge")
	require.Contains(t, newCommit.RootTreeAdds, treeM, "the original M tree (carrying the evil entry) must survive as a term")
}
