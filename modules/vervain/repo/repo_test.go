// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/oplog"
	"github.com/vervain-vcs/vervain/modules/vervain/opheads"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
)

type testRepo struct {
	db    *backend.Database
	ops   *oplog.Store
	heads *opheads.Store
	l     *Loader
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	db := backend.NewDatabase(store.NewMemory())
	ops := oplog.NewStore(store.NewMemory())
	heads, err := opheads.NewStore(t.TempDir())
	require.NoError(t, err)
	return &testRepo{db: db, ops: ops, heads: heads, l: NewLoader(db, ops, heads)}
}

// writeCommit writes a distinct commit (description disambiguates content,
// so two calls never collide on id) with the given parents and root tree.
func (tr *testRepo) writeCommit(t *testing.T, ctx context.Context, desc string, parents []ids.CommitID, tree ids.TreeID) ids.CommitID {
	t.Helper()
	c := &object.Commit{
		Parents:      parents,
		RootTreeAdds: []ids.TreeID{tree},
		ChangeID:     ids.NewChangeID(),
		Description:  desc,
	}
	id, err := tr.db.WriteCommit(ctx, c)
	require.NoError(t, err)
	return id
}

func TestLoaderBootstrapsFreshRepo(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	r, err := tr.l.Load(ctx)
	require.NoError(t, err)
	require.False(t, r.Reconciled)
	require.Empty(t, r.View.Branches)

	heads, err := tr.heads.List()
	require.NoError(t, err)
	require.Len(t, heads, 1)
	require.Equal(t, heads[0], r.OpID)
}

func TestTransactionCommitAdvancesOpHeads(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	r, err := tr.l.Load(ctx)
	require.NoError(t, err)

	empty, err := tr.db.EmptyTree(ctx)
	require.NoError(t, err)
	c1 := tr.writeCommit(t, ctx, "first", nil, empty)

	txn := r.NewTransaction("create main")
	txn.SetBranch("main", merge.Normal(c1))
	r2, err := txn.Commit(ctx)
	require.NoError(t, err)

	heads, err := tr.heads.List()
	require.NoError(t, err)
	require.Equal(t, []ids.OperationID{r2.OpID}, heads)

	target, ok := r2.ResolveRef("main")
	require.True(t, ok)
	resolved, ok := target.Resolve()
	require.True(t, ok)
	require.Equal(t, c1, resolved)
}

// TestConcurrentBranchMovesSameNameConflict reproduces spec.md §8 scenario 3:
// two concurrent writers each move "main" to a different commit. Neither
// write is lost; the reconciled view surfaces main as a conflicted ref.
func TestConcurrentBranchMovesSameNameConflict(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	base, err := tr.l.Load(ctx)
	require.NoError(t, err)

	empty, err := tr.db.EmptyTree(ctx)
	require.NoError(t, err)
	commonAncestor := tr.writeCommit(t, ctx, "ancestor", nil, empty)

	baseTxn := base.NewTransaction("set base main")
	baseTxn.SetBranch("main", merge.Normal(commonAncestor))
	baseRepo, err := baseTxn.Commit(ctx)
	require.NoError(t, err)

	x := tr.writeCommit(t, ctx, "x", []ids.CommitID{commonAncestor}, empty)
	y := tr.writeCommit(t, ctx, "y", []ids.CommitID{commonAncestor}, empty)

	txnP1 := baseRepo.NewTransaction("P1 moves main to X")
	txnP1.SetBranch("main", merge.Normal(x))
	_, err = txnP1.Commit(ctx)
	require.NoError(t, err)

	txnP2 := baseRepo.NewTransaction("P2 moves main to Y")
	txnP2.SetBranch("main", merge.Normal(y))
	_, err = txnP2.Commit(ctx)
	require.NoError(t, err)

	// Both heads are now present; the next Load must reconcile them.
	current, err := tr.heads.List()
	require.NoError(t, err)
	require.Len(t, current, 2)

	reconciled, err := tr.l.Load(ctx)
	require.NoError(t, err)
	require.True(t, reconciled.Reconciled)

	main, ok := reconciled.ResolveRef("main")
	require.True(t, ok)
	require.True(t, main.IsConflict(), "main must surface as conflicted, not silently drop one write")
	require.ElementsMatch(t, []ids.CommitID{x, y}, main.Adds)

	heads, err := tr.heads.List()
	require.NoError(t, err)
	require.Len(t, heads, 1, "reconciliation must collapse multi-head op-heads to the one new merged op")
}

// TestConcurrentBranchMovesDistinctNamesClean: when two concurrent writers
// move different branch names, both moves survive cleanly after
// reconciliation (spec.md §8 "Concurrent commit safety").
func TestConcurrentBranchMovesDistinctNamesClean(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	base, err := tr.l.Load(ctx)
	require.NoError(t, err)

	empty, err := tr.db.EmptyTree(ctx)
	require.NoError(t, err)
	root := tr.writeCommit(t, ctx, "root", nil, empty)
	x := tr.writeCommit(t, ctx, "x", []ids.CommitID{root}, empty)
	y := tr.writeCommit(t, ctx, "y", []ids.CommitID{root}, empty)

	txnP1 := base.NewTransaction("P1 sets alpha")
	txnP1.SetBranch("alpha", merge.Normal(x))
	_, err = txnP1.Commit(ctx)
	require.NoError(t, err)

	txnP2 := base.NewTransaction("P2 sets beta")
	txnP2.SetBranch("beta", merge.Normal(y))
	_, err = txnP2.Commit(ctx)
	require.NoError(t, err)

	reconciled, err := tr.l.Load(ctx)
	require.NoError(t, err)
	require.True(t, reconciled.Reconciled)

	alpha, ok := reconciled.ResolveRef("alpha")
	require.True(t, ok)
	resolvedAlpha, ok := alpha.Resolve()
	require.True(t, ok)
	require.Equal(t, x, resolvedAlpha)

	beta, ok := reconciled.ResolveRef("beta")
	require.True(t, ok)
	resolvedBeta, ok := beta.Resolve()
	require.True(t, ok)
	require.Equal(t, y, resolvedBeta)
}

func TestVisibleHeadsReducesToDAGTips(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	r, err := tr.l.Load(ctx)
	require.NoError(t, err)

	empty, err := tr.db.EmptyTree(ctx)
	require.NoError(t, err)
	root := tr.writeCommit(t, ctx, "root", nil, empty)
	child := tr.writeCommit(t, ctx, "child", []ids.CommitID{root}, empty)

	txn := r.NewTransaction("set branches")
	txn.SetBranch("main", merge.Normal(child))
	txn.SetTag("v0", merge.Normal(root))
	r2, err := txn.Commit(ctx)
	require.NoError(t, err)

	heads, err := r2.VisibleHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, []ids.CommitID{child}, heads, "root is an ancestor of child and must not appear as a separate head")
}

func TestResolveRefBranchBeforeTag(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	r, err := tr.l.Load(ctx)
	require.NoError(t, err)
	empty, err := tr.db.EmptyTree(ctx)
	require.NoError(t, err)
	c := tr.writeCommit(t, ctx, "c", nil, empty)

	txn := r.NewTransaction("set main")
	txn.SetBranch("main", merge.Normal(c))
	r2, err := txn.Commit(ctx)
	require.NoError(t, err)

	_, ok := r2.ResolveRef("nonexistent")
	require.False(t, ok)

	target, ok := r2.ResolveRef(string(refs.ShortName(refs.Branch("main"))))
	require.True(t, ok)
	resolved, ok := target.Resolve()
	require.True(t, ok)
	require.Equal(t, c, resolved)
}
