// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workingcopy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
)

func newLocal(t *testing.T) (*Local, *backend.Database) {
	t.Helper()
	db := backend.NewDatabase(store.NewMemory())
	dir := t.TempDir()
	return NewLocal(db, ids.DefaultWorkspaceID, dir), db
}

// TestSnapshotIdempotence reproduces spec.md §8 scenario 5 exactly:
// snapshot(t0) with no changes returns t0; editing a file and snapshotting
// again returns a new id t1; an immediate repeat returns t1 unchanged.
func TestSnapshotIdempotence(t *testing.T) {
	ctx := context.Background()
	lc, db := newLocal(t)

	t0, err := db.EmptyTree(ctx)
	require.NoError(t, err)

	got, err := lc.Snapshot(ctx, t0)
	require.NoError(t, err)
	require.Equal(t, t0, got, "no on-disk changes must return the expected tree id unchanged")

	require.NoError(t, os.WriteFile(filepath.Join(dirOf(lc), "f.txt"), []byte("hello\n"), 0o644))

	t1, err := lc.Snapshot(ctx, t0)
	require.NoError(t, err)
	require.NotEqual(t, t0, t1)

	again, err := lc.Snapshot(ctx, t1)
	require.NoError(t, err)
	require.Equal(t, t1, again)
}

func dirOf(l *Local) string { return l.dir }

func TestCheckoutMaterializesFilesAndWritesModes(t *testing.T) {
	ctx := context.Background()
	lc, db := newLocal(t)

	empty, err := db.EmptyTree(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dirOf(lc), "f.txt"), []byte("hello\n"), 0o644))
	treeID, err := lc.Snapshot(ctx, empty)
	require.NoError(t, err)

	lc2, _ := newLocal(t)
	lc2.db = db
	require.NoError(t, lc2.Checkout(ctx, ids.TreeID{}, treeID))

	content, err := os.ReadFile(filepath.Join(dirOf(lc2), "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))
}

// TestCheckoutDetectsStaleness exercises spec.md §4.6/§7: Checkout must
// refuse to silently overwrite a workspace whose last recorded tree doesn't
// match the caller's expectation.
func TestCheckoutDetectsStaleness(t *testing.T) {
	ctx := context.Background()
	lc, db := newLocal(t)

	empty, err := db.EmptyTree(ctx)
	require.NoError(t, err)
	require.NoError(t, lc.Checkout(ctx, ids.TreeID{}, empty))

	require.NoError(t, os.WriteFile(filepath.Join(dirOf(lc), "f.txt"), []byte("hello\n"), 0o644))
	treeID, err := lc.Snapshot(ctx, empty)
	require.NoError(t, err)

	// The workspace's last recorded tree is still `empty` (Snapshot doesn't
	// update it, only Checkout does); claiming `treeID` was the expectation
	// is a stale belief and must be rejected.
	err = lc.Checkout(ctx, treeID, empty)
	require.Error(t, err, "Checkout must reject a caller-supplied expectation that doesn't match the last recorded tree")
}
