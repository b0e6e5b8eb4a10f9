// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/treemerge"
	"github.com/vervain-vcs/vervain/modules/vervain/workingcopy"
)

// MaterializeRootTree resolves commitID's root tree to a single TreeID,
// suitable for a working copy to check out. Most commits already have a
// single-term RootTree; a commit whose RootTree is itself an alternating
// merge (spec.md §3 — the rewrite engine produces these, e.g. after
// rebasing a conflicted change) is run through the tree merger so the
// unresolved entries land as object.ValConflict values inside the
// materialized tree instead of the working copy ever seeing a bare merge of
// tree ids.
func (r *Repo) MaterializeRootTree(ctx context.Context, commitID ids.CommitID) (ids.TreeID, error) {
	c, err := r.DB.ReadCommit(ctx, commitID)
	if err != nil {
		return ids.TreeID{}, err
	}
	if resolved, ok := c.RootTree(); ok {
		return resolved, nil
	}
	m := merge.Merge[ids.TreeID]{Adds: c.RootTreeAdds, Removes: c.RootTreeRemoves}
	return treemerge.New(r.DB).Merge(ctx, m)
}

// Checkout materializes commitID's root tree (resolving any conflicted
// RootTree via the tree merger) and checks it out into wc, propagating
// verr.StaleWorkingCopy from wc.Checkout untouched so the caller can prompt
// the user instead of silently overwriting diverged on-disk state (spec.md
// §4.6, §7).
func (r *Repo) Checkout(ctx context.Context, wc workingcopy.WorkingCopy, expectedTreeID ids.TreeID, commitID ids.CommitID) error {
	targetTreeID, err := r.MaterializeRootTree(ctx, commitID)
	if err != nil {
		return err
	}
	return wc.Checkout(ctx, expectedTreeID, targetTreeID)
}
