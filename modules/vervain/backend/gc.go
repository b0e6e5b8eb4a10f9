// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
)

// GCStats reports what a GC pass did, mirroring the (kept, pruned) pair
// modules/zeta/backend.PruneObjects returns.
type GCStats struct {
	Kept    int
	Deleted int
}

// GC walks the object graph reachable from keep (every commit an op-heads
// view, or an explicit keep-newer window, still points at) and deletes every
// stored id that is not reachable. It is the generalized form of
// modules/zeta/backend/prune.go's PruneObjects, extended to walk the typed
// commit/tree/conflict graph instead of a flat blob list, since spec.md §6
// requires GC to honor tree-level conflicts (a Conflict object's terms are
// reachable too, not just the resolved value).
//
// dryRun, when true, computes GCStats without calling Delete.
func (d *Database) GC(ctx context.Context, keep []ids.CommitID, dryRun bool) (GCStats, error) {
	live := make(map[ids.ID]struct{})
	for _, c := range keep {
		if err := d.markCommit(ctx, c, live); err != nil {
			return GCStats{}, err
		}
	}

	var stats GCStats
	err := d.ListAll(ctx, func(id ids.ID) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := live[id]; ok {
			stats.Kept++
			return nil
		}
		stats.Deleted++
		if dryRun {
			return nil
		}
		return d.Delete(ctx, id)
	})
	if err != nil {
		return GCStats{}, err
	}
	return stats, nil
}

func (d *Database) markCommit(ctx context.Context, id ids.CommitID, live map[ids.ID]struct{}) error {
	if _, ok := live[ids.ID(id)]; ok {
		return nil
	}
	live[ids.ID(id)] = struct{}{}
	c, err := d.ReadCommit(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range c.Parents {
		if err := d.markCommit(ctx, p, live); err != nil {
			return err
		}
	}
	// Predecessors keep rewritten-away commits reachable only as long as
	// some op still references them; the index/rewrite layer is
	// responsible for dropping them from keep once no view needs them, so
	// GC itself does not walk Predecessors.
	for _, t := range c.RootTreeAdds {
		if err := d.markTree(ctx, t, live); err != nil {
			return err
		}
	}
	for _, t := range c.RootTreeRemoves {
		if err := d.markTree(ctx, t, live); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) markTree(ctx context.Context, id ids.TreeID, live map[ids.ID]struct{}) error {
	if _, ok := live[ids.ID(id)]; ok {
		return nil
	}
	live[ids.ID(id)] = struct{}{}
	t, err := d.ReadTree(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		if err := d.markTreeValue(ctx, e.Value, live); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) markTreeValue(ctx context.Context, v object.TreeValue, live map[ids.ID]struct{}) error {
	if v.IsAbsent() {
		return nil
	}
	switch v.Kind {
	case object.ValTree:
		return d.markTree(ctx, ids.TreeID(v.ID), live)
	case object.ValConflict:
		return d.markConflict(ctx, ids.ConflictID(v.ID), live)
	default:
		// Files, symlinks, and git submodules are leaves from GC's
		// perspective: mark the blob id and stop.
		live[v.ID] = struct{}{}
		return nil
	}
}

func (d *Database) markConflict(ctx context.Context, id ids.ConflictID, live map[ids.ID]struct{}) error {
	if _, ok := live[ids.ID(id)]; ok {
		return nil
	}
	live[ids.ID(id)] = struct{}{}
	c, err := d.ReadConflict(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range c.Adds {
		if err := d.markTreeValue(ctx, v, live); err != nil {
			return err
		}
	}
	for _, v := range c.Removes {
		if err := d.markTreeValue(ctx, v, live); err != nil {
			return err
		}
	}
	return nil
}
