// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package treemerge implements the tree merger of spec.md §4.2: merging an
// alternating merge of tree ids produces a single resulting tree id, with
// any entry that cannot be auto-resolved pushed down into a Conflict object
// referenced by that entry, rather than aborting the whole merge. Recursion
// into subtrees is lazy and short-circuits whenever two sides already share
// the same subtree id, the way modules/merkletrie's diff walker
// short-circuits on equal node hashes.
package treemerge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/diff3"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
)

// maxParallelEntries bounds how many tree entries a single Merge call merges
// concurrently, the way pkg/serve/odb/unpack.go bounds its errgroup fan-out
// rather than spawning one goroutine per object unconditionally.
const maxParallelEntries = 16

// Merger merges tree ids against a backend.Database, writing any new tree
// or conflict objects it produces.
type Merger struct {
	db *backend.Database
}

func New(db *backend.Database) *Merger {
	return &Merger{db: db}
}

// Merge resolves an alternating merge of tree ids to a single result tree
// id. Unmergeable entries are pushed down as object.ValConflict values
// inside the result tree rather than failing the whole call — the only
// error returns are backend I/O failures or a malformed input merge.
func (m *Merger) Merge(ctx context.Context, trees merge.Merge[ids.TreeID]) (ids.TreeID, error) {
	if err := trees.Check(); err != nil {
		return ids.TreeID{}, err
	}
	simplified := merge.Simplify(trees)
	if resolved, ok := simplified.Resolve(); ok {
		return resolved, nil
	}

	loaded, err := m.loadAll(ctx, simplified)
	if err != nil {
		return ids.TreeID{}, err
	}

	names := unionNames(loaded.adds, loaded.removes)
	entries := make([]object.TreeEntry, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEntries)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			value, err := m.mergeEntry(gctx, name, loaded)
			if err != nil {
				return fmt.Errorf("treemerge: entry %q: %w", name, err)
			}
			entries[i] = object.TreeEntry{Name: name, Value: value}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ids.TreeID{}, err
	}

	entryMap := make(map[string]object.TreeValue, len(entries))
	for _, e := range entries {
		if e.Value.IsAbsent() {
			continue
		}
		entryMap[e.Name] = e.Value
	}
	return m.db.WriteTree(ctx, object.NewTree(entryMap))
}

type loadedTrees struct {
	adds    []*object.Tree
	removes []*object.Tree
}

func (m *Merger) loadAll(ctx context.Context, trees merge.Merge[ids.TreeID]) (loadedTrees, error) {
	adds := make([]*object.Tree, len(trees.Adds))
	removes := make([]*object.Tree, len(trees.Removes))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range trees.Adds {
		i, id := i, id
		g.Go(func() error {
			t, err := m.db.ReadTree(gctx, id)
			if err != nil {
				return err
			}
			adds[i] = t
			return nil
		})
	}
	for i, id := range trees.Removes {
		i, id := i, id
		g.Go(func() error {
			t, err := m.db.ReadTree(gctx, id)
			if err != nil {
				return err
			}
			removes[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return loadedTrees{}, err
	}
	return loadedTrees{adds: adds, removes: removes}, nil
}

func unionNames(trees ...[]*object.Tree) []string {
	seen := make(map[string]bool)
	var names []string
	for _, list := range trees {
		for _, t := range list {
			for _, n := range t.Names() {
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
		}
	}
	return names
}

func getOrAbsent(t *object.Tree, name string) object.TreeValue {
	v, ok := t.Get(name)
	if !ok {
		return object.Absent
	}
	return v
}

// mergeEntry resolves the per-name alternating merge of TreeValues at name
// across loaded's adds/removes trees.
func (m *Merger) mergeEntry(ctx context.Context, name string, loaded loadedTrees) (object.TreeValue, error) {
	adds := make([]object.TreeValue, len(loaded.adds))
	for i, t := range loaded.adds {
		adds[i] = getOrAbsent(t, name)
	}
	removes := make([]object.TreeValue, len(loaded.removes))
	for i, t := range loaded.removes {
		removes[i] = getOrAbsent(t, name)
	}

	entryMerge := merge.Simplify(merge.Merge[object.TreeValue]{Adds: adds, Removes: removes})
	if resolved, ok := entryMerge.Resolve(); ok {
		return resolved, nil
	}

	// The classic 3-way shape (2 adds, 1 remove) admits the content-aware
	// rules below; anything wider (an octopus merge that still conflicts
	// after cancellation) is stored as-is.
	if len(entryMerge.Adds) == 2 && len(entryMerge.Removes) == 1 {
		if resolved, ok, err := m.mergeThreeWay(ctx, entryMerge.Removes[0], entryMerge.Adds[0], entryMerge.Adds[1]); err != nil {
			return object.TreeValue{}, err
		} else if ok {
			return resolved, nil
		}
	}

	return m.storeConflict(ctx, entryMerge)
}

// mergeThreeWay attempts the content-aware auto-merge rules: same-kind
// subtrees recurse, same-kind regular files get a diff3 text merge (their
// executable bits are merged separately, whether or not they match), and
// everything else (symlinks, submodules,
// cross-kind conflicts, differing path types) is reported unresolved so the
// caller falls back to storing a Conflict object — surfacing a path-type
// conflict rather than silently guessing which side's type wins.
func (m *Merger) mergeThreeWay(ctx context.Context, base, a, b object.TreeValue) (object.TreeValue, bool, error) {
	if a.Kind != b.Kind || a.Kind != base.Kind {
		return object.TreeValue{}, false, nil
	}
	switch a.Kind {
	case object.ValTree:
		sub := merge.Merge[ids.TreeID]{
			Adds:    []ids.TreeID{ids.TreeID(a.ID), ids.TreeID(b.ID)},
			Removes: []ids.TreeID{ids.TreeID(base.ID)},
		}
		id, err := m.Merge(ctx, sub)
		if err != nil {
			return object.TreeValue{}, false, err
		}
		return object.TreeValueOf(id), true, nil
	case object.ValFile:
		return m.mergeFile(ctx, base, a, b)
	default:
		// Symlinks and git submodules carry no mergeable internal
		// structure: two different targets is a genuine conflict.
		return object.TreeValue{}, false, nil
	}
}

func (m *Merger) mergeFile(ctx context.Context, base, a, b object.TreeValue) (object.TreeValue, bool, error) {
	baseContent, err := m.db.ReadFile(ctx, ids.FileID(base.ID))
	if err != nil {
		return object.TreeValue{}, false, err
	}
	aContent, err := m.db.ReadFile(ctx, ids.FileID(a.ID))
	if err != nil {
		return object.TreeValue{}, false, err
	}
	bContent, err := m.db.ReadFile(ctx, ids.FileID(b.ID))
	if err != nil {
		return object.TreeValue{}, false, err
	}
	merged, conflict, err := diff3.SimpleMerge(ctx, string(baseContent), string(aContent), string(bContent))
	if err != nil {
		return object.TreeValue{}, false, err
	}
	if conflict {
		return object.TreeValue{}, false, nil
	}
	id, err := m.db.WriteFile(ctx, []byte(merged))
	if err != nil {
		return object.TreeValue{}, false, err
	}
	executable := a.Executable
	execMerge := merge.Merge3(base.Executable, a.Executable, b.Executable)
	if resolved, ok := execMerge.Resolve(); ok {
		executable = resolved
	}
	return object.FileValue(ids.FileID(id), executable), true, nil
}

func (m *Merger) storeConflict(ctx context.Context, entryMerge merge.Merge[object.TreeValue]) (object.TreeValue, error) {
	c, err := object.NewConflict(entryMerge)
	if err != nil {
		return object.TreeValue{}, err
	}
	id, err := m.db.WriteConflict(ctx, c)
	if err != nil {
		return object.TreeValue{}, err
	}
	return object.ConflictValue(id), nil
}
