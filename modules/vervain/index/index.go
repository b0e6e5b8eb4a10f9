// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package index answers ancestry/reachability questions over the commit DAG
// (spec.md §4.5): has, is_ancestor, common_ancestors, heads, and
// all_heads_of_visible_set. Traversal follows the breadth-first queue shape
// of modules/zeta/object/commit_walker_bfs.go, generalized to fan parent
// loads out across an errgroup since a commit's parents are independent
// reads.
package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// maxParallelLoads bounds concurrent commit reads during ancestry walks.
const maxParallelLoads = 16

// Index provides read-only ancestry queries against a backend.Database.
type Index struct {
	db *backend.Database
}

func New(db *backend.Database) *Index {
	return &Index{db: db}
}

// ancestors returns the full set of ids reachable from roots, roots
// themselves included, loading parent generations in parallel batches.
func (ix *Index) ancestors(ctx context.Context, roots []ids.CommitID) (map[ids.CommitID]struct{}, error) {
	visited := make(map[ids.CommitID]struct{})
	frontier := make([]ids.CommitID, 0, len(roots))
	for _, r := range roots {
		if _, ok := visited[r]; !ok {
			visited[r] = struct{}{}
			frontier = append(frontier, r)
		}
	}
	for len(frontier) > 0 {
		type loaded struct {
			parents []ids.CommitID
		}
		results := make([]loaded, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelLoads)
		for i, id := range frontier {
			i, id := i, id
			g.Go(func() error {
				c, err := ix.db.ReadCommit(gctx, id)
				if err != nil {
					return err
				}
				results[i] = loaded{parents: c.Parents}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		var next []ids.CommitID
		for _, r := range results {
			for _, p := range r.parents {
				if _, ok := visited[p]; !ok {
					visited[p] = struct{}{}
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return visited, nil
}

// Has reports whether target is id or an ancestor of id.
func (ix *Index) Has(ctx context.Context, id, target ids.CommitID) (bool, error) {
	return ix.IsAncestor(ctx, target, id)
}

// IsAncestor reports whether candidate is an ancestor of (or equal to)
// descendant.
func (ix *Index) IsAncestor(ctx context.Context, candidate, descendant ids.CommitID) (bool, error) {
	if candidate == descendant {
		return true, nil
	}
	reached, err := ix.ancestors(ctx, []ids.CommitID{descendant})
	if err != nil {
		return false, err
	}
	_, ok := reached[candidate]
	return ok, nil
}

// CommonAncestors returns the merge-base set: the heads of the commits that
// are an ancestor of (or equal to) every commit in commits. spec.md §4.5
// names this query "common_ancestors" in the jj sense of merge-base, not
// "every shared ancestor" — a caller rebasing onto "the" common ancestor
// needs the maximal elements of the shared-ancestry set, not its entire
// (necessarily ancestor-closed) tail.
func (ix *Index) CommonAncestors(ctx context.Context, commits []ids.CommitID) ([]ids.CommitID, error) {
	if len(commits) == 0 {
		return nil, nil
	}
	sets := make([]map[ids.CommitID]struct{}, len(commits))
	for i, c := range commits {
		reached, err := ix.ancestors(ctx, []ids.CommitID{c})
		if err != nil {
			return nil, err
		}
		sets[i] = reached
	}
	common := sets[0]
	for _, s := range sets[1:] {
		for c := range common {
			if _, ok := s[c]; !ok {
				delete(common, c)
			}
		}
	}
	all := make([]ids.CommitID, 0, len(common))
	for c := range common {
		all = append(all, c)
	}
	return ix.Heads(ctx, all)
}

// Heads returns the subset of commits that are not an ancestor of any other
// commit in the set — the minimal generating set of their combined ancestry.
func (ix *Index) Heads(ctx context.Context, commits []ids.CommitID) ([]ids.CommitID, error) {
	if len(commits) <= 1 {
		return commits, nil
	}
	ancestorOfOther := make(map[ids.CommitID]bool)
	for i, a := range commits {
		for j, b := range commits {
			if i == j || ancestorOfOther[a] {
				continue
			}
			isAnc, err := ix.IsAncestor(ctx, a, b)
			if err != nil {
				return nil, err
			}
			if isAnc && a != b {
				ancestorOfOther[a] = true
			}
		}
	}
	var heads []ids.CommitID
	for _, c := range commits {
		if !ancestorOfOther[c] {
			heads = append(heads, c)
		}
	}
	return heads, nil
}

// AllHeadsOfVisibleSet returns the heads of the full ancestry generated by
// visible, the visible-heads query a working copy consults when choosing
// which commit(s) a checkout should show (spec.md §4.5).
func (ix *Index) AllHeadsOfVisibleSet(ctx context.Context, visible []ids.CommitID) ([]ids.CommitID, error) {
	return ix.Heads(ctx, visible)
}
