// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rewrite implements the rewrite engine of spec.md §4.4: when a
// commit is rewritten, every visible descendant is rebased onto the new
// commit, with root-tree conflicts carried forward (and cancelled where
// possible) through the same merge.Merge[TreeID].Rebase arithmetic the
// conflict algebra already provides, rather than a patch/diff theory. This
// plays the role modules/zeta/worktree_rebase.go's descendant walk does for
// the teacher, generalized from "rebase one branch onto another" to
// "propagate any identity change to everything downstream of it."
package rewrite

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Map records old CommitId -> new CommitId rewrites, both the ones a caller
// supplies up front (a commit was directly edited/rebased/squashed) and the
// ones Engine.RebaseDescendants derives transitively while walking the
// visible DAG in topological order.
type Map map[ids.CommitID]ids.CommitID

// Engine rewrites descendants of changed commits against a backend.Database.
type Engine struct {
	db  *backend.Database
	log logrus.FieldLogger
}

func New(db *backend.Database) *Engine {
	return &Engine{db: db, log: logrus.WithField("component", "rewrite")}
}

// commitNode is the subset of object.Commit this package needs while
// walking the visible set, kept alongside the loaded object so repeated
// passes don't re-decode it.
type commitNode struct {
	id     ids.CommitID
	commit *object.Commit
}

// loadVisible loads every commit reachable from heads (heads included), the
// forward (parent->children) edge map needed to find descendants, and a
// topological order (parents before children) to process them in.
func (e *Engine) loadVisible(ctx context.Context, heads []ids.CommitID) (map[ids.CommitID]*commitNode, map[ids.CommitID][]ids.CommitID, []ids.CommitID, error) {
	nodes := make(map[ids.CommitID]*commitNode)
	queue := append([]ids.CommitID(nil), heads...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := nodes[id]; ok {
			continue
		}
		c, err := e.db.ReadCommit(ctx, id)
		if err != nil {
			return nil, nil, nil, err
		}
		nodes[id] = &commitNode{id: id, commit: c}
		queue = append(queue, c.Parents...)
	}

	children := make(map[ids.CommitID][]ids.CommitID)
	indegree := make(map[ids.CommitID]int)
	for id := range nodes {
		indegree[id] = 0
	}
	for id, n := range nodes {
		for _, p := range n.commit.Parents {
			if _, ok := nodes[p]; ok {
				children[p] = append(children[p], id)
				indegree[id]++
			}
		}
	}

	var topo []ids.CommitID
	var ready []ids.CommitID
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		topo = append(topo, id)
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	return nodes, children, topo, nil
}

// RebaseDescendants takes a set of directly-rewritten commits (m) and
// rewrites every visible commit downstream of them so that each
// descendant's parents point at the rewritten identities and its root tree
// carries the rebase through the conflict algebra (spec.md §4.4). heads
// bounds the visible set to rewrite within. committer stamps every newly
// written descendant commit's Committer signature (spec.md §4.4: "a rewrite
// that introduces no change... still writes a new commit [because]
// committer timestamp... differs, unless the mapped-parents set is
// identical and the tree id is identical, in which case the descendant is
// reused").
//
// The returned Map extends m with every transitively-rewritten descendant;
// commits not affected by the rewrite are absent from it (callers treat a
// missing key as "identity unchanged").
func (e *Engine) RebaseDescendants(ctx context.Context, m Map, heads []ids.CommitID, committer object.Signature) (Map, error) {
	nodes, _, topo, err := e.loadVisible(ctx, heads)
	if err != nil {
		return nil, err
	}

	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}

	for _, id := range topo {
		if _, directlyRewritten := m[id]; directlyRewritten {
			continue
		}
		n := nodes[id]
		mappedParents, parentsChanged := mapParents(n.commit.Parents, out)
		if !parentsChanged {
			continue
		}

		newTree, err := e.rebaseRootTree(ctx, n.commit, n.commit.Parents, mappedParents)
		if err != nil {
			return nil, fmt.Errorf("rewrite: rebase %s: %w", id.String(), err)
		}

		if samecommit(n.commit, mappedParents, newTree) {
			// spec.md §4.4: identical mapped-parents and tree id ⇒ reuse,
			// no new commit, no entry in out (identity genuinely did not
			// change even though an ancestor's did).
			continue
		}

		newCommit := &object.Commit{
			Parents:         mappedParents,
			Predecessors:    []ids.CommitID{id},
			RootTreeAdds:    newTree.Adds,
			RootTreeRemoves: newTree.Removes,
			ChangeID:        n.commit.ChangeID,
			Description:     n.commit.Description,
			Author:          n.commit.Author,
			Committer:       committer,
		}
		newID, err := e.db.WriteCommit(ctx, newCommit)
		if err != nil {
			return nil, err
		}
		out[id] = newID
		e.log.WithFields(logrus.Fields{"old": id.String(), "new": newID.String()}).Debug("rebased descendant")
	}
	return out, nil
}

// mapParents maps each of oldParents through out (or keeps it unchanged if
// absent from out), reporting whether anything actually changed.
func mapParents(oldParents []ids.CommitID, out Map) ([]ids.CommitID, bool) {
	mapped := make([]ids.CommitID, len(oldParents))
	changed := false
	for i, p := range oldParents {
		if np, ok := out[p]; ok {
			mapped[i] = np
			changed = true
		} else {
			mapped[i] = p
		}
	}
	return mapped, changed
}

func samecommit(c *object.Commit, mappedParents []ids.CommitID, newTree merge.Merge[ids.TreeID]) bool {
	if len(mappedParents) != len(c.Parents) {
		return false
	}
	for i := range mappedParents {
		if mappedParents[i] != c.Parents[i] {
			return false
		}
	}
	if len(newTree.Adds) != len(c.RootTreeAdds) || len(newTree.Removes) != len(c.RootTreeRemoves) {
		return false
	}
	for i := range newTree.Adds {
		if newTree.Adds[i] != c.RootTreeAdds[i] {
			return false
		}
	}
	for i := range newTree.Removes {
		if newTree.Removes[i] != c.RootTreeRemoves[i] {
			return false
		}
	}
	return true
}

// rebaseRootTree recomputes c's root tree merge across every parent slot
// that changed, via merge.Merge[TreeID].Rebase(oldParentTree, newParentTree)
// chained once per changed slot — pure conflict-algebra arithmetic, no tree
// merger invocation: the root tree is allowed to BE a multi-term alternating
// merge directly (spec.md §3 Commit.root_tree), exactly the representation
// Rebase produces.
func (e *Engine) rebaseRootTree(ctx context.Context, c *object.Commit, oldParents, newParents []ids.CommitID) (merge.Merge[ids.TreeID], error) {
	m := merge.Merge[ids.TreeID]{Adds: append([]ids.TreeID(nil), c.RootTreeAdds...), Removes: append([]ids.TreeID(nil), c.RootTreeRemoves...)}
	for i := range oldParents {
		if oldParents[i] == newParents[i] {
			continue
		}
		oldTree, err := e.rootTreeOf(ctx, oldParents[i])
		if err != nil {
			return merge.Merge[ids.TreeID]{}, err
		}
		newTree, err := e.rootTreeOf(ctx, newParents[i])
		if err != nil {
			return merge.Merge[ids.TreeID]{}, err
		}
		m = m.Rebase(oldTree, newTree)
	}
	return m, nil
}

// rootTreeOf returns a parent's resolved root tree id. A conflicted parent
// (root tree itself a multi-term merge) has no single id to rebase against;
// this core treats that as not-yet-supported input to RebaseDescendants and
// reports it via ErrMergeConflictUnmergeable rather than silently picking
// one term, since the spec only walks through single-tree-id examples for
// parent rebase bases (§8 scenarios 1-2 and 6 all rebase onto commits with a
// resolved root tree).
func (e *Engine) rootTreeOf(ctx context.Context, id ids.CommitID) (ids.TreeID, error) {
	c, err := e.db.ReadCommit(ctx, id)
	if err != nil {
		return ids.TreeID{}, err
	}
	if t, ok := c.RootTree(); ok {
		return t, nil
	}
	return ids.TreeID{}, verr.ErrMergeConflictUnmergeable
}

// Now stamps Committer.MillisSinceEpoch/TZOffsetMinutes for a freshly
// rewritten descendant using the caller's clock, mirroring
// object.NewSignature but kept here so rewrite doesn't need a time.Time
// dependency injected through every call site.
func Now(name, email string) object.Signature {
	return object.NewSignature(name, email, time.Now())
}
