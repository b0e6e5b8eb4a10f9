// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo implements the repo loader and immutable Repo snapshot of
// spec.md §4.3/§6: resolving "the current operation(s)" from the op-heads
// set, merging concurrent operations into a synthetic one when more than
// one head is found, and exposing a read-only view of repository state at
// one operation. It plays the role modules/zeta/zeta.Worktree's repository
// loading does for the teacher, generalized from a single mutable ref store
// to the content-addressed, lock-free operation log.
package repo

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/index"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/oplog"
	"github.com/vervain-vcs/vervain/modules/vervain/opheads"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Repo is an immutable snapshot of repository state at one operation: a
// view plus the handles needed to answer queries against it (spec.md §4
// "Repo loader / Repo"). Every field is read-only; mutation goes through
// NewTransaction.
type Repo struct {
	DB       *backend.Database
	Ops      *oplog.Store
	OpHeads  *opheads.Store
	Index    *index.Index
	OpID     ids.OperationID
	View     *oplog.View
	Reconciled bool // true if OpID names a synthesized concurrent-operation merge
}

// Loader resolves the current Repo from the op-heads set, merging
// concurrent heads when more than one is found (spec.md §4.3 steps 1-2).
type Loader struct {
	db      *backend.Database
	ops     *oplog.Store
	heads   *opheads.Store
	idx     *index.Index
	log     logrus.FieldLogger
	merging singleflight.Group
}

func NewLoader(db *backend.Database, ops *oplog.Store, heads *opheads.Store) *Loader {
	return &Loader{
		db:    db,
		ops:   ops,
		heads: heads,
		idx:   index.New(db),
		log:   logrus.WithField("component", "repo"),
	}
}

// Load resolves the current Repo. If the op-heads directory is empty, it
// bootstraps a fresh repository (a root operation over an empty view). If
// exactly one head is found, it loads that operation's view directly. If
// more than one head is found, it reconciles them into one synthetic
// operation (spec.md §4.3) before returning; callers can detect this via
// Repo.Reconciled and treat it as the informational verr.ErrConcurrentOperation
// condition (spec.md §7).
func (l *Loader) Load(ctx context.Context) (*Repo, error) {
	current, err := l.heads.List()
	if err != nil {
		return nil, err
	}
	switch len(current) {
	case 0:
		return l.bootstrap(ctx)
	case 1:
		return l.loadAt(ctx, current[0], false)
	default:
		return l.reconcileMany(ctx, current)
	}
}

// loadAt loads the Repo for a single, already-resolved operation id.
func (l *Loader) loadAt(ctx context.Context, opID ids.OperationID, reconciled bool) (*Repo, error) {
	op, err := l.ops.ReadOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	view, err := l.ops.ReadView(ctx, op.ViewID)
	if err != nil {
		return nil, err
	}
	return &Repo{
		DB:         l.db,
		Ops:        l.ops,
		OpHeads:    l.heads,
		Index:      l.idx,
		OpID:       opID,
		View:       view,
		Reconciled: reconciled,
	}, nil
}

// bootstrap creates the root operation for a brand new repository: an empty
// view over the distinguished root commit, with no branches, tags, or
// workspaces yet.
func (l *Loader) bootstrap(ctx context.Context) (*Repo, error) {
	view := oplog.NewView()
	viewID, err := l.ops.WriteView(ctx, view)
	if err != nil {
		return nil, err
	}
	op := &oplog.Operation{
		Description: "initialize repo",
	}
	op.ViewID = viewID
	opID, err := l.ops.WriteOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := l.heads.Add(opID); err != nil {
		return nil, err
	}
	l.log.WithField("op", opID.String()).Info("bootstrapped new repository")
	return &Repo{DB: l.db, Ops: l.ops, OpHeads: l.heads, Index: l.idx, OpID: opID, View: view}, nil
}

// reconcileMany merges a multi-head op-heads set into one synthetic
// operation and swings the op-heads set to it, collapsing duplicate
// concurrent computations of the same reconciliation with a singleflight
// key so two local goroutines racing Load on the same head set compute (and
// write) it only once.
func (l *Loader) reconcileMany(ctx context.Context, current []ids.OperationID) (*Repo, error) {
	key := mergeKey(current)
	v, err, _ := l.merging.Do(key, func() (any, error) {
		return l.reconcile(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Repo), nil
}

func mergeKey(ids_ []ids.OperationID) string {
	names := make([]string, len(ids_))
	for i, id := range ids_ {
		names[i] = id.String()
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// reconcile performs the actual merge: find the operations' common
// ancestor, 3-way-merge their views field by field (spec.md §4.3), write
// the merged view and a new Operation whose parents are every head that
// went in, and atomically replace all of them with the one new head.
func (l *Loader) reconcile(ctx context.Context, current []ids.OperationID) (*Repo, error) {
	l.log.WithField("heads", mergeKey(current)).Warn("concurrent operations detected, reconciling")

	base, err := l.commonAncestor(ctx, current)
	if err != nil {
		return nil, err
	}
	baseView, err := l.viewOf(ctx, base)
	if err != nil {
		return nil, err
	}

	merged := baseView.Clone()
	for _, opID := range current {
		if opID == base {
			continue
		}
		v, err := l.viewOf(ctx, opID)
		if err != nil {
			return nil, err
		}
		merged, err = mergeViews(baseView, merged, v)
		if err != nil {
			return nil, err
		}
	}

	viewID, err := l.ops.WriteView(ctx, merged)
	if err != nil {
		return nil, err
	}
	op := &oplog.Operation{
		Parents:     append([]ids.OperationID(nil), current...),
		ViewID:      viewID,
		Description: "reconcile concurrent operations",
	}
	opID, err := l.ops.WriteOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := l.heads.Add(opID); err != nil {
		return nil, err
	}
	for _, old := range current {
		if err := l.heads.Remove(old); err != nil {
			return nil, err
		}
	}
	// spec.md §7: ConcurrentOperation is informational, not an error — the
	// loader transparently returns the reconciled snapshot and the caller
	// proceeds atop it. Reconciled communicates this to anything that
	// wants to surface a notice without treating Load as having failed.
	return &Repo{
		DB:         l.db,
		Ops:        l.ops,
		OpHeads:    l.heads,
		Index:      l.idx,
		OpID:       opID,
		View:       merged,
		Reconciled: true,
	}, nil
}

func (l *Loader) viewOf(ctx context.Context, opID ids.OperationID) (*oplog.View, error) {
	op, err := l.ops.ReadOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	return l.ops.ReadView(ctx, op.ViewID)
}

// commonAncestor returns one operation reachable from every id in current,
// preferring the closest such join point. Operations form a DAG (a
// reconciliation operation has more than one parent), so this walks
// ancestor sets via oplog.Store.Walk and intersects them, the operation-log
// analogue of index.Index.CommonAncestors.
func (l *Loader) commonAncestor(ctx context.Context, current []ids.OperationID) (ids.OperationID, error) {
	sets := make([]map[ids.OperationID]bool, len(current))
	for i, id := range current {
		set := make(map[ids.OperationID]bool)
		if err := l.ops.Walk(ctx, id, func(visited ids.OperationID, _ *oplog.Operation) (bool, error) {
			set[visited] = true
			return true, nil
		}); err != nil {
			return ids.OperationID{}, err
		}
		sets[i] = set
	}
	common := sets[0]
	for _, s := range sets[1:] {
		for id := range common {
			if !s[id] {
				delete(common, id)
			}
		}
	}
	if len(common) == 0 {
		return ids.OperationID{}, verr.InvalidState("op-log", "no common ancestor operation for concurrent heads")
	}
	// Prefer a common ancestor that is not itself an ancestor of another
	// common ancestor: the closest join point. Ties are broken
	// deterministically by id so two readers agree (spec.md §4.3
	// determinism requirement).
	candidates := make([]ids.OperationID, 0, len(common))
	for id := range common {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].String() < candidates[j].String() })
	for _, c := range candidates {
		isAncestorOfAnother := false
		for _, other := range candidates {
			if c == other {
				continue
			}
			reachesOther := false
			if err := l.ops.Walk(ctx, other, func(visited ids.OperationID, _ *oplog.Operation) (bool, error) {
				if visited == c {
					reachesOther = true
					return false, nil
				}
				return true, nil
			}); err != nil {
				return ids.OperationID{}, err
			}
			if reachesOther {
				isAncestorOfAnother = true
				break
			}
		}
		if !isAncestorOfAnother {
			return c, nil
		}
	}
	return candidates[0], nil
}

// VisibleHeads computes the DAG tips of every commit this view currently
// makes reachable: local branch, tag, and working-copy targets, excluding
// the absent sentinel and reducing conflicted refs to all of their
// candidate commits (spec.md §3 View.head_ids, derived rather than stored
// separately since every contributing field is already tracked).
func (r *Repo) VisibleHeads(ctx context.Context) ([]ids.CommitID, error) {
	seen := make(map[ids.CommitID]bool)
	add := func(id ids.CommitID) {
		if id != (ids.CommitID{}) {
			seen[id] = true
		}
	}
	for _, t := range r.View.Branches {
		for _, c := range t.Adds {
			add(c)
		}
	}
	for _, t := range r.View.Tags {
		for _, c := range t.Adds {
			add(c)
		}
	}
	for _, c := range r.View.WorkingCopies {
		add(c)
	}
	candidates := make([]ids.CommitID, 0, len(seen))
	for c := range seen {
		candidates = append(candidates, c)
	}
	return r.Index.Heads(ctx, candidates)
}

// ResolveRef looks up name against branches then tags and returns its
// target merge (possibly conflicted). The second result is false if name is
// absent from both maps.
func (r *Repo) ResolveRef(name string) (refs.RefTarget, bool) {
	if t, ok := r.View.Branches[refs.ShortName(refs.Branch(name))]; ok {
		return t, true
	}
	if t, ok := r.View.Tags[refs.ShortName(refs.Tag(name))]; ok {
		return t, true
	}
	return merge.Merge[ids.CommitID]{}, false
}
