// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/oplog"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
)

// MutableRepo is an in-memory editable copy of a View, opened from a base
// Repo and committed back as one new Operation (spec.md §4 "Transaction /
// MutableRepo"). All reads/writes to commits, trees, and conflict objects
// within the transaction go through the same backend.Database the base Repo
// uses, so anything written before Commit is visible to later reads inside
// the same transaction (spec.md §5 "read-your-writes").
type MutableRepo struct {
	base        *Repo
	view        *oplog.View
	description string
	startedAt   time.Time
	tags        map[string]string
	log         logrus.FieldLogger
}

// NewTransaction opens a MutableRepo atop base, cloning its View so
// mutation cannot alias the parent snapshot.
func (r *Repo) NewTransaction(description string) *MutableRepo {
	return &MutableRepo{
		base:        r,
		view:        r.View.Clone(),
		description: description,
		startedAt:   time.Now(),
		tags:        make(map[string]string),
		log:         logrus.WithFields(logrus.Fields{"component": "txn", "base_op": r.OpID.String()}),
	}
}

// View exposes the transaction's in-progress mutable view for read/write by
// higher-level operations (branch/tag/workspace commands, the rewrite
// engine).
func (t *MutableRepo) View() *oplog.View { return t.view }

// DB is the commit backend new commits/trees/conflicts are written to
// during this transaction; writes are immediately durable (content-
// addressed objects are never buffered in memory only), so a crash mid-
// transaction leaves at worst unreferenced orphan objects (spec.md §5).
func (t *MutableRepo) DB() *backend.Database { return t.base.DB }

// SetBranch points name at target (spec.md §4.3 View.local_branches),
// overwriting any previous target including a conflicted one.
func (t *MutableRepo) SetBranch(name string, target refs.RefTarget) {
	t.view.Branches[refs.ShortName(refs.Branch(name))] = target
}

// RemoveBranch deletes name — the "absent" RefTarget form is represented by
// the key's absence, not a stored empty merge (spec.md §3 RefTarget).
func (t *MutableRepo) RemoveBranch(name string) {
	delete(t.view.Branches, refs.ShortName(refs.Branch(name)))
}

// SetTag and RemoveTag mirror SetBranch/RemoveBranch for View.tags.
func (t *MutableRepo) SetTag(name string, target refs.RefTarget) {
	t.view.Tags[refs.ShortName(refs.Tag(name))] = target
}

func (t *MutableRepo) RemoveTag(name string) {
	delete(t.view.Tags, refs.ShortName(refs.Tag(name)))
}

// SetWorkingCopyCommit records which commit workspace ws has checked out
// (spec.md §3 invariant 6: this must happen atomically with the commit
// write that produced commitID, which callers satisfy by writing the
// commit via the same Database before calling this).
func (t *MutableRepo) SetWorkingCopyCommit(ws ids.WorkspaceID, commitID ids.CommitID) {
	t.view.WorkingCopies[ws] = commitID
}

// WorkingCopyCommit returns the commit currently checked out in ws.
func (t *MutableRepo) WorkingCopyCommit(ws ids.WorkspaceID) (ids.CommitID, bool) {
	c, ok := t.view.WorkingCopies[ws]
	return c, ok
}

// Tag attaches a free-form metadata tag to the Operation this transaction
// produces (spec.md §3 Operation.metadata.tags), e.g. the command line that
// triggered it.
func (t *MutableRepo) Tag(key, value string) { t.tags[key] = value }

// Commit writes the transaction's mutated View and a new Operation whose
// parent is the base Repo's operation, then atomically advances op-heads
// from base to the new operation (spec.md §4.3 steps 4-7). On success it
// returns a fresh Repo snapshot at the new operation.
//
// If op-heads moved out from under this transaction's base between Load and
// Commit (another writer committed first), Commit still succeeds: Advance
// adds the new head unconditionally and only best-effort removes the old
// one, so the next Load sees both heads and reconciles them per spec.md
// §4.3 step 7 — no lock, no retry, no lost write.
func (t *MutableRepo) Commit(ctx context.Context) (*Repo, error) {
	viewID, err := t.base.Ops.WriteView(ctx, t.view)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	op := &oplog.Operation{
		Parents:     []ids.OperationID{t.base.OpID},
		ViewID:      viewID,
		Description: t.description,
		Tags:        t.tags,
		StartMillis: t.startedAt.UnixMilli(),
		EndMillis:   now.UnixMilli(),
	}
	opID, err := t.base.Ops.WriteOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := t.base.OpHeads.Advance(t.base.OpID, opID); err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{"new_op": opID.String(), "description": t.description}).Info("transaction committed")
	return &Repo{
		DB:      t.base.DB,
		Ops:     t.base.Ops,
		OpHeads: t.base.OpHeads,
		Index:   t.base.Index,
		OpID:    opID,
		View:    t.view,
	}, nil
}
