// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/oplog"
)

// RestoreView returns the View a "restore to operation target" command
// would commit: target's view verbatim. spec.md §4.3 "op restore(op):
// produce a new operation whose view equals the view at op except fields
// explicitly preserved by policy (e.g. git_refs are not rolled back)."
// This core tracks no git_refs field (no git backend is wired in here), so
// there is nothing to preserve and restore is a pure view copy; a caller
// building on a git-backed commit backend is the one meant to apply that
// carve-out, by copying its current git_refs back in after calling this.
func RestoreView(ctx context.Context, ops *oplog.Store, target ids.OperationID) (*oplog.View, error) {
	op, err := ops.ReadOperation(ctx, target)
	if err != nil {
		return nil, err
	}
	return ops.ReadView(ctx, op.ViewID)
}

// UndoView computes the view "op undo(target)" would commit: the current
// view with target's observable effect inverted (spec.md §4.3: "a new
// operation whose view equals current_view + ancestor(op) − view(op) under
// the per-field algebra"). ancestor is target's own first parent's view —
// the state immediately before target ran — so subtracting target and
// adding ancestor cancels exactly what target changed, field by field, via
// the same Combine3Way(a, b, base) arithmetic mergeViews uses for
// concurrent-op reconciliation: here a=current, b=ancestor, base=target.
func UndoView(ctx context.Context, ops *oplog.Store, current *oplog.View, target ids.OperationID) (*oplog.View, error) {
	targetOp, err := ops.ReadOperation(ctx, target)
	if err != nil {
		return nil, err
	}
	targetView, err := ops.ReadView(ctx, targetOp.ViewID)
	if err != nil {
		return nil, err
	}
	var ancestorView *oplog.View
	if len(targetOp.Parents) == 0 {
		ancestorView = oplog.NewView()
	} else {
		ancestorOp, err := ops.ReadOperation(ctx, targetOp.Parents[0])
		if err != nil {
			return nil, err
		}
		ancestorView, err = ops.ReadView(ctx, ancestorOp.ViewID)
		if err != nil {
			return nil, err
		}
	}
	return &oplog.View{
		Branches:      mergeRefMap(targetView.Branches, current.Branches, ancestorView.Branches),
		Tags:          mergeRefMap(targetView.Tags, current.Tags, ancestorView.Tags),
		Remotes:       mergeRemotes(targetView.Remotes, current.Remotes, ancestorView.Remotes),
		WorkingCopies: mergeWorkingCopies(logrus.WithField("component", "repo"), targetView.WorkingCopies, current.WorkingCopies, ancestorView.WorkingCopies),
	}, nil
}
