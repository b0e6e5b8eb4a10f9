// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"context"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Abandon builds the directly-rewritten Map entry for abandoning commit id:
// every child of id gets id's parents spliced into its own parent list in
// id's place (spec.md §4.4 "abandon(commit): each child's parent list has
// commit replaced by commit's own parents"). Abandon never writes any
// commit itself; it returns id together with id's parents, which is the
// splice-table entry SpliceParents takes.
//
// The common case is a single-parent commit: its one child simply gets that
// parent in id's place, same arity. A merge commit (more than one parent)
// abandoned this way grows its children's parent lists by splicing in all
// of its own parents, which is the one place spec.md leaves the resulting
// tree algebra genuinely open (§9): this core's policy is to splice
// positionally (id's slot is replaced in place by id's parents, in their
// existing order) via SpliceParents. RebaseDescendants takes no splice
// table: it maps each stored parent one-for-one through its Map, so it never
// changes a child's number of parents.
func Abandon(ctx context.Context, db *backend.Database, id ids.CommitID) (ids.CommitID, []ids.CommitID, error) {
	root, err := db.RootCommitID(ctx)
	if err != nil {
		return ids.CommitID{}, nil, err
	}
	if id == root {
		return ids.CommitID{}, nil, verr.ErrRewriteRootDisallowed
	}
	c, err := db.ReadCommit(ctx, id)
	if err != nil {
		return ids.CommitID{}, nil, err
	}
	if len(c.Parents) == 0 {
		return ids.CommitID{}, nil, verr.ErrRewriteRootDisallowed
	}
	return id, c.Parents, nil
}

// SpliceParents expands oldParents into newParents by replacing any
// occurrence of an abandoned id with its own parents (the splice table
// Abandon produces), preserving order. It is applied to a child's parent
// list before RebaseDescendants sees it, since RebaseDescendants' mapParents
// assumes a 1:1 old->new correspondence and cannot itself change arity.
func SpliceParents(oldParents []ids.CommitID, splices map[ids.CommitID][]ids.CommitID) []ids.CommitID {
	out := make([]ids.CommitID, 0, len(oldParents))
	for _, p := range oldParents {
		if replacement, ok := splices[p]; ok {
			out = append(out, replacement...)
		} else {
			out = append(out, p)
		}
	}
	return out
}
