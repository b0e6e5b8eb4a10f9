// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package workingcopy implements the working-copy contract of spec.md §4.6:
// the working copy is itself a commit, snapshotted on command entry and
// checked out on command exit, rather than a separately-tracked index/stage
// area. It plays the role pkg/zeta.Worktree's snapshot/checkout pair does
// for the teacher, generalized from a single on-disk git-style index to any
// backing store (disk, memory) behind one small interface, and from
// git filemodes to the three vervain.object.ValueKind file shapes.
package workingcopy

import (
	"context"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// Matcher governs which paths are materialised/observed in a workspace —
// the "sparse-pattern hook" of spec.md §4.6. A nil Matcher matches every
// path.
type Matcher interface {
	Matches(path string) bool
}

// AllMatcher is the default Matcher: every path is part of the sparse set.
type AllMatcher struct{}

func (AllMatcher) Matches(string) bool { return true }

// WorkingCopy is the contract every workspace backend (local disk, memory,
// or anything else the core is built on top of) must satisfy. Implementations
// own their files; the core never reads or writes them except through these
// two calls (spec.md §5 "Working-copy files are owned by a single workspace
// and MUST NOT be touched by the core except through the working-copy
// contract").
type WorkingCopy interface {
	// Workspace reports which workspace this instance manages.
	Workspace() ids.WorkspaceID

	// Snapshot observes the current on-disk state and returns its tree id.
	// If nothing changed since expectedTreeID was checked out, it returns
	// expectedTreeID unchanged without writing any new objects (spec.md §4.6,
	// §8 scenario 5 idempotence). Otherwise it writes new file/tree objects
	// for whatever changed and returns the new root tree id. Calling Snapshot
	// twice in a row with no intervening on-disk change is always safe and
	// always returns the same id both times.
	Snapshot(ctx context.Context, expectedTreeID ids.TreeID) (ids.TreeID, error)

	// Checkout updates on-disk state to match targetTreeID. expectedTreeID is
	// the caller's belief about what is currently checked out (normally the
	// View's wc_commits entry for this workspace); if the on-disk state's
	// actual last-recorded tree does not match it, Checkout returns
	// verr.StaleWorkingCopy instead of silently overwriting whatever the
	// workspace owner did out from under the core (spec.md §4.6, §7).
	Checkout(ctx context.Context, expectedTreeID, targetTreeID ids.TreeID) error

	// Matcher returns the sparse-pattern matcher currently in effect; unset
	// defaults to AllMatcher{}.
	Matcher() Matcher

	// SetMatcher installs a new sparse-pattern matcher. A later Snapshot or
	// Checkout observes/materialises only paths it matches.
	SetMatcher(m Matcher)
}

var (
	_ WorkingCopy = (*Memory)(nil)
	_ WorkingCopy = (*Local)(nil)
)
