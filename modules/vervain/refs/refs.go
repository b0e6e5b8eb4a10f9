// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package refs names the mutable pointers a View tracks (spec.md §4.3):
// local branches and tags are RefTarget, an alternating merge of commit ids
// that MAY itself be conflicted (a branch moved two ways by concurrent
// operations is represented, not rejected). Remote-tracking refs pair a
// RefTarget with a sync state. Short-name resolution follows the same
// ordered-prefix-rule approach as modules/zeta/refs/rules.go.
package refs

import (
	"strings"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
)

// RefTarget is the value a branch or tag name maps to: ordinarily a single
// commit id, but a conflicted alternating merge of commit ids when
// concurrent operations moved it in incompatible ways (spec.md §4.3).
type RefTarget = merge.Merge[ids.CommitID]

const (
	BranchPrefix = "refs/heads/"
	TagPrefix    = "refs/tags/"
	RemotePrefix = "refs/remotes/"
)

// Name is a fully qualified reference name, e.g. "refs/heads/main".
type Name string

func Branch(shortName string) Name { return Name(BranchPrefix + shortName) }
func Tag(shortName string) Name    { return Name(TagPrefix + shortName) }
func Remote(remote, shortName string) Name {
	return Name(RemotePrefix + remote + "/" + shortName)
}

func (n Name) IsBranch() bool { return strings.HasPrefix(string(n), BranchPrefix) }
func (n Name) IsTag() bool    { return strings.HasPrefix(string(n), TagPrefix) }
func (n Name) IsRemote() bool { return strings.HasPrefix(string(n), RemotePrefix) }

// RemoteRefState records whether a remote-tracking ref is believed to be in
// sync with what the remote last reported.
type RemoteRefState int8

const (
	RemoteRefSynced RemoteRefState = iota
	RemoteRefAhead
	RemoteRefBehind
	RemoteRefDiverged
)

// RemoteRef pairs a remote-tracking ref's target with its sync state
// (spec.md §3 RemoteRef).
type RemoteRef struct {
	Target RefTarget
	State  RemoteRefState
}

// rule mirrors modules/zeta/refs.Rule: a prefix/suffix pair used both to
// build a fully qualified name from a short one and to recover a short name
// from a qualified one.
type rule struct {
	prefix string
	suffix string
}

func (r rule) shortName(name string) (string, bool) {
	if !strings.HasPrefix(name, r.prefix) || !strings.HasSuffix(name, r.suffix) {
		return "", false
	}
	return strings.TrimSuffix(name[len(r.prefix):], r.suffix), true
}

// shortNameRules is tried in order, the way git's shorten_unambiguous_ref
// and modules/zeta/refs.RefRevParseRules do: an unqualified name passes
// through unchanged, then tags, then branches, then remotes.
var shortNameRules = []rule{
	{},
	{prefix: "refs/"},
	{prefix: TagPrefix},
	{prefix: BranchPrefix},
	{prefix: RemotePrefix},
}

// ShortName returns the most specific short form of a fully qualified
// reference name, e.g. "refs/heads/main" -> "main". Returns name unchanged
// if none of the rules recognize its shape.
func ShortName(name Name) string {
	best := string(name)
	for _, r := range shortNameRules {
		if short, ok := r.shortName(string(name)); ok {
			best = short
		}
	}
	return best
}
