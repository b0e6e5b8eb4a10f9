// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"github.com/sirupsen/logrus"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/oplog"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
)

// zero is the absent-ref sentinel: substituting it for a missing map entry
// turns "this name isn't in the map" into a normal, valid Merge term, so
// Combine3Way's arithmetic (which assumes every side is a well-formed
// |adds|=|removes|+1 value) works uniformly whether or not a name existed
// on a given side. A result that Resolves to zero is, symmetrically, turned
// back into "absent" — the name is dropped from the merged map.
var zero ids.CommitID

func targetOrAbsent(m map[string]refs.RefTarget, name string) refs.RefTarget {
	if t, ok := m[name]; ok {
		return t
	}
	return merge.Normal(zero)
}

// mergeRefMap reconciles one of View's name->RefTarget maps (Branches or
// Tags) across two divergent sides against their common base, per spec.md
// §4.3: "combine A + B − C under Flatten+Simplify. A ref that resolves to a
// single CommitId is 'clean'; otherwise it is a 'conflicted ref'."
func mergeRefMap(base, a, b map[string]refs.RefTarget) map[string]refs.RefTarget {
	names := make(map[string]bool)
	for n := range base {
		names[n] = true
	}
	for n := range a {
		names[n] = true
	}
	for n := range b {
		names[n] = true
	}
	out := make(map[string]refs.RefTarget, len(names))
	for name := range names {
		combined := merge.Combine3Way(targetOrAbsent(a, name), targetOrAbsent(b, name), targetOrAbsent(base, name))
		if resolved, ok := combined.Resolve(); ok && resolved == zero {
			continue
		}
		out[name] = combined
	}
	return out
}

// mergeWorkingCopies applies the spec.md §4.3/§9 open-question default
// policy for a workspace moved two ways concurrently: if only one side
// changed it from the base, take that side; if both sides moved it to the
// same place, that's trivially not a conflict; if they moved it to
// different places, keep a's move (the "primary" side, i.e. the first
// operation passed to reconcile) and log the discarded move rather than
// inventing a conflict representation wc_commits has no room for.
func mergeWorkingCopies(log logrus.FieldLogger, base, a, b map[ids.WorkspaceID]ids.CommitID) map[ids.WorkspaceID]ids.CommitID {
	workspaces := make(map[ids.WorkspaceID]bool)
	for ws := range base {
		workspaces[ws] = true
	}
	for ws := range a {
		workspaces[ws] = true
	}
	for ws := range b {
		workspaces[ws] = true
	}
	out := make(map[ids.WorkspaceID]ids.CommitID, len(workspaces))
	for ws := range workspaces {
		baseC, bC, aC := base[ws], b[ws], a[ws]
		switch {
		case aC == bC:
			if aC != zero {
				out[ws] = aC
			}
		case aC == baseC:
			if bC != zero {
				out[ws] = bC
			}
		case bC == baseC:
			if aC != zero {
				out[ws] = aC
			}
		default:
			log.WithFields(logrus.Fields{
				"workspace": string(ws),
				"kept":      aC.String(),
				"dropped":   bC.String(),
			}).Warn("workspace commit moved two ways concurrently, keeping primary side")
			if aC != zero {
				out[ws] = aC
			}
		}
	}
	return out
}

// mergeRemotes reconciles View.Remotes the same way as branches/tags, per
// remote then per name, preserving whichever side's sync State the merged
// target actually matches (and falling back to Diverged when the merged
// target is a genuine conflict neither side's resolved target equals).
func mergeRemotes(base, a, b map[string]map[string]refs.RemoteRef) map[string]map[string]refs.RemoteRef {
	remoteNames := make(map[string]bool)
	for r := range base {
		remoteNames[r] = true
	}
	for r := range a {
		remoteNames[r] = true
	}
	for r := range b {
		remoteNames[r] = true
	}
	out := make(map[string]map[string]refs.RemoteRef, len(remoteNames))
	for remote := range remoteNames {
		names := make(map[string]bool)
		for n := range base[remote] {
			names[n] = true
		}
		for n := range a[remote] {
			names[n] = true
		}
		for n := range b[remote] {
			names[n] = true
		}
		byName := make(map[string]refs.RemoteRef, len(names))
		for name := range names {
			baseR, aR, bR := base[remote][name], a[remote][name], b[remote][name]
			combined := merge.Combine3Way(orAbsentTarget(aR), orAbsentTarget(bR), orAbsentTarget(baseR))
			resolved, ok := combined.Resolve()
			if ok && resolved == zero {
				continue
			}
			state := refs.RemoteRefSynced
			switch {
			case !ok:
				state = refs.RemoteRefDiverged
			case len(aR.Target.Adds) > 0 && aR.Target.Primary() == resolved:
				state = aR.State
			case len(bR.Target.Adds) > 0 && bR.Target.Primary() == resolved:
				state = bR.State
			}
			byName[name] = refs.RemoteRef{Target: combined, State: state}
		}
		if len(byName) > 0 {
			out[remote] = byName
		}
	}
	return out
}

func orAbsentTarget(rr refs.RemoteRef) refs.RefTarget {
	if len(rr.Target.Adds) == 0 {
		return merge.Normal(zero)
	}
	return rr.Target
}

// mergeViews computes the reconciled View for two op-heads that diverged
// from the same base view (spec.md §4.3 concurrent-op merge). git_refs is
// intentionally left as a (untouched) per the spec's explicit carve-out:
// "git_refs: never merged semantically across op-heads; each export/import
// updates them from the backing git repo's observed state" — this core has
// no git backend wired in, so the field is simply absent from View.
func mergeViews(base, a, b *oplog.View) (*oplog.View, error) {
	return &oplog.View{
		Branches:      mergeRefMap(base.Branches, a.Branches, b.Branches),
		Tags:          mergeRefMap(base.Tags, a.Tags, b.Tags),
		Remotes:       mergeRemotes(base.Remotes, a.Remotes, b.Remotes),
		WorkingCopies: mergeWorkingCopies(logrus.WithField("component", "repo"), base.WorkingCopies, a.WorkingCopies, b.WorkingCopies),
	}, nil
}
