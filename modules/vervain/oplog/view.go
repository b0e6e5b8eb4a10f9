// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package oplog implements the operation log of spec.md §4.3: every mutation
// to repository state is recorded as a content-addressed Operation pointing
// at a content-addressed View (the full repo state after the mutation), the
// same append-only, hash-linked structure modules/zeta/reflog.Entry gives a
// single ref but generalized here to the whole repository's ref/workspace
// state at once.
package oplog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/refs"
	"github.com/vervain-vcs/vervain/modules/vervain/wire"
)

var ErrUnsupportedObject = fmt.Errorf("oplog: unsupported object type")

var ViewMagic = [4]byte{'V', 'V', 0x00, 0x01}
var OperationMagic = [4]byte{'V', 'O', 0x00, 0x01}

// View is the full mutable state of a repository at one point in its
// operation history: every local branch and tag, every remote-tracking ref,
// and every workspace's checked-out commit (spec.md §3 View). Branch and tag
// targets are refs.RefTarget so a concurrently-moved ref can be represented
// as a conflict inside the View instead of forcing one operation to lose.
type View struct {
	Branches      map[string]refs.RefTarget
	Tags          map[string]refs.RefTarget
	Remotes       map[string]map[string]refs.RemoteRef
	WorkingCopies map[ids.WorkspaceID]ids.CommitID
}

// NewView returns an empty view: no branches, no tags, no workspaces.
func NewView() *View {
	return &View{
		Branches:      make(map[string]refs.RefTarget),
		Tags:          make(map[string]refs.RefTarget),
		Remotes:       make(map[string]map[string]refs.RemoteRef),
		WorkingCopies: make(map[ids.WorkspaceID]ids.CommitID),
	}
}

// Clone deep-copies v so a caller can mutate the copy without aliasing the
// original (every Transaction starts from a clone of the parent View).
func (v *View) Clone() *View {
	out := NewView()
	for k, t := range v.Branches {
		out.Branches[k] = t.Clone()
	}
	for k, t := range v.Tags {
		out.Tags[k] = t.Clone()
	}
	for remote, byName := range v.Remotes {
		clone := make(map[string]refs.RemoteRef, len(byName))
		for name, rr := range byName {
			clone[name] = refs.RemoteRef{Target: rr.Target.Clone(), State: rr.State}
		}
		out.Remotes[remote] = clone
	}
	for ws, c := range v.WorkingCopies {
		out.WorkingCopies[ws] = c
	}
	return out
}

func (v *View) Encode(w io.Writer) error {
	if _, err := w.Write(ViewMagic[:]); err != nil {
		return err
	}
	if err := encodeRefMap(w, v.Branches); err != nil {
		return err
	}
	if err := encodeRefMap(w, v.Tags); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(len(v.Remotes))); err != nil {
		return err
	}
	remoteNames := make([]string, 0, len(v.Remotes))
	for remote := range v.Remotes {
		remoteNames = append(remoteNames, remote)
	}
	sort.Strings(remoteNames)
	for _, remote := range remoteNames {
		byName := v.Remotes[remote]
		if err := wire.WriteString(w, remote); err != nil {
			return err
		}
		if err := wire.WriteUint32(w, uint32(len(byName))); err != nil {
			return err
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rr := byName[name]
			if err := wire.WriteString(w, name); err != nil {
				return err
			}
			if err := encodeRefTarget(w, rr.Target); err != nil {
				return err
			}
			if err := wire.WriteUint32(w, uint32(rr.State)); err != nil {
				return err
			}
		}
	}
	if err := wire.WriteUint32(w, uint32(len(v.WorkingCopies))); err != nil {
		return err
	}
	workspaces := make([]ids.WorkspaceID, 0, len(v.WorkingCopies))
	for ws := range v.WorkingCopies {
		workspaces = append(workspaces, ws)
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i] < workspaces[j] })
	for _, ws := range workspaces {
		if err := wire.WriteString(w, string(ws)); err != nil {
			return err
		}
		if _, err := w.Write(ids.ID(v.WorkingCopies[ws]).Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func encodeRefTarget(w io.Writer, t refs.RefTarget) error {
	adds := make([]ids.ID, len(t.Adds))
	for i, v := range t.Adds {
		adds[i] = ids.ID(v)
	}
	removes := make([]ids.ID, len(t.Removes))
	for i, v := range t.Removes {
		removes[i] = ids.ID(v)
	}
	if err := wire.WriteIDList(w, adds); err != nil {
		return err
	}
	return wire.WriteIDList(w, removes)
}

func decodeRefTarget(r io.Reader) (refs.RefTarget, error) {
	adds, err := wire.ReadIDList(r)
	if err != nil {
		return refs.RefTarget{}, err
	}
	removes, err := wire.ReadIDList(r)
	if err != nil {
		return refs.RefTarget{}, err
	}
	addIDs := make([]ids.CommitID, len(adds))
	for i, v := range adds {
		addIDs[i] = ids.CommitID(v)
	}
	var removeIDs []ids.CommitID
	if len(removes) > 0 {
		removeIDs = make([]ids.CommitID, len(removes))
	}
	for i, v := range removes {
		removeIDs[i] = ids.CommitID(v)
	}
	t := merge.Merge[ids.CommitID]{Adds: addIDs, Removes: removeIDs}
	return t, t.Check()
}

func encodeRefMap(w io.Writer, m map[string]refs.RefTarget) error {
	if err := wire.WriteUint32(w, uint32(len(m))); err != nil {
		return err
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := wire.WriteString(w, name); err != nil {
			return err
		}
		if err := encodeRefTarget(w, m[name]); err != nil {
			return err
		}
	}
	return nil
}

func decodeRefMap(r io.Reader) (map[string]refs.RefTarget, error) {
	n, err := wire.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]refs.RefTarget, n)
	for i := uint32(0); i < n; i++ {
		name, err := wire.ReadString(r)
		if err != nil {
			return nil, err
		}
		target, err := decodeRefTarget(r)
		if err != nil {
			return nil, err
		}
		m[name] = target
	}
	return m, nil
}

func (v *View) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if magic != ViewMagic {
		return ErrUnsupportedObject
	}
	branches, err := decodeRefMap(br)
	if err != nil {
		return err
	}
	tags, err := decodeRefMap(br)
	if err != nil {
		return err
	}
	numRemotes, err := wire.ReadUint32(br)
	if err != nil {
		return err
	}
	remotes := make(map[string]map[string]refs.RemoteRef, numRemotes)
	for i := uint32(0); i < numRemotes; i++ {
		remote, err := wire.ReadString(br)
		if err != nil {
			return err
		}
		numNames, err := wire.ReadUint32(br)
		if err != nil {
			return err
		}
		byName := make(map[string]refs.RemoteRef, numNames)
		for j := uint32(0); j < numNames; j++ {
			name, err := wire.ReadString(br)
			if err != nil {
				return err
			}
			target, err := decodeRefTarget(br)
			if err != nil {
				return err
			}
			state, err := wire.ReadUint32(br)
			if err != nil {
				return err
			}
			byName[name] = refs.RemoteRef{Target: target, State: refs.RemoteRefState(state)}
		}
		remotes[remote] = byName
	}
	numWorkspaces, err := wire.ReadUint32(br)
	if err != nil {
		return err
	}
	workingCopies := make(map[ids.WorkspaceID]ids.CommitID, numWorkspaces)
	for i := uint32(0); i < numWorkspaces; i++ {
		ws, err := wire.ReadString(br)
		if err != nil {
			return err
		}
		var id ids.ID
		if _, err := io.ReadFull(br, id[:]); err != nil {
			return err
		}
		workingCopies[ids.WorkspaceID(ws)] = ids.CommitID(id)
	}
	v.Branches = branches
	v.Tags = tags
	v.Remotes = remotes
	v.WorkingCopies = workingCopies
	return nil
}

// DecodeView decodes a View from its encoded byte form.
func DecodeView(b []byte) (*View, error) {
	v := &View{}
	if err := v.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("oplog: decode view: %w", err)
	}
	return v, nil
}
