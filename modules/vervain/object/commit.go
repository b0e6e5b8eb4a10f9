// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/wire"
)

// Signature records who made a change and when, mirroring
// modules/zeta/object.Signature but storing millis-since-epoch and a tz
// offset in minutes exactly as spec.md §3 specifies.
type Signature struct {
	Name             string
	Email            string
	MillisSinceEpoch int64
	TZOffsetMinutes  int
}

func NewSignature(name, email string, when time.Time) Signature {
	_, offsetSeconds := when.Zone()
	return Signature{
		Name:             name,
		Email:            email,
		MillisSinceEpoch: when.UnixMilli(),
		TZOffsetMinutes:  offsetSeconds / 60,
	}
}

func (s Signature) Time() time.Time {
	loc := time.FixedZone("", s.TZOffsetMinutes*60)
	return time.UnixMilli(s.MillisSinceEpoch).In(loc)
}

func (s Signature) encode(w io.Writer) error {
	if err := wire.WriteString(w, s.Name); err != nil {
		return err
	}
	if err := wire.WriteString(w, s.Email); err != nil {
		return err
	}
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(s.MillisSinceEpoch))
	binary.BigEndian.PutUint32(buf[8:], uint32(int32(s.TZOffsetMinutes)))
	_, err := w.Write(buf[:])
	return err
}

func decodeSignature(r io.Reader) (Signature, error) {
	name, err := wire.ReadString(r)
	if err != nil {
		return Signature{}, err
	}
	email, err := wire.ReadString(r)
	if err != nil {
		return Signature{}, err
	}
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Signature{}, err
	}
	return Signature{
		Name:             name,
		Email:            email,
		MillisSinceEpoch: int64(binary.BigEndian.Uint64(buf[:8])),
		TZOffsetMinutes:  int(int32(binary.BigEndian.Uint32(buf[8:]))),
	}, nil
}

// Commit is the content-addressed commit record of spec.md §3. RootTree
// holds either a single resolved TreeID or an odd-length alternating merge
// of TreeIDs — represented here as parallel Adds/Removes slices so the
// encoding carries conflicted root trees without a separate "is this
// conflicted" flag (len(RootTreeRemoves) > 0 says so on its own).
type Commit struct {
	Parents         []ids.CommitID
	Predecessors    []ids.CommitID
	RootTreeAdds    []ids.TreeID
	RootTreeRemoves []ids.TreeID
	ChangeID        ids.ChangeID
	Description     string
	Author          Signature
	Committer       Signature
}

// RootTree returns the resolved root tree id, or false if RootTree is
// conflicted (len(RootTreeAdds) > 1).
func (c *Commit) RootTree() (ids.TreeID, bool) {
	if len(c.RootTreeAdds) == 1 && len(c.RootTreeRemoves) == 0 {
		return c.RootTreeAdds[0], true
	}
	var zero ids.TreeID
	return zero, false
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(CommitMagic[:]); err != nil {
		return err
	}
	if err := wire.WriteIDList(w, idsCommitToIDs(c.Parents)); err != nil {
		return err
	}
	if err := wire.WriteIDList(w, idsCommitToIDs(c.Predecessors)); err != nil {
		return err
	}
	if err := wire.WriteIDList(w, idsTreeToIDs(c.RootTreeAdds)); err != nil {
		return err
	}
	if err := wire.WriteIDList(w, idsTreeToIDs(c.RootTreeRemoves)); err != nil {
		return err
	}
	if _, err := w.Write(c.ChangeID[:]); err != nil {
		return err
	}
	if err := wire.WriteString(w, c.Description); err != nil {
		return err
	}
	if err := c.Author.encode(w); err != nil {
		return err
	}
	return c.Committer.encode(w)
}

func (c *Commit) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if magic != CommitMagic {
		return ErrUnsupportedObject
	}
	parents, err := wire.ReadIDList(br)
	if err != nil {
		return err
	}
	preds, err := wire.ReadIDList(br)
	if err != nil {
		return err
	}
	adds, err := wire.ReadIDList(br)
	if err != nil {
		return err
	}
	removes, err := wire.ReadIDList(br)
	if err != nil {
		return err
	}
	var changeID ids.ChangeID
	if _, err := io.ReadFull(br, changeID[:]); err != nil {
		return err
	}
	desc, err := wire.ReadString(br)
	if err != nil {
		return err
	}
	author, err := decodeSignature(br)
	if err != nil {
		return err
	}
	committer, err := decodeSignature(br)
	if err != nil {
		return err
	}
	c.Parents = idsToCommitIDs(parents)
	c.Predecessors = idsToCommitIDs(preds)
	c.RootTreeAdds = idsToTreeIDs(adds)
	c.RootTreeRemoves = idsToTreeIDs(removes)
	c.ChangeID = changeID
	c.Description = desc
	c.Author = author
	c.Committer = committer
	return nil
}

// DecodeCommit decodes a Commit from its encoded byte form.
func DecodeCommit(b []byte) (*Commit, error) {
	c := &Commit{}
	if err := c.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("object: decode commit: %w", err)
	}
	return c, nil
}

// --- id-list <-> typed-id-list conversions ---

func idsCommitToIDs(list []ids.CommitID) []ids.ID {
	out := make([]ids.ID, len(list))
	for i, v := range list {
		out[i] = ids.ID(v)
	}
	return out
}

func idsToCommitIDs(list []ids.ID) []ids.CommitID {
	out := make([]ids.CommitID, len(list))
	for i, v := range list {
		out[i] = ids.CommitID(v)
	}
	return out
}

func idsTreeToIDs(list []ids.TreeID) []ids.ID {
	out := make([]ids.ID, len(list))
	for i, v := range list {
		out[i] = ids.ID(v)
	}
	return out
}

func idsToTreeIDs(list []ids.ID) []ids.TreeID {
	out := make([]ids.TreeID, len(list))
	for i, v := range list {
		out[i] = ids.TreeID(v)
	}
	return out
}
