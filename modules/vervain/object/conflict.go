// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/merge"
	"github.com/vervain-vcs/vervain/modules/vervain/wire"
)

// Conflict is the stored object form of a merge.Merge[TreeValue]: a tree
// entry whose value did not resolve to a single TreeValue gets a
// ValConflict entry pointing at one of these (spec.md §3, §4.2 rule 2 "a
// tree-level conflict is materialized as a Conflict object referenced by
// the containing tree's entry, not inlined"). It is validated at
// construction per merge.Merge.Check's contract: no Conflict is ever
// constructed or decoded in a malformed state.
type Conflict struct {
	merge.Merge[TreeValue]
}

// NewConflict validates m and wraps it. Returns verr.ErrMergeConflictUnmergeable
// (via m.Check) if m is not a well-formed alternating merge.
func NewConflict(m merge.Merge[TreeValue]) (*Conflict, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &Conflict{Merge: m}, nil
}

func (c *Conflict) Encode(w io.Writer) error {
	if err := c.Check(); err != nil {
		return err
	}
	if _, err := w.Write(ConflictMagic[:]); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(len(c.Adds))); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(len(c.Removes))); err != nil {
		return err
	}
	for _, v := range c.Adds {
		if err := encodeTreeValue(w, v); err != nil {
			return err
		}
	}
	for _, v := range c.Removes {
		if err := encodeTreeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeTreeValue(w io.Writer, v TreeValue) error {
	var header [2]byte
	header[0] = byte(v.Kind)
	if v.Executable {
		header[1] = 1
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(v.ID[:])
	return err
}

func decodeTreeValue(r io.Reader) (TreeValue, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return TreeValue{}, err
	}
	var id ids.ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return TreeValue{}, err
	}
	return TreeValue{Kind: ValueKind(header[0]), Executable: header[1] != 0, ID: id}, nil
}

func (c *Conflict) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if magic != ConflictMagic {
		return ErrUnsupportedObject
	}
	numAdds, err := wire.ReadUint32(br)
	if err != nil {
		return err
	}
	numRemoves, err := wire.ReadUint32(br)
	if err != nil {
		return err
	}
	adds := make([]TreeValue, numAdds)
	for i := range adds {
		v, err := decodeTreeValue(br)
		if err != nil {
			return err
		}
		adds[i] = v
	}
	removes := make([]TreeValue, numRemoves)
	for i := range removes {
		v, err := decodeTreeValue(br)
		if err != nil {
			return err
		}
		removes[i] = v
	}
	m := merge.Merge[TreeValue]{Adds: adds, Removes: removes}
	if err := m.Check(); err != nil {
		return err
	}
	c.Merge = m
	return nil
}

// DecodeConflict decodes a Conflict from its encoded byte form.
func DecodeConflict(b []byte) (*Conflict, error) {
	c := &Conflict{}
	if err := c.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("object: decode conflict: %w", err)
	}
	return c, nil
}
