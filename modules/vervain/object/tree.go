// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// TreeEntry is one name/value pair of a Tree. Entries are ordered by name on
// encode (spec.md §3 says tree order is semantically irrelevant; the
// teacher's SubtreeOrder convention is kept purely for a stable byte
// encoding across runs).
type TreeEntry struct {
	Name  string
	Value TreeValue
}

// Tree maps name components to TreeValues (spec.md §3). Names are unique
// within a tree; order is not semantically significant.
type Tree struct {
	Entries []TreeEntry
}

// ErrDuplicateEntry is returned by Encode/Decode when two entries share a
// name — invariant 3 of a well-formed tree.
var ErrDuplicateEntry = errors.New("object: duplicate tree entry name")

// NewTree builds a Tree from a name->value map, sorting entries for a
// deterministic encoding.
func NewTree(entries map[string]TreeValue) *Tree {
	t := &Tree{Entries: make([]TreeEntry, 0, len(entries))}
	for name, v := range entries {
		t.Entries = append(t.Entries, TreeEntry{Name: name, Value: v})
	}
	t.sort()
	return t
}

func (t *Tree) sort() {
	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Name < t.Entries[j].Name })
}

// Get returns the value stored under name, or Absent and false.
func (t *Tree) Get(name string) (TreeValue, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Absent, false
}

// Names returns the sorted list of entry names.
func (t *Tree) Names() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(TreeMagic[:]); err != nil {
		return err
	}
	entries := append([]TreeEntry(nil), t.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	seen := make(map[string]bool, len(entries))
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(entries)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, e := range entries {
		if seen[e.Name] {
			return ErrDuplicateEntry
		}
		seen[e.Name] = true
		if err := encodeTreeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func encodeTreeEntry(w io.Writer, e TreeEntry) error {
	var nameLen [2]byte
	binary.BigEndian.PutUint16(nameLen[:], uint16(len(e.Name)))
	if _, err := w.Write(nameLen[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.Name); err != nil {
		return err
	}
	var header [2]byte
	header[0] = byte(e.Value.Kind)
	if e.Value.Executable {
		header[1] = 1
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(e.Value.ID[:])
	return err
}

func (t *Tree) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if magic != TreeMagic {
		return ErrUnsupportedObject
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(br, countBuf[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	entries := make([]TreeEntry, 0, count)
	seen := make(map[string]bool, count)
	for range count {
		e, err := decodeTreeEntry(br)
		if err != nil {
			return err
		}
		if seen[e.Name] {
			return ErrDuplicateEntry
		}
		seen[e.Name] = true
		entries = append(entries, e)
	}
	t.Entries = entries
	t.sort()
	return nil
}

func decodeTreeEntry(r io.Reader) (TreeEntry, error) {
	var nameLen [2]byte
	if _, err := io.ReadFull(r, nameLen[:]); err != nil {
		return TreeEntry{}, err
	}
	nameBuf := make([]byte, binary.BigEndian.Uint16(nameLen[:]))
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return TreeEntry{}, err
	}
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return TreeEntry{}, err
	}
	var id ids.ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return TreeEntry{}, err
	}
	return TreeEntry{
		Name: string(nameBuf),
		Value: TreeValue{
			Kind:       ValueKind(header[0]),
			Executable: header[1] != 0,
			ID:         id,
		},
	}, nil
}

// DecodeTree decodes a Tree from its encoded byte form.
func DecodeTree(b []byte) (*Tree, error) {
	t := &Tree{}
	if err := t.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("object: decode tree: %w", err)
	}
	return t, nil
}
