// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object implements the commit/tree/conflict data model of
// spec.md §3: Commit, Tree, TreeValue, and Conflict, each encoded with a
// magic-prefixed binary format the way modules/zeta/object encodes commits
// and trees, and each addressed by the digest of its encoded bytes.
package object

import (
	"bytes"
	"errors"
	"io"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// ErrUnsupportedObject is returned by Decode when the magic prefix does not
// match any known object kind.
var ErrUnsupportedObject = errors.New("object: unsupported object type")

type Kind int8

const (
	InvalidKind Kind = iota
	CommitKind
	TreeKind
	ConflictKind
)

func (k Kind) String() string {
	switch k {
	case CommitKind:
		return "commit"
	case TreeKind:
		return "tree"
	case ConflictKind:
		return "conflict"
	default:
		return "invalid"
	}
}

// Magic prefixes, mirroring modules/zeta/object's {COMMIT,TREE}_MAGIC
// convention: two ASCII tag bytes plus a two-byte format version.
var (
	CommitMagic   = [4]byte{'V', 'C', 0x00, 0x01}
	TreeMagic     = [4]byte{'V', 'T', 0x00, 0x01}
	ConflictMagic = [4]byte{'V', 'F', 0x00, 0x01}
)

// Encoder is implemented by every stored object kind.
type Encoder interface {
	Encode(w io.Writer) error
}

// Decoder is implemented by every stored object kind.
type Decoder interface {
	Decode(r io.Reader) error
}

// Hash returns the content id of an encoded object: the digest of its
// encoded bytes, magic prefix included, so objects of different kinds never
// collide even on identical payloads.
func Hash(e Encoder) (ids.ID, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return ids.ID{}, err
	}
	return ids.Of(buf.Bytes()), nil
}

// ValueKind tags the union held by a TreeValue (spec.md §3 TreeValue).
type ValueKind int8

const (
	ValAbsent ValueKind = iota
	ValFile
	ValSymlink
	ValTree
	ValConflict
	ValGitSubmodule
)

func (k ValueKind) String() string {
	switch k {
	case ValAbsent:
		return "absent"
	case ValFile:
		return "file"
	case ValSymlink:
		return "symlink"
	case ValTree:
		return "tree"
	case ValConflict:
		return "conflict"
	case ValGitSubmodule:
		return "git-submodule"
	default:
		return "invalid"
	}
}

// TreeValue is the tagged union a Tree maps names to (spec.md §3):
// File{id,executable} | Symlink{id} | Tree{id} | Conflict{id} |
// GitSubmodule{id}. It is a plain comparable struct — no slices, no
// pointers — so merge.Merge[TreeValue]'s structural == gives exactly the
// equality rule spec.md §4.1 requires ("File equality requires both id and
// executable bit to match").
type TreeValue struct {
	Kind       ValueKind
	ID         ids.ID
	Executable bool
}

// Absent is the distinguished sentinel at the value level (spec.md §4.1).
var Absent = TreeValue{Kind: ValAbsent}

func (v TreeValue) IsAbsent() bool { return v.Kind == ValAbsent }

func FileValue(id ids.FileID, executable bool) TreeValue {
	return TreeValue{Kind: ValFile, ID: ids.ID(id), Executable: executable}
}

func SymlinkValue(id ids.SymlinkID) TreeValue {
	return TreeValue{Kind: ValSymlink, ID: ids.ID(id)}
}

func TreeValueOf(id ids.TreeID) TreeValue {
	return TreeValue{Kind: ValTree, ID: ids.ID(id)}
}

func ConflictValue(id ids.ConflictID) TreeValue {
	return TreeValue{Kind: ValConflict, ID: ids.ID(id)}
}

func SubmoduleValue(id ids.CommitID) TreeValue {
	return TreeValue{Kind: ValGitSubmodule, ID: ids.ID(id)}
}
