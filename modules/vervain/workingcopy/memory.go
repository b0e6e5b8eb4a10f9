// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package workingcopy

import (
	"context"
	"sort"

	"github.com/vervain-vcs/vervain/modules/vervain/backend"
	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// file is one in-memory file, addressable by path.
type file struct {
	content    []byte
	executable bool
}

// Memory is an in-memory WorkingCopy, standing in for an on-disk workspace
// in tests the way the teacher's in-memory odb/vfs fakes stand in for a real
// repository (modules/zeta/odb_test.go and friends). It has no real
// filesystem at all: a caller mutates the files map directly between
// Snapshot/Checkout calls to simulate "the user edited a file."
type Memory struct {
	db       *backend.Database
	ws       ids.WorkspaceID
	files    map[string]*file
	lastTree ids.TreeID
	matcher  Matcher
}

func NewMemory(db *backend.Database, ws ids.WorkspaceID) *Memory {
	return &Memory{db: db, ws: ws, files: make(map[string]*file), matcher: AllMatcher{}}
}

func (m *Memory) Workspace() ids.WorkspaceID { return m.ws }
func (m *Memory) Matcher() Matcher           { return m.matcher }

func (m *Memory) SetMatcher(mm Matcher) {
	if mm == nil {
		mm = AllMatcher{}
	}
	m.matcher = mm
}

// WriteFile sets (or creates) a file's content directly, simulating an
// external edit between two Snapshot calls. Test-only helper: a real
// workspace backend has no such method, since writes only happen via
// Checkout (or outside the working-copy contract entirely, per spec.md §5).
func (m *Memory) WriteFile(path string, content []byte, executable bool) {
	m.files[path] = &file{content: append([]byte(nil), content...), executable: executable}
}

// RemoveFile simulates an external delete.
func (m *Memory) RemoveFile(path string) { delete(m.files, path) }

// Snapshot implements WorkingCopy.Snapshot (spec.md §4.6): builds the tree
// that reflects m.files under the active matcher and compares it, by
// content rather than identity, against what expectedTreeID currently
// contains. Nothing changed ⇒ returns expectedTreeID untouched (no object
// written); the teacher's equivalent is diffStagingWithWorktree returning no
// changes (pkg/zeta/worktree.go containsUnstagedChanges).
func (m *Memory) Snapshot(ctx context.Context, expectedTreeID ids.TreeID) (ids.TreeID, error) {
	newID, err := m.buildTree(ctx)
	if err != nil {
		return ids.TreeID{}, err
	}
	if newID == expectedTreeID {
		m.lastTree = expectedTreeID
		return expectedTreeID, nil
	}
	m.lastTree = newID
	return newID, nil
}

// Checkout implements WorkingCopy.Checkout (spec.md §4.6): refuses to
// proceed if the caller's belief about the currently checked-out tree
// doesn't match what this instance last observed/materialised, then
// replaces m.files wholesale with targetTreeID's contents.
func (m *Memory) Checkout(ctx context.Context, expectedTreeID, targetTreeID ids.TreeID) error {
	if m.lastTree != (ids.TreeID{}) && m.lastTree != expectedTreeID {
		return verr.Stale(expectedTreeID.String(), m.lastTree.String())
	}
	files := make(map[string]*file)
	if err := m.materialize(ctx, targetTreeID, "", files); err != nil {
		return err
	}
	m.files = files
	m.lastTree = targetTreeID
	return nil
}

func (m *Memory) materialize(ctx context.Context, treeID ids.TreeID, prefix string, out map[string]*file) error {
	t, err := m.db.ReadTree(ctx, treeID)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		path := joinPath(prefix, e.Name)
		if !m.matcher.Matches(path) {
			continue
		}
		switch e.Value.Kind {
		case object.ValTree:
			if err := m.materialize(ctx, ids.TreeID(e.Value.ID), path, out); err != nil {
				return err
			}
		case object.ValFile:
			content, err := m.db.ReadFile(ctx, ids.FileID(e.Value.ID))
			if err != nil {
				return err
			}
			out[path] = &file{content: content, executable: e.Value.Executable}
		default:
			// Symlinks, conflicts, and submodules are observed but not
			// reproduced in this in-memory stand-in; real workspace
			// backends materialise them per their kind.
		}
	}
	return nil
}

func (m *Memory) buildTree(ctx context.Context) (ids.TreeID, error) {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		if m.matcher.Matches(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return m.buildTreeFrom(ctx, paths)
}

// buildTreeFrom groups a flat, sorted path list into a nested Tree,
// recursing one directory level per "/" component, mirroring the way
// spec.md §3 trees nest (ValTree entries pointing at child Tree objects)
// rather than storing full paths flat.
func (m *Memory) buildTreeFrom(ctx context.Context, paths []string) (ids.TreeID, error) {
	entries := make(map[string]object.TreeValue)
	groups := make(map[string][]string)
	var order []string
	for _, p := range paths {
		head, rest, isDir := splitPath(p)
		if !isDir {
			f := m.files[head]
			fileID, err := m.db.WriteFile(ctx, f.content)
			if err != nil {
				return ids.TreeID{}, err
			}
			entries[head] = object.FileValue(fileID, f.executable)
			continue
		}
		if _, ok := groups[head]; !ok {
			order = append(order, head)
		}
		groups[head] = append(groups[head], rest)
	}
	for _, name := range order {
		childID, err := m.buildTreeFrom(ctx, groups[name])
		if err != nil {
			return ids.TreeID{}, err
		}
		entries[name] = object.TreeValueOf(childID)
	}
	return m.db.WriteTree(ctx, object.NewTree(entries))
}

func splitPath(p string) (head, rest string, isDir bool) {
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i], p[i+1:], true
		}
	}
	return p, "", false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
