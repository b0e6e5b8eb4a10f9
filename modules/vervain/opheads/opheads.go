// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package opheads implements the op-heads protocol of spec.md §4.3/§6: the
// set of "current" operations is the set of files present in a directory,
// one empty file per head operation id. Advancing from one operation to the
// next is an atomic create of the new head's file followed by a best-effort
// remove of the old one — the same create-then-rename-into-place shape
// modules/zeta/refs/filesystem.go's ReferenceUpdate uses for a single ref,
// generalized here to a set of concurrently-advanceable pointers instead of
// one CAS'd value. When two processes advance from the same parent at once,
// both new files survive and the directory briefly holds more than one head;
// the repo layer reconciles that into a single merged operation.
package opheads

import (
	"os"
	"path/filepath"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Store manages the op-heads directory.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) an op-heads directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, verr.Backend("opheads: mkdir", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id ids.OperationID) string {
	return filepath.Join(s.dir, ids.ID(id).String())
}

// Add atomically marks id as a current head. It is not an error for id to
// already be a head (the create is idempotent at the filesystem level).
func (s *Store) Add(id ids.OperationID) error {
	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return verr.Backend("opheads: add", err)
	}
	return f.Close()
}

// Remove un-marks id as a head. It is not an error for id to already be
// absent — a concurrent Advance may have removed it first.
func (s *Store) Remove(id ids.OperationID) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return verr.Backend("opheads: remove", err)
	}
	return nil
}

// Advance is the common single-parent case: add newHead, then remove
// oldHead. Called after the caller has already durably written newHead's
// Operation object, so a crash between the two filesystem calls at worst
// leaves both oldHead and newHead as heads, which List/the repo's
// reconciliation logic treats as a concurrent-operation situation to merge,
// never as data loss.
func (s *Store) Advance(oldHead, newHead ids.OperationID) error {
	if err := s.Add(newHead); err != nil {
		return err
	}
	return s.Remove(oldHead)
}

// List returns every current head operation id.
func (s *Store) List() ([]ids.OperationID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, verr.Backend("opheads: list", err)
	}
	heads := make([]ids.OperationID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		heads = append(heads, ids.OperationID(ids.FromHex(e.Name())))
	}
	return heads, nil
}
