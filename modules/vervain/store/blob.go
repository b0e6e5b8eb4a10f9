// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package store defines the Blob contract backing the pluggable storage
// backends of spec.md §6 (local filesystem, in-memory, GCS, S3), mirroring
// modules/zeta/backend/storage.Storage's Open/Exists/Close shape but keyed
// on ids.ID instead of plumbing.Hash.
package store

import (
	"context"
	"io"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// Blob is the minimal capability every object-storage backend must provide:
// content-addressed get/put/has/delete plus enumeration for GC. Every method
// takes a context so network-backed implementations (GCS, S3) can honor
// cancellation the way the rest of the backend does.
type Blob interface {
	// Get opens the stored bytes for id. Callers must Close the returned
	// reader. Returns a verr.ObjectNotFound-shaped error if id is absent.
	Get(ctx context.Context, id ids.ID) (io.ReadCloser, error)

	// Put stores r under id, failing if id already exists is not
	// required — content addressing makes re-puts of identical content a
	// harmless no-op, so implementations may treat Put as idempotent.
	Put(ctx context.Context, id ids.ID, r io.Reader) error

	// Has reports whether id is present without paying for a full read.
	Has(ctx context.Context, id ids.ID) (bool, error)

	// Delete removes id. Used only by prune/gc (spec.md §6); never called
	// from the read/write path of normal operations.
	Delete(ctx context.Context, id ids.ID) error

	// List calls fn for every id currently stored. Implementations may
	// call fn concurrently; fn must be safe for that.
	List(ctx context.Context, fn func(ids.ID) error) error

	io.Closer
}
