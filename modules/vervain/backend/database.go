// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package backend wires a store.Blob into the typed commit/tree/conflict
// object database spec.md §3/§6 describe: hashing on write, decode-on-read,
// an LRU cache in front of hot objects, and the distinguished empty tree id
// every repository's root points to before any content exists. It mirrors
// modules/zeta/backend.Database's Option-constructor shape, generalized from
// a fixed on-disk layout to any store.Blob.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/object"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Database is the commit-backend facade of spec.md §6: a typed read/write
// surface over a content-addressed store.Blob, with an optional read cache.
type Database struct {
	blob  store.Blob
	cache *ristretto.Cache[string, any]

	mu            sync.Mutex
	emptyTreeOnce sync.Once
	emptyTreeID   ids.TreeID
}

type Option func(*Database)

// WithCache enables an in-memory LRU in front of decoded objects, mirroring
// Database.enableLRU/metaLRU in the teacher's odb.go.
func WithCache(numCounters, maxCost int64) Option {
	return func(d *Database) {
		cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err == nil {
			d.cache = cache
		}
	}
}

func NewDatabase(blob store.Blob, opts ...Option) *Database {
	d := &Database{blob: blob}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Database) Close() error {
	if d.cache != nil {
		d.cache.Close()
	}
	return d.blob.Close()
}

func (d *Database) cacheGet(id ids.ID) (any, bool) {
	if d.cache == nil {
		return nil, false
	}
	return d.cache.Get(id.String())
}

func (d *Database) cacheSet(id ids.ID, v any, cost int64) {
	if d.cache == nil {
		return
	}
	d.cache.Set(id.String(), v, cost)
}

// putEncoded hashes e, stores its bytes if not already present, and returns
// the resulting id.
func putEncoded(ctx context.Context, d *Database, e object.Encoder) (ids.ID, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return ids.ID{}, fmt.Errorf("backend: encode: %w", err)
	}
	id := ids.Of(buf.Bytes())
	if err := d.blob.Put(ctx, id, bytes.NewReader(buf.Bytes())); err != nil {
		return ids.ID{}, err
	}
	return id, nil
}

// WriteTree stores t and returns its id.
func (d *Database) WriteTree(ctx context.Context, t *object.Tree) (ids.TreeID, error) {
	id, err := putEncoded(ctx, d, t)
	return ids.TreeID(id), err
}

// ReadTree decodes the tree stored at id, consulting the cache first.
func (d *Database) ReadTree(ctx context.Context, id ids.TreeID) (*object.Tree, error) {
	if v, ok := d.cacheGet(ids.ID(id)); ok {
		return v.(*object.Tree), nil
	}
	b, err := store.ReadAll(ctx, d.blob, ids.ID(id))
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTree(b)
	if err != nil {
		return nil, err
	}
	d.cacheSet(ids.ID(id), t, int64(len(b)))
	return t, nil
}

// WriteCommit stores c and returns its id.
func (d *Database) WriteCommit(ctx context.Context, c *object.Commit) (ids.CommitID, error) {
	id, err := putEncoded(ctx, d, c)
	return ids.CommitID(id), err
}

// ReadCommit decodes the commit stored at id.
func (d *Database) ReadCommit(ctx context.Context, id ids.CommitID) (*object.Commit, error) {
	if v, ok := d.cacheGet(ids.ID(id)); ok {
		return v.(*object.Commit), nil
	}
	b, err := store.ReadAll(ctx, d.blob, ids.ID(id))
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeCommit(b)
	if err != nil {
		return nil, err
	}
	d.cacheSet(ids.ID(id), c, int64(len(b)))
	return c, nil
}

// WriteConflict stores c and returns its id.
func (d *Database) WriteConflict(ctx context.Context, c *object.Conflict) (ids.ConflictID, error) {
	id, err := putEncoded(ctx, d, c)
	return ids.ConflictID(id), err
}

// ReadConflict decodes the conflict stored at id.
func (d *Database) ReadConflict(ctx context.Context, id ids.ConflictID) (*object.Conflict, error) {
	if v, ok := d.cacheGet(ids.ID(id)); ok {
		return v.(*object.Conflict), nil
	}
	b, err := store.ReadAll(ctx, d.blob, ids.ID(id))
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeConflict(b)
	if err != nil {
		return nil, err
	}
	d.cacheSet(ids.ID(id), c, int64(len(b)))
	return c, nil
}

// WriteFile stores raw file content and returns its id.
func (d *Database) WriteFile(ctx context.Context, content []byte) (ids.FileID, error) {
	id := ids.Of(content)
	if err := d.blob.Put(ctx, id, bytes.NewReader(content)); err != nil {
		return ids.FileID{}, err
	}
	return ids.FileID(id), nil
}

// ReadFile returns the raw bytes stored at id.
func (d *Database) ReadFile(ctx context.Context, id ids.FileID) ([]byte, error) {
	return store.ReadAll(ctx, d.blob, ids.ID(id))
}

// EmptyTree returns the id of the canonical empty tree, writing it on first
// use. Every commit with no files points, transitively, at this id
// (spec.md §3 invariant 6).
func (d *Database) EmptyTree(ctx context.Context) (ids.TreeID, error) {
	var outerErr error
	d.emptyTreeOnce.Do(func() {
		id, err := d.WriteTree(ctx, object.NewTree(nil))
		if err != nil {
			outerErr = err
			return
		}
		d.emptyTreeID = id
	})
	if outerErr != nil {
		return ids.TreeID{}, outerErr
	}
	return d.emptyTreeID, nil
}

// Name identifies this commit-backend implementation in the persisted
// "which backend" marker a repo records at creation (spec.md §6).
func (d *Database) Name() string { return "vervain" }

// CommitIDLength and ChangeIDLength report the fixed digest width every id
// of that kind carries (spec.md §6). Both are the backend's single BLAKE3
// digest size; change ids are random rather than content-addressed but
// still sized to match so they can share encode/decode plumbing.
func (d *Database) CommitIDLength() int { return ids.DigestSize }
func (d *Database) ChangeIDLength() int { return ids.DigestSize }

// RootChangeID is the change id of the distinguished root commit every repo
// is bootstrapped from: the all-zero id, chosen so it is recognizable
// without a read (spec.md §6 root_change_id()).
func RootChangeID() ids.ChangeID { return ids.ChangeID{} }

// RootCommitID returns the id of the distinguished root commit, writing it
// on first use. It is parentless, carries RootChangeID, an empty root tree,
// and zeroed signatures, so two independently bootstrapped repos agree on
// its id without coordination (spec.md §6 root_commit_id()).
func (d *Database) RootCommitID(ctx context.Context) (ids.CommitID, error) {
	empty, err := d.EmptyTree(ctx)
	if err != nil {
		return ids.CommitID{}, err
	}
	root := &object.Commit{
		RootTreeAdds: []ids.TreeID{empty},
		ChangeID:     RootChangeID(),
	}
	return d.WriteCommit(ctx, root)
}

// Has reports whether id is present in the underlying store, for GC keep-set
// membership tests.
func (d *Database) Has(ctx context.Context, id ids.ID) (bool, error) {
	return d.blob.Has(ctx, id)
}

// Delete removes id. Only ever called from GC's sweep phase.
func (d *Database) Delete(ctx context.Context, id ids.ID) error {
	return d.blob.Delete(ctx, id)
}

// ListAll enumerates every id in the store, for GC's sweep phase.
func (d *Database) ListAll(ctx context.Context, fn func(ids.ID) error) error {
	return d.blob.List(ctx, fn)
}

// InvalidObject reports a decode failure against one of the spec's named
// invariants — used by callers that walk the object graph and hit a
// structurally broken object.
func InvalidObject(invariant, id string, cause error) error {
	return verr.InvalidState(invariant, fmt.Sprintf("%s: %v", id, cause))
}
