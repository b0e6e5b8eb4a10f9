// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// objectMagic tags every on-disk blob, mirroring modules/zeta/backend's
// BLOB_MAGIC convention so a stray file never gets misread as a valid
// object.
var objectMagic = [4]byte{'V', 'B', 0x00, 0x01}

// Local is a filesystem-backed Blob store, sharding objects two levels deep
// by hex prefix the way fileStorer.path does, and zstd-compressing payloads
// on write the same way the teacher's file_storer.go does for loose objects.
type Local struct {
	root     string
	incoming string
}

var _ Blob = (*Local)(nil)

// NewLocal opens (creating if needed) a local blob store rooted at dir.
func NewLocal(dir string) (*Local, error) {
	incoming := filepath.Join(dir, "incoming")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, verr.Backend("local: mkdir root", err)
	}
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return nil, verr.Backend("local: mkdir incoming", err)
	}
	return &Local{root: dir, incoming: incoming}, nil
}

func (l *Local) path(id ids.ID) string {
	hex := id.String()
	return filepath.Join(l.root, hex[:2], hex[2:4], hex)
}

func (l *Local) Get(ctx context.Context, id ids.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, verr.NotFound("blob", id.String())
		}
		return nil, verr.Backend("local: open", err)
	}
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		_ = f.Close()
		return nil, verr.Backend("local: read magic", err)
	}
	if magic != objectMagic {
		_ = f.Close()
		return nil, verr.Backend("local: corrupt object", fmt.Errorf("%s: bad magic", id))
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, verr.Backend("local: zstd reader", err)
	}
	return &zstdReadCloser{zr: zr, f: f}, nil
}

type zstdReadCloser struct {
	zr *zstd.Decoder
	f  *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.zr.Read(p) }
func (z *zstdReadCloser) Close() error {
	z.zr.Close()
	return z.f.Close()
}

func (l *Local) Put(ctx context.Context, id ids.ID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := l.path(id)
	if _, err := os.Stat(dest); err == nil {
		return nil // content-addressed: identical id means identical content
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return verr.Backend("local: mkdir shard", err)
	}
	tmp, err := os.CreateTemp(l.incoming, "blob-*")
	if err != nil {
		return verr.Backend("local: create temp", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(objectMagic[:]); err != nil {
		_ = tmp.Close()
		return verr.Backend("local: write magic", err)
	}
	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		_ = tmp.Close()
		return verr.Backend("local: zstd writer", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		_ = tmp.Close()
		return verr.Backend("local: compress", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return verr.Backend("local: flush zstd", err)
	}
	if err := tmp.Close(); err != nil {
		return verr.Backend("local: close temp", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return verr.Backend("local: rename into place", err)
	}
	return nil
}

func (l *Local) Has(ctx context.Context, id ids.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, verr.Backend("local: stat", err)
}

func (l *Local) Delete(ctx context.Context, id ids.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(l.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return verr.Backend("local: remove", err)
	}
	return nil
}

func (l *Local) List(ctx context.Context, fn func(ids.ID) error) error {
	return filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		if len(name) != ids.DigestSize*2 {
			return nil
		}
		id := ids.FromHex(name)
		return fn(id)
	})
}

func (l *Local) Close() error { return nil }

// ReadAll is a small helper for callers needing to read a Get result
// fully into memory (e.g. to decode a Tree/Commit/Conflict object).
func ReadAll(ctx context.Context, b Blob, id ids.ID) ([]byte, error) {
	rc, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, verr.Backend("store: read all", err)
	}
	return buf.Bytes(), nil
}
