// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oplog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/store"
)

// Store is the content-addressed operation/view store: a thin typed wrapper
// over a store.Blob, the same relationship backend.Database has to its own
// blob store, kept separate because operations and views are never subject
// to the commit-graph GC backend.Database.GC performs (an operation log is
// pruned by its own retention policy, not reachability from a keep set).
type Store struct {
	blob store.Blob
}

func NewStore(blob store.Blob) *Store {
	return &Store{blob: blob}
}

func (s *Store) Close() error { return s.blob.Close() }

func (s *Store) WriteView(ctx context.Context, v *View) (ids.ViewID, error) {
	var buf bytes.Buffer
	if err := v.Encode(&buf); err != nil {
		return ids.ViewID{}, fmt.Errorf("oplog: encode view: %w", err)
	}
	id := ids.Of(buf.Bytes())
	if err := s.blob.Put(ctx, id, bytes.NewReader(buf.Bytes())); err != nil {
		return ids.ViewID{}, err
	}
	return ids.ViewID(id), nil
}

func (s *Store) ReadView(ctx context.Context, id ids.ViewID) (*View, error) {
	b, err := store.ReadAll(ctx, s.blob, ids.ID(id))
	if err != nil {
		return nil, err
	}
	return DecodeView(b)
}

func (s *Store) WriteOperation(ctx context.Context, op *Operation) (ids.OperationID, error) {
	var buf bytes.Buffer
	if err := op.Encode(&buf); err != nil {
		return ids.OperationID{}, fmt.Errorf("oplog: encode operation: %w", err)
	}
	id := ids.Of(buf.Bytes())
	if err := s.blob.Put(ctx, id, bytes.NewReader(buf.Bytes())); err != nil {
		return ids.OperationID{}, err
	}
	return ids.OperationID(id), nil
}

func (s *Store) ReadOperation(ctx context.Context, id ids.OperationID) (*Operation, error) {
	b, err := store.ReadAll(ctx, s.blob, ids.ID(id))
	if err != nil {
		return nil, err
	}
	return DecodeOperation(b)
}
