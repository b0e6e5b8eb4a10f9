// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Memory is an in-process Blob store used by tests and by the "quick start"
// repo mode that never touches disk.
type Memory struct {
	mu   sync.RWMutex
	data map[ids.ID][]byte
}

var _ Blob = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[ids.ID][]byte)}
}

func (m *Memory) Get(ctx context.Context, id ids.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[id]
	if !ok {
		return nil, verr.NotFound("blob", id.String())
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) Put(ctx context.Context, id ids.ID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return verr.Backend("memory: read", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; ok {
		return nil
	}
	m.data[id] = b
	return nil
}

func (m *Memory) Has(ctx context.Context, id ids.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[id]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, id ids.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *Memory) List(ctx context.Context, fn func(ids.ID) error) error {
	m.mu.RLock()
	keys := make([]ids.ID, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
