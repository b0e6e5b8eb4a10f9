// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oplog

import (
	"context"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

// Walk visits operations in reverse-chronological order starting from head,
// following Parents, the way reflog.Reflog's newest-first entry list is
// read back for undo — except the operation graph can have more than one
// parent (a reconciliation of concurrent op-heads), so Walk performs a
// breadth-first traversal over the DAG rather than assuming a single chain.
// Visiting stops early if visit returns false.
func (s *Store) Walk(ctx context.Context, head ids.OperationID, visit func(ids.OperationID, *Operation) (bool, error)) error {
	seen := map[ids.OperationID]bool{}
	queue := []ids.OperationID{head}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		op, err := s.ReadOperation(ctx, id)
		if err != nil {
			return err
		}
		cont, err := visit(id, op)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		queue = append(queue, op.Parents...)
	}
	return nil
}

// Latest returns the most recent N operations reachable from head, newest
// first — the query an "operation log" display command issues.
func (s *Store) Latest(ctx context.Context, head ids.OperationID, n int) ([]*Operation, error) {
	var out []*Operation
	err := s.Walk(ctx, head, func(_ ids.OperationID, op *Operation) (bool, error) {
		out = append(out, op)
		return len(out) < n, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
