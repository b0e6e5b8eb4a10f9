// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oplog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
	"github.com/vervain-vcs/vervain/modules/vervain/wire"
)

// Operation records one mutation to repository state: its resulting View,
// the operation(s) it followed (more than one parent when it is itself the
// product of reconciling concurrent op-heads), and metadata for display and
// undo (spec.md §4.3 Operation).
type Operation struct {
	Parents     []ids.OperationID
	ViewID      ids.ViewID
	Description string
	Tags        map[string]string
	StartMillis int64
	EndMillis   int64
}

func (op *Operation) Encode(w io.Writer) error {
	if _, err := w.Write(OperationMagic[:]); err != nil {
		return err
	}
	parents := make([]ids.ID, len(op.Parents))
	for i, p := range op.Parents {
		parents[i] = ids.ID(p)
	}
	if err := wire.WriteIDList(w, parents); err != nil {
		return err
	}
	if _, err := w.Write(ids.ID(op.ViewID).Bytes()); err != nil {
		return err
	}
	if err := wire.WriteString(w, op.Description); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(len(op.Tags))); err != nil {
		return err
	}
	tagKeys := make([]string, 0, len(op.Tags))
	for k := range op.Tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		if err := wire.WriteString(w, k); err != nil {
			return err
		}
		if err := wire.WriteString(w, op.Tags[k]); err != nil {
			return err
		}
	}
	if err := wire.WriteInt64(w, op.StartMillis); err != nil {
		return err
	}
	return wire.WriteInt64(w, op.EndMillis)
}

func (op *Operation) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if magic != OperationMagic {
		return ErrUnsupportedObject
	}
	parentIDs, err := wire.ReadIDList(br)
	if err != nil {
		return err
	}
	parents := make([]ids.OperationID, len(parentIDs))
	for i, p := range parentIDs {
		parents[i] = ids.OperationID(p)
	}
	var viewID ids.ID
	if _, err := io.ReadFull(br, viewID[:]); err != nil {
		return err
	}
	desc, err := wire.ReadString(br)
	if err != nil {
		return err
	}
	numTags, err := wire.ReadUint32(br)
	if err != nil {
		return err
	}
	tags := make(map[string]string, numTags)
	for i := uint32(0); i < numTags; i++ {
		k, err := wire.ReadString(br)
		if err != nil {
			return err
		}
		v, err := wire.ReadString(br)
		if err != nil {
			return err
		}
		tags[k] = v
	}
	start, err := wire.ReadInt64(br)
	if err != nil {
		return err
	}
	end, err := wire.ReadInt64(br)
	if err != nil {
		return err
	}
	op.Parents = parents
	op.ViewID = ids.ViewID(viewID)
	op.Description = desc
	op.Tags = tags
	op.StartMillis = start
	op.EndMillis = end
	return nil
}

// DecodeOperation decodes an Operation from its encoded byte form.
func DecodeOperation(b []byte) (*Operation, error) {
	op := &Operation{}
	if err := op.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("oplog: decode operation: %w", err)
	}
	return op, nil
}
