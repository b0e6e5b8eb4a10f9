// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package wire holds the small binary encode/decode primitives shared by
// every stored object kind (commit, tree, conflict, operation, view): a
// length-prefixed string and a length-prefixed list of fixed-size ids. Kept
// separate from object and oplog so neither has to import the other just to
// share a length-prefix convention.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/vervain-vcs/vervain/modules/vervain/ids"
)

func WriteString(w io.Writer, s string) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(s)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func ReadString(r io.Reader) (string, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func WriteIDList(w io.Writer, list []ids.ID) error {
	if err := WriteUint32(w, uint32(len(list))); err != nil {
		return err
	}
	for _, id := range list {
		if _, err := w.Write(id[:]); err != nil {
			return err
		}
	}
	return nil
}

func ReadIDList(r io.Reader) ([]ids.ID, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	list := make([]ids.ID, n)
	for i := range list {
		if _, err := io.ReadFull(r, list[i][:]); err != nil {
			return nil, err
		}
	}
	return list, nil
}
