// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ids

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// NewChangeID returns a fresh, random change id for a commit created from
// scratch (spec.md §3 invariant 5). change ids are not content-addressed —
// two commits with identical content still get distinct change ids unless
// one was rewritten from the other — so they are plain random bytes, not a
// hash of anything.
func NewChangeID() ChangeID {
	var id ChangeID
	_, _ = rand.Read(id[:])
	return id
}

// NewWorkspaceID returns a fresh workspace identifier. UUIDv4 gives us a
// readable, collision-resistant name for the common case of naming a
// workspace after its host, without forcing every caller to supply one.
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID(uuid.NewString())
}

// DefaultWorkspaceID is the name used for the first workspace created in a
// repository, mirroring the common single-workspace case.
const DefaultWorkspaceID WorkspaceID = "default"
