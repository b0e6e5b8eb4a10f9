// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package merge implements the conflict algebra of spec.md §4.1: any
// potentially-conflicting value is represented as an alternating merge with
// one more add than remove, interpreted as
// adds[0] − removes[0] + adds[1] − removes[1] + … + adds[n].
//
// This is the dual-ownership-graph replacement called for in spec.md §9:
// callers hold plain values (or ids), never pointers into someone else's
// conflict resolution; equality is structural (Go's == for comparable T).
package merge

import (
	"slices"

	"github.com/vervain-vcs/vervain/modules/vervain/verr"
)

// Merge is the canonical alternating-merge representation of a value of
// type T that may or may not be conflicted. Resolved values have exactly one
// add and no removes. T must be comparable so Simplify can cancel terms
// structurally, the way spec.md §4.1 requires (File equality needs both id
// and executable bit, which a plain comparable struct gives for free).
type Merge[T comparable] struct {
	Adds    []T
	Removes []T
}

// Normal builds the merge for an unconflicted value.
func Normal[T comparable](v T) Merge[T] {
	return Merge[T]{Adds: []T{v}}
}

// Valid reports whether m satisfies the alternating-merge invariant
// |adds| = |removes|+1. Construction helpers in this package always return
// valid merges; callers building one from raw data (e.g. decoding a stored
// Conflict object) must check this explicitly — a violation is a
// MergeConflictUnmergeable programmer error, not a user-facing one
// (spec.md §7).
func (m Merge[T]) Valid() bool {
	return len(m.Adds) == len(m.Removes)+1
}

// Check returns verr.ErrMergeConflictUnmergeable if m is not a well-formed
// alternating merge. Call this at construction boundaries (decode, external
// input) per spec.md §4.2 "a malformed merge is a programmer error and MUST
// be rejected at construction."
func (m Merge[T]) Check() error {
	if !m.Valid() {
		return verr.ErrMergeConflictUnmergeable
	}
	return nil
}

// IsResolved reports whether m cancels to exactly one value.
func (m Merge[T]) IsResolved() bool {
	return len(m.Adds) == 1 && len(m.Removes) == 0
}

// IsConflict is the negation of IsResolved — m has at least one remove term
// still outstanding, so it represents a genuine, unresolved conflict.
func (m Merge[T]) IsConflict() bool {
	return !m.IsResolved()
}

// Resolve returns the single value a merge cancels to, and true, or the zero
// value and false if m is still conflicted.
func (m Merge[T]) Resolve() (T, bool) {
	if m.IsResolved() {
		return m.Adds[0], true
	}
	var zero T
	return zero, false
}

// Primary returns the first add, the designated representative value to show
// a user when a merge cannot be displayed in full (spec.md §4.1 tie-break
// policy: "use the first add").
func (m Merge[T]) Primary() T {
	return m.Adds[0]
}

// Clone deep-copies the slices so mutating the result cannot alias m.
func (m Merge[T]) Clone() Merge[T] {
	return Merge[T]{Adds: slices.Clone(m.Adds), Removes: slices.Clone(m.Removes)}
}

// Simplify repeatedly cancels equal pairs where one value appears in Adds
// and another in Removes, regardless of position, until no such pair
// remains. The result is canonical: no value in Adds also appears in
// Removes. Ordering of the surviving terms is stable under the rewrite
// (spec.md §4.1).
func Simplify[T comparable](m Merge[T]) Merge[T] {
	adds := slices.Clone(m.Adds)
	removes := slices.Clone(m.Removes)
	for {
		cancelled := false
		for ai := 0; ai < len(adds); ai++ {
			for ri := 0; ri < len(removes); ri++ {
				if adds[ai] == removes[ri] {
					adds = append(adds[:ai], adds[ai+1:]...)
					removes = append(removes[:ri], removes[ri+1:]...)
					cancelled = true
					break
				}
			}
			if cancelled {
				break
			}
		}
		if !cancelled {
			break
		}
	}
	if len(removes) == 0 {
		removes = nil
	}
	return Merge[T]{Adds: adds, Removes: removes}
}

// Rebase recomputes m as though its base moved from oldBase to newBase: the
// formal definition of "rebasing a conflicted change preserves conflict
// structure and cancels where possible" (spec.md §4.1). It appends newBase
// to Adds and oldBase to Removes (one more signed term, net value zero) and
// simplifies: Simplify(m.Adds+[newBase], m.Removes+[oldBase]).
func (m Merge[T]) Rebase(oldBase, newBase T) Merge[T] {
	adds := append(slices.Clone(m.Adds), newBase)
	removes := append(slices.Clone(m.Removes), oldBase)
	return Simplify(Merge[T]{Adds: adds, Removes: removes})
}

// Merge3 computes the classic 3-way merge of a single term: if either side
// equals the base, take the other side; if both sides agree, take that;
// otherwise the result is a 2-adds/1-remove conflict. This is the same rule
// the tree merger uses per-name (spec.md §4.2 rule 1) and the rule the
// concurrent-operation reconciler uses per ref name (spec.md §4.3).
func Merge3[T comparable](base, a, b T) Merge[T] {
	if a == base {
		return Normal(b)
	}
	if b == base {
		return Normal(a)
	}
	if a == b {
		return Normal(a)
	}
	return Merge[T]{Adds: []T{a, b}, Removes: []T{base}}
}

// Map applies f to every term of m, producing a merge over a different
// (still comparable) type. Useful to project a Merge[TreeValue] down to
// Merge[ids.TreeID] when every term happens to be a Tree, for instance.
func Map[T, U comparable](m Merge[T], f func(T) U) Merge[U] {
	adds := make([]U, len(m.Adds))
	for i, v := range m.Adds {
		adds[i] = f(v)
	}
	removes := make([]U, len(m.Removes))
	for i, v := range m.Removes {
		removes[i] = f(v)
	}
	return Merge[U]{Adds: adds, Removes: removes}
}

// Terms returns the alternating signed-term sequence +Adds[0], -Removes[0],
// +Adds[1], … in order — the flattened arithmetic reading of the merge used
// for display and for Flatten's substitution rule.
type Term[T any] struct {
	Value T
	Sign  int // +1 or -1
}

func Terms[T comparable](m Merge[T]) []Term[T] {
	terms := make([]Term[T], 0, len(m.Adds)+len(m.Removes))
	for i, a := range m.Adds {
		terms = append(terms, Term[T]{Value: a, Sign: 1})
		if i < len(m.Removes) {
			terms = append(terms, Term[T]{Value: m.Removes[i], Sign: -1})
		}
	}
	return terms
}

// FromTerms is the inverse of Terms: it expects an alternating +,-,+,-,...,+
// sequence and reconstructs the Merge. Panics (programmer error) if terms is
// empty or does not alternate starting and ending with a +.
func FromTerms[T comparable](terms []Term[T]) Merge[T] {
	var m Merge[T]
	for i, t := range terms {
		wantSign := 1
		if i%2 == 1 {
			wantSign = -1
		}
		if t.Sign != wantSign {
			panic("merge: terms do not alternate starting with +")
		}
		if t.Sign > 0 {
			m.Adds = append(m.Adds, t.Value)
		} else {
			m.Removes = append(m.Removes, t.Value)
		}
	}
	return m
}

// Flatten substitutes, in place, any term whose value is itself "a merge" as
// determined by expand, concatenating its signed terms into the parent
// (spec.md §4.1 "if any term of M is itself a merge, substitute and
// concatenate preserving sign"). expand returns (nested, true) when v should
// be expanded; nested's own terms are spliced in with their sign multiplied
// by the parent term's sign, so an expansion inside a Removes slot flips the
// nested merge's signs.
func Flatten[T comparable](m Merge[T], expand func(T) (Merge[T], bool)) Merge[T] {
	var out []Term[T]
	for _, t := range Terms(m) {
		nested, ok := expand(t.Value)
		if !ok {
			out = append(out, t)
			continue
		}
		for _, nt := range Terms(nested) {
			out = append(out, Term[T]{Value: nt.Value, Sign: nt.Sign * t.Sign})
		}
	}
	return normalizeSigns(out)
}

// Combine3Way computes Simplify(Flatten(a + b − c)): the reconciliation rule
// spec.md §4.3 uses to merge a View field across two op-heads given their
// common ancestor, generalized to accept an already-conflicted a/b/c (any of
// the three may themselves be merges, not just resolved values). This is the
// same arithmetic Rebase performs for a single base swap, widened to two
// independent sides diverging from one base at once.
func Combine3Way[T comparable](a, b, c Merge[T]) Merge[T] {
	var terms []Term[T]
	terms = append(terms, Terms(a)...)
	terms = append(terms, Terms(b)...)
	for _, t := range Terms(c) {
		terms = append(terms, Term[T]{Value: t.Value, Sign: -t.Sign})
	}
	return normalizeSigns(terms)
}

// normalizeSigns re-derives a valid Merge from an arbitrary signed-term list
// that may not alternate (Flatten's splicing can produce runs of the same
// sign). It does so by summing signed occurrences of identical values first
// (cheap cancellation), then rebuilding the canonical +,-,+,-,...,+ sequence
// from whatever net positive/negative terms remain. Any surplus of same-sign
// terms beyond what strict alternation needs is carried as repeated adds (or
// removes), preserving arithmetic meaning: repeated adds of distinct values
// are still all "present" candidates, repeated removes are all "cancelled"
// candidates.
func normalizeSigns[T comparable](terms []Term[T]) Merge[T] {
	var adds, removes []T
	for _, t := range terms {
		if t.Sign > 0 {
			adds = append(adds, t.Value)
		} else {
			removes = append(removes, t.Value)
		}
	}
	for len(adds) != len(removes)+1 {
		if len(adds) > len(removes)+1 {
			removes = append(removes, adds[len(adds)-1])
			adds = adds[:len(adds)-1]
		} else {
			adds = append(adds, removes[len(removes)-1])
			removes = removes[:len(removes)-1]
		}
	}
	return Simplify(Merge[T]{Adds: adds, Removes: removes})
}
