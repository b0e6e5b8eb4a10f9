// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package diff3 implements line-level three-way text merge, used by the tree
// merger (spec.md §4.2 rule 3) as the one case where a file-content conflict
// may still resolve to a single blob: when the merge reduces to exactly
// |adds|=2, |removes|=1 and all three sides are regular files with the same
// executable bit.
package diff3

import (
	"context"
	"fmt"
	"strings"
)

// change describes a replacement of base[OStart:OEnd) with Text, derived
// from an LCS-based diff of base against one side.
type change struct {
	OStart, OEnd int
	Text         []string
}

// diffLines returns the minimal set of changes turning base into side,
// expressed as replacements over ranges of base, via a classic O(n*m)
// longest-common-subsequence table. Inputs are expected to be modest (single
// files); this is not tuned for multi-megabyte blobs.
func diffLines(base, side []string) []change {
	n, m := len(base), len(side)
	// lcs[i][j] = length of LCS of base[i:], side[j:]
	lcs := make([][]int32, n+1)
	for i := range lcs {
		lcs[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if base[i] == side[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var changes []change
	i, j := 0, 0
	gapOStart, gapSide := 0, 0
	flush := func(oEnd int) {
		if oEnd == gapOStart && j == gapSide {
			return
		}
		changes = append(changes, change{OStart: gapOStart, OEnd: oEnd, Text: append([]string(nil), side[gapSide:j]...)})
	}
	for i < n && j < m {
		if base[i] == side[j] {
			flush(i)
			i++
			j++
			gapOStart, gapSide = i, j
			continue
		}
		if lcs[i+1][j] >= lcs[i][j+1] {
			i++
		} else {
			j++
		}
	}
	if gapOStart < n || gapSide < m {
		changes = append(changes, change{OStart: gapOStart, OEnd: n, Text: append([]string(nil), side[gapSide:m]...)})
	}
	return changes
}

type side int

const (
	sideA side = iota
	sideB
)

type taggedChange struct {
	change
	from side
}

// Merge performs a three-way merge of base/a/b split into lines, returning
// the merged lines and whether any region conflicted.
func Merge(base, a, b []string) (merged []string, conflict bool) {
	changesA := diffLines(base, a)
	changesB := diffLines(base, b)

	tagged := make([]taggedChange, 0, len(changesA)+len(changesB))
	for _, c := range changesA {
		tagged = append(tagged, taggedChange{change: c, from: sideA})
	}
	for _, c := range changesB {
		tagged = append(tagged, taggedChange{change: c, from: sideB})
	}
	// Both changesA and changesB are individually sorted by OStart; merge
	// them into one OStart-sorted sequence so clustering below only needs
	// a single forward pass.
	sortByOStart(tagged)

	pos := 0
	for idx := 0; idx < len(tagged); {
		clusterStart := tagged[idx].OStart
		clusterEnd := tagged[idx].OEnd
		var clusterA, clusterB []change
		j := idx
		for j < len(tagged) && tagged[j].OStart <= clusterEnd {
			if tagged[j].OEnd > clusterEnd {
				clusterEnd = tagged[j].OEnd
			}
			if tagged[j].from == sideA {
				clusterA = append(clusterA, tagged[j].change)
			} else {
				clusterB = append(clusterB, tagged[j].change)
			}
			j++
		}

		merged = append(merged, base[pos:clusterStart]...)

		aText := reconstruct(base, clusterStart, clusterEnd, clusterA)
		bText := reconstruct(base, clusterStart, clusterEnd, clusterB)
		switch {
		case stringsEqual(aText, bText):
			merged = append(merged, aText...)
		case len(clusterB) == 0:
			merged = append(merged, aText...)
		case len(clusterA) == 0:
			merged = append(merged, bText...)
		default:
			conflict = true
			merged = append(merged, "<<<<<<< ours")
			merged = append(merged, aText...)
			merged = append(merged, "=======")
			merged = append(merged, bText...)
			merged = append(merged, ">>>>>>> theirs")
		}

		pos = clusterEnd
		idx = j
	}
	merged = append(merged, base[pos:]...)
	return merged, conflict
}

// reconstruct rebuilds the text of base[start:end) after applying the given
// (non-overlapping, OStart-sorted) changes local to that range, copying base
// content in the gaps between changes.
func reconstruct(base []string, start, end int, changes []change) []string {
	if len(changes) == 0 {
		return append([]string(nil), base[start:end]...)
	}
	var out []string
	pos := start
	for _, c := range changes {
		out = append(out, base[pos:c.OStart]...)
		out = append(out, c.Text...)
		pos = c.OEnd
	}
	out = append(out, base[pos:end]...)
	return out
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortByOStart(t []taggedChange) {
	// Insertion sort: change lists are already individually small and
	// already OStart-sorted within each side, so this is near-linear in
	// practice and avoids pulling in sort.Slice's reflection overhead.
	for i := 1; i < len(t); i++ {
		for k := i; k > 0 && t[k].OStart < t[k-1].OStart; k-- {
			t[k], t[k-1] = t[k-1], t[k]
		}
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// SimpleMerge performs a three-way text merge of whole file contents,
// returning the merged content and whether the result still contains a
// conflict. It honors ctx cancellation for large inputs, mirroring the
// context-aware call sites elsewhere in the backend.
func SimpleMerge(ctx context.Context, base, a, b string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("diff3: %w", err)
	}
	merged, conflict := Merge(splitLines(base), splitLines(a), splitLines(b))
	return strings.Join(merged, ""), conflict, nil
}
