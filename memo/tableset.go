// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memo implements the Join-Order Optimizer's table-set algebra and
// DP enumerator (spec §4.5), named after the teacher's own sql/memo
// join-enumeration package. It is deliberately generic over the candidate
// plan representation (via Go generics) so it has no dependency on the
// physical or cost packages: physical instantiates Optimize with
// cost.PhysicalPlan as the candidate type and cost.Estimator as the scoring
// function.
//
// Grounded on original_source/src/planner/join_optimizer/dp_optimizer.rs's
// TableSet/generate_subsets/enumerate_splits, and
// original_source/tests/planner/join_graph_test.rs's JoinGraph contract.
package memo

import (
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure"
)

// TableSet is an immutable, sorted set of table names: the DP memoization
// key. Two TableSets with the same members always compare and hash equal,
// regardless of construction order.
type TableSet struct {
	tables []string
}

// NewTableSet builds a TableSet from tables, deduplicating and sorting.
func NewTableSet(tables []string) TableSet {
	seen := map[string]bool{}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return TableSet{tables: out}
}

// Single returns a TableSet containing exactly one table.
func Single(table string) TableSet { return TableSet{tables: []string{table}} }

// Size returns the number of tables in the set.
func (s TableSet) Size() int { return len(s.tables) }

// Contains reports whether table is a member of s.
func (s TableSet) Contains(table string) bool {
	i := sort.SearchStrings(s.tables, table)
	return i < len(s.tables) && s.tables[i] == table
}

// ToSlice returns the set's members in sorted order. The returned slice
// must not be mutated by the caller.
func (s TableSet) ToSlice() []string { return s.tables }

// Key returns a stable, order-independent identity for s suitable for use
// as a Go map key. It is the hashstructure hash of the sorted member slice
// (spec §9 "memoization table keyed by the sorted table-set"): using a
// content hash rather than a joined string keeps the memo keyed the same
// way regardless of table-name characters (commas, etc.) that would need
// escaping in a string key.
func (s TableSet) Key() uint64 {
	h, err := hashstructure.Hash(s.tables, nil)
	if err != nil {
		// hashstructure only errors on unsupported types; []string always
		// hashes, so this path is unreachable in practice.
		return 0
	}
	return h
}

// String renders the set for diagnostics, e.g. "{a,b,c}".
func (s TableSet) String() string {
	return "{" + strings.Join(s.tables, ",") + "}"
}

// Union returns the set union of a and b.
func Union(a, b TableSet) TableSet {
	return NewTableSet(append(append([]string(nil), a.tables...), b.tables...))
}

// Equal reports whether a and b contain exactly the same members.
func Equal(a, b TableSet) bool {
	if len(a.tables) != len(b.tables) {
		return false
	}
	for i := range a.tables {
		if a.tables[i] != b.tables[i] {
			return false
		}
	}
	return true
}

// Less defines a deterministic total order over TableSets: by size, then
// lexicographically by sorted member list. Used to break ties in subset/
// split enumeration order (spec §4.5 "Determinism").
func Less(a, b TableSet) bool {
	if len(a.tables) != len(b.tables) {
		return len(a.tables) < len(b.tables)
	}
	for i := range a.tables {
		if a.tables[i] != b.tables[i] {
			return a.tables[i] < b.tables[i]
		}
	}
	return false
}

// GenerateSubsets returns every size-sized subset of tables (already
// sorted), as an increasing-index recursion over the sorted input so
// results are produced in a deterministic, lexicographic order.
func GenerateSubsets(tables []string, size int) []TableSet {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	if size <= 0 || size > len(sorted) {
		return nil
	}

	var result []TableSet
	current := make([]string, 0, size)

	var recurse func(start int)
	recurse = func(start int) {
		if len(current) == size {
			result = append(result, NewTableSet(append([]string(nil), current...)))
			return
		}
		for i := start; i < len(sorted); i++ {
			current = append(current, sorted[i])
			recurse(i + 1)
			current = current[:len(current)-1]
		}
	}
	recurse(0)

	return result
}

// Split is one non-trivial bushy partition of a table set into two disjoint,
// non-empty halves.
type Split struct {
	Left, Right TableSet
}

// EnumerateSplits returns every non-trivial bushy split (S1, S2) of set,
// accepting a split only when |S1| < |S2|, or (equal size) sorted(S1)
// precedes sorted(S2) lexicographically — avoiding the symmetric duplicate
// of swapping S1 and S2 (spec §4.5).
func EnumerateSplits(set TableSet) []Split {
	tables := set.ToSlice()
	n := len(tables)
	if n < 2 {
		return nil
	}

	var splits []Split
	for size := 1; size < n; size++ {
		for _, s1 := range GenerateSubsets(tables, size) {
			s2 := complement(set, s1)
			if s1.Size() < s2.Size() || (s1.Size() == s2.Size() && Less(s1, s2)) {
				splits = append(splits, Split{Left: s1, Right: s2})
			}
		}
	}
	return splits
}

func complement(full, subset TableSet) TableSet {
	var out []string
	for _, t := range full.tables {
		if !subset.Contains(t) {
			out = append(out, t)
		}
	}
	return NewTableSet(out)
}
