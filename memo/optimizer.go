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

package memo

import "sort"

// DPSizeLimit is the largest table count the DP enumerator will attempt
// exhaustively. Above this, Optimize switches to the greedy heuristic (spec
// §4.5 "above 10 tables, fall back to greedy"), since the bushy DP's
// candidate count grows combinatorially in the number of tables.
const DPSizeLimit = 10

// LeafBuilder builds the trivial single-table candidate plan for table.
type LeafBuilder[P any] func(table string) P

// JoinBuilder attempts to build a candidate plan joining left and right,
// whose table sets are leftSet and rightSet respectively. It returns
// ok=false when left and right are not joinable (no edge connects any
// table in leftSet to any table in rightSet), in which case the combination
// is discarded.
type JoinBuilder[P any] func(left, right P, leftSet, rightSet TableSet) (joined P, ok bool)

// CostFunc scores a candidate plan; lower is better.
type CostFunc[P any] func(p P) float64

type entry[P any] struct {
	set  TableSet
	plan P
	cost float64
}

// Optimize finds the cheapest bushy join order over tables, using jg to
// determine joinability. It is generic over the candidate plan
// representation P so that this package never imports cost or physical:
// the physical package instantiates Optimize with cost.PhysicalPlan and a
// CostFunc backed by a cost.Estimator.
//
// For |tables| <= DPSizeLimit this runs the Selinger-style bushy DP
// described in spec §4.5, memoized by TableSet.Key(). Above that it falls
// back to a greedy left-deep heuristic that starts from the cheapest
// joinable pair of tables and repeatedly attaches the remaining table whose
// join with the current tree is cheapest, trading optimality for
// polynomial running time.
//
// Optimize returns ok=false if tables is empty, or if no full join order
// could be assembled (the table set is not fully connected under jg).
func Optimize[P any](jg *JoinGraph, tables []string, leaf LeafBuilder[P], join JoinBuilder[P], cost CostFunc[P]) (result P, ok bool) {
	if len(tables) == 0 {
		return result, false
	}

	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	if len(sorted) == 1 {
		return leaf(sorted[0]), true
	}

	if len(sorted) > DPSizeLimit {
		return optimizeGreedy(jg, sorted, leaf, join, cost)
	}
	return optimizeDP(jg, sorted, leaf, join, cost)
}

func optimizeDP[P any](jg *JoinGraph, tables []string, leaf LeafBuilder[P], join JoinBuilder[P], cost CostFunc[P]) (result P, ok bool) {
	memo := map[uint64]entry[P]{}

	for _, t := range tables {
		s := Single(t)
		p := leaf(t)
		memo[s.Key()] = entry[P]{set: s, plan: p, cost: cost(p)}
	}

	for size := 2; size <= len(tables); size++ {
		for _, set := range GenerateSubsets(tables, size) {
			var best *entry[P]

			for _, split := range EnumerateSplits(set) {
				left, lok := memo[split.Left.Key()]
				right, rok := memo[split.Right.Key()]
				if !lok || !rok {
					continue
				}
				if !jg.AreSetsJoinable(split.Left.ToSlice(), split.Right.ToSlice()) {
					continue
				}

				if candidate, cok := join(left.plan, right.plan, left.set, right.set); cok {
					c := cost(candidate)
					if best == nil || c < best.cost {
						best = &entry[P]{set: set, plan: candidate, cost: c}
					}
				}
				// Join direction can matter (e.g. hash-join build side), so
				// also try the swapped order.
				if candidate, cok := join(right.plan, left.plan, right.set, left.set); cok {
					c := cost(candidate)
					if best == nil || c < best.cost {
						best = &entry[P]{set: set, plan: candidate, cost: c}
					}
				}
			}

			if best != nil {
				memo[set.Key()] = *best
			}
		}
	}

	full := NewTableSet(tables)
	e, found := memo[full.Key()]
	if !found {
		return result, false
	}
	return e.plan, true
}

// optimizeGreedy joins the cheapest joinable pair of tables, then
// repeatedly attaches the remaining table whose join with that tree is
// cheapest, until one plan covering every table remains. It does not guarantee the
// optimal order, only a polynomial-time approximation for large queries.
func optimizeGreedy[P any](jg *JoinGraph, tables []string, leaf LeafBuilder[P], join JoinBuilder[P], cost CostFunc[P]) (result P, ok bool) {
	type candidate struct {
		set  TableSet
		plan P
	}

	candidates := make([]candidate, 0, len(tables))
	for _, t := range tables {
		candidates = append(candidates, candidate{set: Single(t), plan: leaf(t)})
	}

	for len(candidates) > 1 {
		bestI, bestJ := -1, -1
		var bestPlan P
		var bestCost float64
		// After the first merge the tree is always the last candidate, and
		// every later step must join it to one remaining table.
		tree := len(candidates) - 1
		growing := len(candidates) < len(tables)

		for i := 0; i < len(candidates); i++ {
			for j := 0; j < len(candidates); j++ {
				if i == j {
					continue
				}
				if growing && i != tree && j != tree {
					continue
				}
				if !jg.AreSetsJoinable(candidates[i].set.ToSlice(), candidates[j].set.ToSlice()) {
					continue
				}
				joined, jok := join(candidates[i].plan, candidates[j].plan, candidates[i].set, candidates[j].set)
				if !jok {
					continue
				}
				c := cost(joined)
				if bestI == -1 || c < bestCost {
					bestI, bestJ, bestPlan, bestCost = i, j, joined, c
				}
			}
		}

		if bestI == -1 {
			// No joinable pair remains: the table set is disconnected under
			// jg. The caller (physical) reports this as NoPath.
			return result, false
		}

		merged := candidate{set: Union(candidates[bestI].set, candidates[bestJ].set), plan: bestPlan}

		next := make([]candidate, 0, len(candidates)-1)
		for k, c := range candidates {
			if k != bestI && k != bestJ {
				next = append(next, c)
			}
		}
		candidates = append(next, merged)
	}

	return candidates[0].plan, true
}
