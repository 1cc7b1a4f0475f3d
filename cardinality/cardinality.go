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

// Package cardinality implements the Cardinality & Selectivity Model
// (spec §4.3): row-count estimates for scans, joins, filters, and group-by,
// derived from Semantic Graph metadata and column-cardinality hints.
//
// IndexScan's 10%-of-FullScan io discount is a cost (bytes-moved) concern,
// not a row-count concern, and lives in package cost alongside the rest of
// §4.6's per-node cost formulas, even though spec §4.3 mentions it for
// context.
package cardinality

import (
	"math"

	"github.com/dolthub/semantic-sql/graph"
)

// DefaultScanRows is the fallback row-count estimate when an entity has no
// row_count metadata.
const DefaultScanRows int64 = 1_000_000

// ColumnRef identifies a column, qualified by its owning entity. It is the
// shared vocabulary used by logical/physical plans, the join-order
// optimizer, and the cost estimator for "a column on a table" — defined
// here, at the base of the dependency graph, so nothing above needs to
// duplicate it.
type ColumnRef struct {
	Entity string
	Column string
}

// ScanRows returns the estimated row count of a full scan over entity: its
// declared row_count if present, otherwise DefaultScanRows.
func ScanRows(entity *graph.EntityNode) int64 {
	if entity == nil || entity.RowCount == nil {
		return DefaultScanRows
	}
	return *entity.RowCount
}

// JoinOutputRows estimates the output row count of a join given the left
// and right input row counts and the relationship cardinality of the edge
// being joined on (spec §4.3):
//
//	1:1 -> min(L,R)
//	1:N -> R
//	N:1 -> L
//	N:M -> L * sqrt(R), clamped below the Cartesian product
func JoinOutputRows(left, right int64, cardinality graph.JoinCardinality) int64 {
	switch cardinality {
	case graph.OneToOne:
		if left < right {
			return left
		}
		return right
	case graph.OneToMany:
		return right
	case graph.ManyToOne:
		return left
	case graph.ManyToMany:
		fallthrough
	default:
		cartesian := float64(left) * float64(right)
		estimate := float64(left) * math.Sqrt(float64(right))
		if estimate > cartesian {
			estimate = cartesian
		}
		return int64(math.Round(estimate))
	}
}

// GroupByRows estimates the number of groups produced by grouping
// inputRows by groupBy, as the product of each column's distinctness
// selectivity times inputRows. An empty group-by always produces exactly 1
// row.
func GroupByRows(inputRows int64, groupBy []ColumnRef, g *graph.Graph) int64 {
	if len(groupBy) == 0 {
		return 1
	}

	selectivity := 1.0
	for _, col := range groupBy {
		selectivity *= groupByColumnSelectivity(g, col.Entity, col.Column)
	}

	return int64(math.Round(float64(inputRows) * selectivity))
}

// groupByColumnSelectivity estimates the fraction of rows that remain
// distinct when grouped by one column: high cardinality -> 0.5 (many
// distinct groups), low or unknown -> 0.1. This is deliberately a
// different, coarser mapping than the equality-filter selectivity in
// selectivity.go: a high-cardinality column picks out one specific value
// very selectively (0.001) but still produces many distinct groups when
// used to partition the whole table (0.5).
func groupByColumnSelectivity(g *graph.Graph, entity, column string) float64 {
	if g == nil {
		return 0.1
	}
	col, ok := g.Column(entity, column)
	if !ok {
		return 0.1
	}
	if col.Cardinality() == "high" {
		return 0.5
	}
	return 0.1
}
