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

package cost

import (
	"math"

	"github.com/dolthub/semantic-sql/cardinality"
	"github.com/dolthub/semantic-sql/graph"
)

// Estimator computes a CostEstimate for a PhysicalPlan tree, consulting g
// for row-count and column-cardinality metadata. It holds no mutable state
// and is safe to reuse and share across compilations.
type Estimator struct {
	g *graph.Graph
}

// NewEstimator builds an Estimator backed by g. g may be nil, in which case
// every lookup falls back to its documented default (DefaultScanRows,
// unknown-cardinality selectivity).
func NewEstimator(g *graph.Graph) *Estimator {
	return &Estimator{g: g}
}

// Estimate prices p, recursing bottom-up over its inputs per spec §4.6's
// formulas.
func (e *Estimator) Estimate(p PhysicalPlan) CostEstimate {
	switch n := p.(type) {
	case TableScanNode:
		return e.estimateTableScan(n)
	case FilterNode:
		return e.estimateFilter(n)
	case HashJoinNode:
		return e.estimateJoin(n.Left, n.Right, n.EstimatedRows, true)
	case NestedLoopJoinNode:
		return e.estimateJoin(n.Left, n.Right, n.EstimatedRows, false)
	case HashAggregateNode:
		return e.estimateAggregate(n)
	case SortNode:
		return e.estimateSort(n)
	case LimitNode:
		return e.estimateLimit(n)
	case ProjectNode:
		return e.Estimate(n.Input)
	default:
		return CostEstimate{}
	}
}

func (e *Estimator) estimateTableScan(n TableScanNode) CostEstimate {
	var rows int64
	if n.EstimatedRows != nil {
		rows = *n.EstimatedRows
	} else {
		var entity *graph.EntityNode
		if e.g != nil {
			entity, _ = e.g.Entity(n.Table)
		}
		rows = cardinality.ScanRows(entity)
	}

	io := float64(rows)
	if _, indexed := n.Strategy.(IndexScanStrategy); indexed {
		io *= 0.1
	}

	return CostEstimate{RowsOut: rows, CPUCost: float64(rows), IOCost: io}
}

func (e *Estimator) estimateFilter(n FilterNode) CostEstimate {
	input := e.Estimate(n.Input)

	selectivity := 1.0
	for _, pred := range n.Predicates {
		selectivity *= cardinality.Selectivity(pred, e.g, n.Entity)
	}
	rowsOut := int64(math.Round(float64(input.RowsOut) * selectivity))

	return CostEstimate{
		RowsOut:    rowsOut,
		CPUCost:    input.CPUCost + float64(input.RowsOut),
		IOCost:     input.IOCost,
		MemoryCost: input.MemoryCost,
	}
}

// estimateJoin prices a join of left and right. hashJoin selects between
// the hash-join formula (cpu scales linearly in output rows, with a
// constant multiplier for hashing/probing, and a memory cost for the
// build-side hash table) and the nested-loop formula (cpu scales with the
// full cross product, no memory cost). Both join strategies share the same
// IO and output-row-count formulas.
func (e *Estimator) estimateJoin(left, right PhysicalPlan, estimatedRows *int64, hashJoin bool) CostEstimate {
	leftCost := e.Estimate(left)
	rightCost := e.Estimate(right)

	var rowsOut int64
	if estimatedRows != nil {
		rowsOut = *estimatedRows
	} else {
		card := e.joinCardinality(left, right)
		rowsOut = cardinality.JoinOutputRows(leftCost.RowsOut, rightCost.RowsOut, card)
	}

	io := leftCost.IOCost + rightCost.IOCost + float64(rowsOut)

	if hashJoin {
		memory := float64(leftCost.RowsOut)
		if rightCost.RowsOut < leftCost.RowsOut {
			memory = float64(rightCost.RowsOut)
		}
		cpu := leftCost.CPUCost + rightCost.CPUCost + 11.5*float64(rowsOut)
		return CostEstimate{RowsOut: rowsOut, CPUCost: cpu, IOCost: io, MemoryCost: memory}
	}

	cpu := leftCost.CPUCost + rightCost.CPUCost + float64(leftCost.RowsOut)*float64(rightCost.RowsOut)
	return CostEstimate{RowsOut: rowsOut, CPUCost: cpu, IOCost: io, MemoryCost: 0}
}

// joinCardinality approximates the relationship cardinality of an
// arbitrary join by looking for a direct JoinsTo edge between any table
// scanned on the left and any table scanned on the right. Nested joins
// (where a side is itself a join) are handled by collecting every leaf
// table on that side. When no edge is found -- the tables aren't directly
// related, or g is nil -- it defaults to many-to-many.
func (e *Estimator) joinCardinality(left, right PhysicalPlan) graph.JoinCardinality {
	if e.g == nil {
		return graph.ManyToMany
	}

	leftTables := leafTables(left)
	rightTables := leafTables(right)

	for _, lt := range leftTables {
		for _, rt := range rightTables {
			if edge, ok := e.g.GetJoinEdge(lt, rt); ok {
				return edge.Cardinality
			}
		}
	}
	return graph.ManyToMany
}

func leafTables(p PhysicalPlan) []string {
	var tables []string
	var walk func(PhysicalPlan)
	walk = func(p PhysicalPlan) {
		switch n := p.(type) {
		case TableScanNode:
			tables = append(tables, n.Table)
		case FilterNode:
			walk(n.Input)
		case HashJoinNode:
			walk(n.Left)
			walk(n.Right)
		case NestedLoopJoinNode:
			walk(n.Left)
			walk(n.Right)
		case HashAggregateNode:
			walk(n.Input)
		case SortNode:
			walk(n.Input)
		case LimitNode:
			walk(n.Input)
		case ProjectNode:
			walk(n.Input)
		}
	}
	walk(p)
	return tables
}

func (e *Estimator) estimateAggregate(n HashAggregateNode) CostEstimate {
	input := e.Estimate(n.Input)
	rowsOut := cardinality.GroupByRows(input.RowsOut, n.GroupBy, e.g)

	return CostEstimate{
		RowsOut:    rowsOut,
		CPUCost:    input.CPUCost + float64(input.RowsOut),
		IOCost:     input.IOCost,
		MemoryCost: float64(rowsOut),
	}
}

func (e *Estimator) estimateSort(n SortNode) CostEstimate {
	input := e.Estimate(n.Input)

	var cpuAdd float64
	if input.RowsOut > 1 {
		r := float64(input.RowsOut)
		cpuAdd = r * math.Log2(r)
	}

	return CostEstimate{
		RowsOut:    input.RowsOut,
		CPUCost:    input.CPUCost + cpuAdd,
		IOCost:     input.IOCost,
		MemoryCost: input.MemoryCost,
	}
}

func (e *Estimator) estimateLimit(n LimitNode) CostEstimate {
	input := e.Estimate(n.Input)
	rowsOut := input.RowsOut
	if int64(n.N) < rowsOut {
		rowsOut = int64(n.N)
	}
	return CostEstimate{
		RowsOut:    rowsOut,
		CPUCost:    input.CPUCost,
		IOCost:     input.IOCost,
		MemoryCost: input.MemoryCost,
	}
}

// SelectBest returns the cheapest plan among candidates by total
// scalarized cost, breaking ties by lower memory, then lower io, then
// preferring whichever candidate was enumerated first (spec §4.6). It
// reports ok=false for an empty candidate list.
func (e *Estimator) SelectBest(candidates []PhysicalPlan) (best PhysicalPlan, ok bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	bestIdx := 0
	bestCost := e.Estimate(candidates[0])

	for i := 1; i < len(candidates); i++ {
		c := e.Estimate(candidates[i])
		if isBetter(c, bestCost) {
			bestIdx = i
			bestCost = c
		}
	}

	return candidates[bestIdx], true
}

func isBetter(candidate, current CostEstimate) bool {
	if candidate.Total() != current.Total() {
		return candidate.Total() < current.Total()
	}
	if candidate.MemoryCost != current.MemoryCost {
		return candidate.MemoryCost < current.MemoryCost
	}
	if candidate.IOCost != current.IOCost {
		return candidate.IOCost < current.IOCost
	}
	return false
}
