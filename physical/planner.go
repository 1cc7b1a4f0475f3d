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

// Package physical implements the Physical Planner (spec §4.5): lowering a
// plan.LogicalPlan into a cost.PhysicalPlan by choosing a scan strategy per
// table, a join algorithm and join order per join subtree, and carrying
// Aggregate/Sort/Limit/Project through unchanged in shape.
//
// Candidate selection is Selinger-style rather than exhaustive
// cross-product: at every decision point the planner keeps only the
// cheapest alternative found so far (cost.Estimator.SelectBest), the same
// discipline memo.Optimize already applies to join order. This keeps
// planning polynomial in the number of base tables instead of exponential
// in (scan strategies x join algorithms x join orders).
package physical

import (
	"sort"

	"github.com/dolthub/semantic-sql/cardinality"
	"github.com/dolthub/semantic-sql/cost"
	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/memo"
	"github.com/dolthub/semantic-sql/plan"
	"github.com/dolthub/semantic-sql/semerr"
	"github.com/dolthub/semantic-sql/semmodel"
)

// PhysicalPlan re-exports cost.PhysicalPlan: callers of this package work
// exclusively with physical plan trees and shouldn't need to import cost
// directly just to name the type.
type PhysicalPlan = cost.PhysicalPlan

// Planner lowers logical plans into physical plans for one Semantic Graph.
type Planner struct {
	g *graph.Graph
	e *cost.Estimator
}

// New builds a Planner over g, using the graph's column metadata to choose
// scan strategies and its statistics to cost candidates.
func New(g *graph.Graph) *Planner {
	return &Planner{g: g, e: cost.NewEstimator(g)}
}

// Plan lowers logical into a single cheapest physical plan.
func (p *Planner) Plan(logical plan.LogicalPlan) (PhysicalPlan, error) {
	return p.build(logical)
}

func (p *Planner) build(node plan.LogicalPlan) (PhysicalPlan, error) {
	switch n := node.(type) {
	case plan.ScanNode:
		return p.bestScan(n.Entity)
	case plan.FilterNode:
		return p.buildFilter(n)
	case plan.JoinNode:
		return p.buildJoin(n)
	case plan.AggregateNode:
		return p.buildAggregate(n)
	case plan.ProjectNode:
		return p.buildProject(n)
	case plan.SortNode:
		return p.buildSort(n)
	case plan.LimitNode:
		return p.buildLimit(n)
	default:
		return nil, semerr.InvalidPlan("physical planner: unhandled logical node %T", node)
	}
}

// bestScan enumerates a full scan plus one index scan per unique or
// primary-key column of entity (spec §4.5's scan strategy table) and
// returns whichever the cost estimator prefers.
func (p *Planner) bestScan(entity string) (PhysicalPlan, error) {
	if _, ok := p.g.Entity(entity); !ok {
		return nil, semerr.UnknownEntity(entity, p.g.AllEntityNames())
	}

	candidates := []PhysicalPlan{
		cost.TableScanNode{Table: entity, Strategy: cost.FullScanStrategy{}},
	}
	for _, col := range p.g.ColumnsForEntity(entity) {
		if col.PrimaryKey || col.Unique {
			candidates = append(candidates, cost.TableScanNode{
				Table:    entity,
				Strategy: cost.IndexScanStrategy{Index: col.Name},
			})
		}
	}

	best, ok := p.e.SelectBest(candidates)
	if !ok {
		return nil, semerr.InvalidPlan("no scan strategy available for entity %s", entity)
	}
	return best, nil
}

func (p *Planner) buildFilter(n plan.FilterNode) (PhysicalPlan, error) {
	input, err := p.build(n.Input)
	if err != nil {
		return nil, err
	}
	return cost.FilterNode{
		Input:      input,
		Predicates: n.Predicates,
		Entity:     filterEntity(n.Predicates),
	}, nil
}

// filterEntity picks the entity that qualifies Predicates' cost estimate
// (cardinality.Selectivity's defaultEntity): the first entity named by a
// qualified column reference, or "" if every reference is unqualified.
func filterEntity(predicates []semmodel.Expr) string {
	for _, pred := range predicates {
		if entities := semmodel.ReferencedEntities(pred); len(entities) > 0 {
			return entities[0]
		}
	}
	return ""
}

// buildJoin dispatches on the shape of the join subtree. A join built
// entirely from ScanNode/JoinNode (report.go's buildJoinTree: a star or
// snowflake join over base facts and dimensions) is reoptimized across its
// whole base-table set via memo.Optimize. A join with a non-base-table
// input (report.go's composeCohorts: a FULL OUTER join of two already
// pre-aggregated per-fact subqueries) has nothing for the join-order
// optimizer to reorder -- its two sides are built independently and joined
// directly, still choosing the cheaper of a hash join or nested-loop join.
func (p *Planner) buildJoin(n plan.JoinNode) (PhysicalPlan, error) {
	if isBaseTableJoinTree(n) {
		return p.buildBaseTableJoinTree(n)
	}
	return p.buildDirectJoin(n)
}

// isBaseTableJoinTree reports whether node is built entirely from
// ScanNode/JoinNode, i.e. every leaf reads directly off a base table rather
// than a derived subquery.
func isBaseTableJoinTree(node plan.LogicalPlan) bool {
	switch v := node.(type) {
	case plan.ScanNode:
		return true
	case plan.JoinNode:
		return isBaseTableJoinTree(v.Left) && isBaseTableJoinTree(v.Right)
	default:
		return false
	}
}

// buildBaseTableJoinTree flattens the join subtree to its base-table
// leaves, then hands join-order selection to memo.Optimize, instantiated
// with cost.PhysicalPlan as the candidate type. The leaf builder picks each
// base table's cheapest scan; the join builder picks the cheaper of a hash
// join or nested-loop join for every candidate pairing memo considers.
func (p *Planner) buildBaseTableJoinTree(n plan.JoinNode) (PhysicalPlan, error) {
	tables := flattenJoinLeaves(n)
	if len(tables) == 0 {
		return nil, semerr.InvalidPlan("join subtree has no base table leaves")
	}

	jg := memo.Build(p.g, tables)
	kind := joinKindOf(n.JoinType)

	var leafErr error
	leaf := func(table string) PhysicalPlan {
		scan, err := p.bestScan(table)
		if err != nil {
			leafErr = err
			return nil
		}
		return scan
	}

	join := func(left, right PhysicalPlan, leftSet, rightSet memo.TableSet) (PhysicalPlan, bool) {
		if left == nil || right == nil {
			return nil, false
		}
		if !jg.AreSetsJoinable(leftSet.ToSlice(), rightSet.ToSlice()) {
			return nil, false
		}
		on := p.joinConditions(leftSet.ToSlice(), rightSet.ToSlice())
		candidates := []PhysicalPlan{
			cost.HashJoinNode{Left: left, Right: right, Kind: kind, On: on},
			cost.NestedLoopJoinNode{Left: left, Right: right, Kind: kind, On: on},
		}
		best, ok := p.e.SelectBest(candidates)
		return best, ok
	}

	costFn := func(candidate PhysicalPlan) float64 {
		return p.e.Estimate(candidate).Total()
	}

	result, ok := memo.Optimize(jg, tables, leaf, join, costFn)
	if leafErr != nil {
		return nil, leafErr
	}
	if !ok {
		sort.Strings(tables)
		return nil, semerr.NoPath(tables[0], tables[len(tables)-1])
	}
	return result, nil
}

// buildDirectJoin builds n's two sides independently and joins them on
// n.On, without attempting to reorder across a base-table set: there is no
// base-table set here, just two already-complete subplans.
func (p *Planner) buildDirectJoin(n plan.JoinNode) (PhysicalPlan, error) {
	left, err := p.build(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := p.build(n.Right)
	if err != nil {
		return nil, err
	}

	on := make([]cost.JoinCondition, len(n.On))
	for i, c := range n.On {
		on[i] = cost.JoinCondition{LeftColumn: c.Left.Column, RightColumn: c.Right.Column}
	}
	kind := joinKindOf(n.JoinType)

	candidates := []PhysicalPlan{
		cost.HashJoinNode{Left: left, Right: right, Kind: kind, On: on},
		cost.NestedLoopJoinNode{Left: left, Right: right, Kind: kind, On: on},
	}
	best, ok := p.e.SelectBest(candidates)
	if !ok {
		return nil, semerr.InvalidPlan("no join strategy available")
	}
	return best, nil
}

func joinKindOf(t plan.JoinType) cost.JoinKind {
	switch t {
	case plan.JoinLeft:
		return cost.LeftJoin
	case plan.JoinRight:
		return cost.RightJoin
	case plan.JoinFull:
		return cost.FullJoin
	default:
		return cost.InnerJoin
	}
}

// joinConditions collects the JoinColumns of every direct edge between a
// table on the left side and a table on the right side, rendered without
// the owning table (cost.JoinCondition names only the column; which side it
// belongs to is implied by the enclosing join node).
func (p *Planner) joinConditions(left, right []string) []cost.JoinCondition {
	var conds []cost.JoinCondition
	for _, l := range left {
		for _, r := range right {
			edge, ok := p.g.GetJoinEdge(l, r)
			if !ok {
				continue
			}
			for _, jc := range edge.JoinColumns {
				if edge.FromEntity == l {
					conds = append(conds, cost.JoinCondition{LeftColumn: jc.LeftColumn, RightColumn: jc.RightColumn})
				} else {
					conds = append(conds, cost.JoinCondition{LeftColumn: jc.RightColumn, RightColumn: jc.LeftColumn})
				}
			}
		}
	}
	return conds
}

// flattenJoinLeaves walks a join subtree and collects its base ScanNode
// entities, in tree order.
func flattenJoinLeaves(node plan.LogicalPlan) []string {
	var leaves []string
	var walk func(plan.LogicalPlan)
	walk = func(n plan.LogicalPlan) {
		switch v := n.(type) {
		case plan.ScanNode:
			leaves = append(leaves, v.Entity)
		case plan.JoinNode:
			walk(v.Left)
			walk(v.Right)
		}
	}
	walk(node)
	return leaves
}

func (p *Planner) buildAggregate(n plan.AggregateNode) (PhysicalPlan, error) {
	input, err := p.build(n.Input)
	if err != nil {
		return nil, err
	}
	aggs := make([]cost.AggregateExpr, len(n.Aggregates))
	for i, a := range n.Aggregates {
		aggs[i] = cost.AggregateExpr{Output: a.Name, Expr: a.Expr}
	}
	return cost.HashAggregateNode{
		Input:      input,
		GroupBy:    n.GroupBy,
		Aggregates: aggs,
	}, nil
}

func (p *Planner) buildProject(n plan.ProjectNode) (PhysicalPlan, error) {
	input, err := p.build(n.Input)
	if err != nil {
		return nil, err
	}
	cols := make([]cost.ProjectedColumn, len(n.Columns))
	for i, c := range n.Columns {
		cols[i] = cost.ProjectedColumn{Alias: c.Alias, Expr: c.Expr}
	}
	return cost.ProjectNode{Input: input, Columns: cols}, nil
}

func (p *Planner) buildSort(n plan.SortNode) (PhysicalPlan, error) {
	input, err := p.build(n.Input)
	if err != nil {
		return nil, err
	}
	keys := make([]cardinality.ColumnRef, 0, len(n.Items))
	desc := make([]bool, 0, len(n.Items))
	for _, item := range n.Items {
		if col, ok := item.Expr.(semmodel.ColumnExpr); ok {
			keys = append(keys, cardinality.ColumnRef{Entity: col.Entity, Column: col.Column})
			desc = append(desc, item.Desc)
		}
	}
	return cost.SortNode{Input: input, Keys: keys, Desc: desc}, nil
}

func (p *Planner) buildLimit(n plan.LimitNode) (PhysicalPlan, error) {
	input, err := p.build(n.Input)
	if err != nil {
		return nil, err
	}
	return cost.LimitNode{Input: input, N: n.N}, nil
}
