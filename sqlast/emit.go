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

package sqlast

import (
	"github.com/dolthub/semantic-sql/cost"
	"github.com/dolthub/semantic-sql/semerr"
	"github.com/dolthub/semantic-sql/semmodel"
)

// Emit walks a chosen physical plan and builds its structural query AST.
// The physical plan's shape is the layering the physical planner always
// produces: an optional Limit, over an optional Sort, over a Project that
// names the final SELECT list, over an optional Aggregate/Filter, over a
// join tree or a single scan. Emit peels these layers off top-down.
func Emit(p cost.PhysicalPlan) (*Query, error) {
	q := &Query{}
	node := p

	if lim, ok := node.(cost.LimitNode); ok {
		n := lim.N
		q.Limit = &n
		node = lim.Input
	}

	if sortNode, ok := node.(cost.SortNode); ok {
		for i, k := range sortNode.Keys {
			desc := i < len(sortNode.Desc) && sortNode.Desc[i]
			q.OrderBy = append(q.OrderBy, OrderItem{
				Expr: semmodel.ColumnExpr{Entity: k.Entity, Column: k.Column},
				Desc: desc,
			})
		}
		node = sortNode.Input
	}

	project, ok := node.(cost.ProjectNode)
	if !ok {
		return nil, semerr.InvalidPlan("sqlast: expected a Project node at the top of the physical plan, got %T", node)
	}
	for _, c := range project.Columns {
		q.Select = append(q.Select, SelectItem{Alias: c.Alias, Expr: c.Expr})
	}
	node = project.Input

	if agg, ok := node.(cost.HashAggregateNode); ok {
		for _, g := range agg.GroupBy {
			q.GroupBy = append(q.GroupBy, ColumnRef{Table: g.Entity, Column: g.Column})
		}
		node = agg.Input
	}

	if filter, ok := node.(cost.FilterNode); ok {
		q.Where = append(q.Where, filter.Predicates...)
		node = filter.Input
	}

	from, joins, err := emitFromClause(node)
	if err != nil {
		return nil, err
	}
	q.From = from
	q.Joins = joins

	return q, nil
}

// emitFromClause flattens a (possibly bushy) join tree into a FROM table
// plus a left-to-right JOIN sequence (spec §4.7: "FROM from the left-deep
// flattening of joins"). The first relation encountered in a pre-order
// walk becomes FROM; every join node contributes one JOIN clause for its
// right side once its left side has already been placed.
func emitFromClause(node cost.PhysicalPlan) (TableRef, []Join, error) {
	switch n := node.(type) {
	case cost.HashJoinNode:
		return flattenJoin(n.Left, n.Right, n.Kind, n.On)
	case cost.NestedLoopJoinNode:
		return flattenJoin(n.Left, n.Right, n.Kind, n.On)
	default:
		ref, err := fromTableRef(node)
		return ref, nil, err
	}
}

func flattenJoin(leftNode, rightNode cost.PhysicalPlan, kind cost.JoinKind, on []cost.JoinCondition) (TableRef, []Join, error) {
	from, joins, err := emitFromClause(leftNode)
	if err != nil {
		return TableRef{}, nil, err
	}

	rightFrom, rightJoins, err := emitFromClause(rightNode)
	if err != nil {
		return TableRef{}, nil, err
	}

	leftTable, err := relationName(leftNode)
	if err != nil {
		return TableRef{}, nil, err
	}
	rightTable, err := relationName(rightNode)
	if err != nil {
		return TableRef{}, nil, err
	}

	equalities := make([]Equality, len(on))
	for i, c := range on {
		equalities[i] = Equality{
			Left:  ColumnRef{Table: leftTable, Column: c.LeftColumn},
			Right: ColumnRef{Table: rightTable, Column: c.RightColumn},
		}
	}

	joins = append(joins, rightJoins...)
	joins = append(joins, Join{Kind: JoinKind(kind), Table: rightFrom, On: equalities})
	return from, joins, nil
}

// fromTableRef resolves one side of a join (or the whole tree, for a
// join-free report) to a FROM-position relation. A TableScanNode becomes a
// base TableRef; anything else (Project, Aggregate, Filter -- the shape of
// a pre-aggregated cohort subquery, per report.go's composeCohorts) is
// emitted recursively as its own Query and wrapped as a derived table.
func fromTableRef(node cost.PhysicalPlan) (TableRef, error) {
	if scan, ok := node.(cost.TableScanNode); ok {
		return TableRef{Table: scan.Table}, nil
	}

	sub, err := Emit(node)
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{Subquery: sub, Alias: subqueryAlias(node)}, nil
}

// relationName names a join side for qualifying its join columns: the base
// table name, or the derived table's alias when the side is a subquery.
func relationName(node cost.PhysicalPlan) (string, error) {
	ref, err := fromTableRef(leftmostFromNode(node))
	if err != nil {
		return "", err
	}
	if ref.Subquery != nil {
		return ref.Alias, nil
	}
	return ref.Table, nil
}

// leftmostFromNode descends through join nodes to find the node that will
// actually occupy FROM position once flattened -- the same node
// emitFromClause/fromTableRef would place first.
func leftmostFromNode(node cost.PhysicalPlan) cost.PhysicalPlan {
	switch n := node.(type) {
	case cost.HashJoinNode:
		return leftmostFromNode(n.Left)
	case cost.NestedLoopJoinNode:
		return leftmostFromNode(n.Left)
	default:
		return node
	}
}

// subqueryAlias derives a deterministic alias for a derived table from the
// first base table reached by descending into its leftmost input, e.g.
// "agg_sales" for a cohort built over the sales fact.
func subqueryAlias(node cost.PhysicalPlan) string {
	return "agg_" + leftmostBaseTable(node)
}

func leftmostBaseTable(node cost.PhysicalPlan) string {
	switch n := node.(type) {
	case cost.TableScanNode:
		return n.Table
	case cost.HashJoinNode:
		return leftmostBaseTable(n.Left)
	case cost.NestedLoopJoinNode:
		return leftmostBaseTable(n.Left)
	case cost.FilterNode:
		return leftmostBaseTable(n.Input)
	case cost.ProjectNode:
		return leftmostBaseTable(n.Input)
	case cost.HashAggregateNode:
		return leftmostBaseTable(n.Input)
	case cost.SortNode:
		return leftmostBaseTable(n.Input)
	case cost.LimitNode:
		return leftmostBaseTable(n.Input)
	default:
		return ""
	}
}
