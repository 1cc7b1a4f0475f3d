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

// Package cost implements the Cost Estimator (spec §4.6): a multi-objective
// (cpu/io/memory) cost model over physical plan trees, plus the
// cheapest-candidate selection the Physical Planner uses when several
// strategies are available for the same logical operation.
//
// This package owns the PhysicalPlan sum type itself, even though the
// physical package is where plans are assembled and returned to callers.
// The Cost Estimator must structurally pattern-match every PhysicalPlan
// node variant to price it, and the Physical Planner must call back into
// the Cost Estimator to choose among candidates -- if physical owned
// PhysicalPlan, cost and physical would import each other. Defining the
// type here instead breaks the cycle: cost depends only on graph,
// cardinality and semmodel, physical depends on cost (and on memo, generically
// instantiated with cost.PhysicalPlan), and the spec's package ordering
// (cardinality -> memo -> cost -> physical) stays a valid DAG. See
// DESIGN.md's "memo" entry for the full writeup.
package cost

import (
	"github.com/dolthub/semantic-sql/cardinality"
	"github.com/dolthub/semantic-sql/semmodel"
)

// PhysicalPlan is the closed sum type of physical-plan tree nodes,
// mirroring the logical plan's shape but with concrete execution
// strategies chosen (e.g. hash join vs. nested loop, full scan vs. index
// scan).
type PhysicalPlan interface {
	isPhysicalPlan()
}

// ScanStrategy is the closed sum type of table-scan access methods.
type ScanStrategy interface {
	isScanStrategy()
}

// FullScanStrategy reads every row of the table.
type FullScanStrategy struct{}

func (FullScanStrategy) isScanStrategy() {}

// IndexScanStrategy reads through a named index, discounting the IO
// estimate (spec §4.6).
type IndexScanStrategy struct {
	Index string
}

func (IndexScanStrategy) isScanStrategy() {}

// TableScanNode reads all or part of one table. EstimatedRows, when set,
// overrides the row-count lookup the estimator would otherwise perform
// against the graph (used by tests and by callers that already know the
// answer, e.g. after constant folding).
type TableScanNode struct {
	Table         string
	Strategy      ScanStrategy
	EstimatedRows *int64
}

func (TableScanNode) isPhysicalPlan() {}

// FilterNode evaluates Predicates (conjunctively) against Input's output.
type FilterNode struct {
	Input      PhysicalPlan
	Predicates []semmodel.Expr
	// Entity qualifies unqualified column references within Predicates, for
	// cardinality.Selectivity's defaultEntity parameter.
	Entity string
}

func (FilterNode) isPhysicalPlan() {}

// JoinCondition is one equality pair of a (possibly composite) join
// condition, naming only the column on each side -- which table each side
// belongs to is implied by Left/Right of the enclosing join node.
type JoinCondition struct {
	LeftColumn  string
	RightColumn string
}

// JoinKind mirrors plan.JoinType: cost mustn't import plan (plan is above
// cost in the dependency order), so the physical planner translates
// plan.JoinType into this equivalent when it lowers a plan.JoinNode.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
	RightJoin JoinKind = "right"
	FullJoin  JoinKind = "full"
)

// HashJoinNode builds a hash table over the smaller side and probes it
// with the larger side.
type HashJoinNode struct {
	Left, Right   PhysicalPlan
	Kind          JoinKind
	On            []JoinCondition
	EstimatedRows *int64
}

func (HashJoinNode) isPhysicalPlan() {}

// NestedLoopJoinNode compares every row of Left against every row of
// Right; it needs no hash table but its CPU cost is quadratic.
type NestedLoopJoinNode struct {
	Left, Right   PhysicalPlan
	Kind          JoinKind
	On            []JoinCondition
	EstimatedRows *int64
}

func (NestedLoopJoinNode) isPhysicalPlan() {}

// AggregateExpr is one SELECT-list aggregate computed by a
// HashAggregateNode: an output name and the expression that computes it.
// The cost model only needs Aggregates' count, not their structure, but the
// structure survives into the physical plan because the SQL-AST emitter
// (package sqlast) needs it to build SELECT items.
type AggregateExpr struct {
	Output string
	Expr   semmodel.Expr
}

// HashAggregateNode groups Input's rows by GroupBy and evaluates
// Aggregates per group.
type HashAggregateNode struct {
	Input      PhysicalPlan
	GroupBy    []cardinality.ColumnRef
	Aggregates []AggregateExpr
}

func (HashAggregateNode) isPhysicalPlan() {}

// SortNode orders Input's rows by Keys.
type SortNode struct {
	Input PhysicalPlan
	Keys  []cardinality.ColumnRef
	Desc  []bool
}

func (SortNode) isPhysicalPlan() {}

// LimitNode truncates Input's output to at most N rows.
type LimitNode struct {
	Input PhysicalPlan
	N     int
}

func (LimitNode) isPhysicalPlan() {}

// ProjectedColumn is one SELECT-list entry a ProjectNode produces: an
// output alias and the expression that computes it. Mirrors
// plan.ProjectedColumn -- carried through physically (rather than
// flattened to a bare alias list) because the SQL-AST emitter needs the
// expression, not just its name.
type ProjectedColumn struct {
	Alias string
	Expr  semmodel.Expr
}

// ProjectNode narrows/renames Input's output columns. Projection is
// treated as free in this cost model: it changes column shape, not row
// count or scan volume.
type ProjectNode struct {
	Input   PhysicalPlan
	Columns []ProjectedColumn
}

func (ProjectNode) isPhysicalPlan() {}
