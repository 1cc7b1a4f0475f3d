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

// Package plan implements the Logical Plan tree (spec §3 "Plan Trees") and
// the Report Planner (spec §4.2): lowering a semmodel.Report into a
// LogicalPlan ready for physical enumeration.
package plan

import (
	"github.com/dolthub/semantic-sql/cardinality"
	"github.com/dolthub/semantic-sql/semmodel"
)

// JoinType classifies a logical Join node.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// ColRef is an alias of cardinality.ColumnRef: the qualified-column
// vocabulary shared across plan, memo, physical, and cost so each package
// doesn't redeclare its own "entity.column" type.
type ColRef = cardinality.ColumnRef

// AggExpr is one aggregate computed by an Aggregate node: an output name,
// the underlying expression (usually an AggCallExpr over an AtomRefExpr),
// and the optional time-suffix semantic it realizes (spec §4.2 step 6).
type AggExpr struct {
	Name       string
	Expr       semmodel.Expr
	TimeSuffix string // "", "ytd", "mtd", "qtd"
	// PartitionBy and OrderBy are populated only when TimeSuffix != "": the
	// windowed running-aggregate is partitioned by the group-by columns
	// excluding the date dimension, ordered by the date column.
	PartitionBy []ColRef
	OrderBy     ColRef
}

// SortItem is one ORDER BY entry.
type SortItem struct {
	Expr semmodel.Expr
	Desc bool
}

// LogicalPlan is the closed sum type for logical plan nodes. Every node
// owns its input strictly; there is no sharing between nodes (spec §3).
type LogicalPlan interface {
	isLogicalPlan()
}

// ScanNode reads every row of one entity.
type ScanNode struct {
	Entity string
}

func (ScanNode) isLogicalPlan() {}

// FilterNode applies a conjunction of predicates to its input (spec §3:
// "Filter(input, predicates[])").
type FilterNode struct {
	Input      LogicalPlan
	Predicates []semmodel.Expr
}

func (FilterNode) isLogicalPlan() {}

// JoinNode joins two inputs on an equi-join condition.
type JoinNode struct {
	Left, Right LogicalPlan
	JoinType    JoinType
	On          []JoinCondition
	Cardinality string // informational hint from the graph edge, "" if unknown
}

func (JoinNode) isLogicalPlan() {}

// JoinCondition is one equality pair of a (possibly composite) join
// condition.
type JoinCondition struct {
	Left, Right ColRef
}

// AggregateNode groups its input and computes aggregate expressions.
type AggregateNode struct {
	Input      LogicalPlan
	GroupBy    []ColRef
	Aggregates []AggExpr
}

func (AggregateNode) isLogicalPlan() {}

// ProjectNode projects a final column list, aliasing each to an output
// name.
type ProjectNode struct {
	Input   LogicalPlan
	Columns []ProjectedColumn
}

func (ProjectNode) isLogicalPlan() {}

// ProjectedColumn is one SELECT list entry.
type ProjectedColumn struct {
	Alias string
	Expr  semmodel.Expr
}

// SortNode orders its input.
type SortNode struct {
	Input LogicalPlan
	Items []SortItem
}

func (SortNode) isLogicalPlan() {}

// LimitNode caps the number of rows produced by its input.
type LimitNode struct {
	Input LogicalPlan
	N     int
}

func (LimitNode) isLogicalPlan() {}

// Walk applies visit to node and recursively to every logical child,
// depth-first, mirroring semmodel.Walk for expression trees.
func Walk(node LogicalPlan, visit func(LogicalPlan)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case FilterNode:
		Walk(n.Input, visit)
	case JoinNode:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case AggregateNode:
		Walk(n.Input, visit)
	case ProjectNode:
		Walk(n.Input, visit)
	case SortNode:
		Walk(n.Input, visit)
	case LimitNode:
		Walk(n.Input, visit)
	}
}

// FindAggregate returns the first AggregateNode found in a depth-first walk
// of node, or nil if the tree has none.
func FindAggregate(node LogicalPlan) *AggregateNode {
	var found *AggregateNode
	Walk(node, func(n LogicalPlan) {
		if found != nil {
			return
		}
		if agg, ok := n.(AggregateNode); ok {
			found = &agg
		}
	})
	return found
}
