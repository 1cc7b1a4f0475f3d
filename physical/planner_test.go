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

package physical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/semantic-sql/cost"
	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/plan"
	"github.com/dolthub/semantic-sql/semmodel"
)

// starModel mirrors plan.starModel: sales -> customers, sales -> products,
// sales -> date, one measure. Duplicated here (rather than exported from
// plan) since physical's fixtures also need per-column uniqueness stats
// plan's tests don't care about.
func starModel(t *testing.T) (*semmodel.Model, *graph.Graph) {
	t.Helper()

	model := &semmodel.Model{
		Calendars: map[string]*semmodel.Calendar{
			"date": {
				Name: "date",
				Body: semmodel.GeneratedCalendar{Grain: "day", RangeStart: "2020-01-01", RangeEnd: "2030-12-31"},
			},
		},
		Dimensions: map[string]*semmodel.Dimension{
			"customers": {
				Name:         "customers",
				SourceEntity: "dim_customers",
				KeyColumn:    "customer_id",
				Attributes:   map[string]string{"region": "region_name"},
			},
			"products": {
				Name:         "products",
				SourceEntity: "dim_products",
				KeyColumn:    "product_id",
				Attributes:   map[string]string{"category": "category_name"},
			},
		},
		Tables: map[string]*semmodel.Table{
			"sales": {
				Name:         "sales",
				SourceEntity: "fct_sales",
				Atoms: map[string]semmodel.Atom{
					"amount": {Name: "amount", Column: "amount", Agg: semmodel.AggSum},
				},
				TimeBindings: map[string]semmodel.TimeBinding{
					"order_date": {LocalColumn: "order_date", Calendar: "date", Grain: "day"},
				},
				Slicers: map[string]semmodel.Slicer{
					"customer": semmodel.ForeignKeySlicer{Name: "customer", Dimension: "customers", KeyColumn: "customer_id"},
					"product":  semmodel.ForeignKeySlicer{Name: "product", Dimension: "products", KeyColumn: "product_id"},
					"region":   semmodel.InlineSlicer{Name: "region", Column: "region_code", DataType: "string"},
				},
			},
		},
		Measures: map[string]*semmodel.MeasureBlock{
			"sales": {
				Table: "sales",
				Measures: map[string]*semmodel.Measure{
					"total_amount": {
						Name:  "total_amount",
						Table: "sales",
						Expr:  semmodel.AggCallExpr{Func: "SUM", Args: []semmodel.Expr{semmodel.AtomRefExpr{Atom: "amount"}}},
					},
				},
			},
		},
		Reports: map[string]*semmodel.Report{},
	}

	rows := int64(1_000_000)
	g, err := graph.New(model, graph.Stats{
		Entities: map[string]graph.EntityStats{"sales": {RowCount: &rows}},
		Columns:  map[string]graph.ColumnStats{"customers.customer_id": {PrimaryKey: true}},
	})
	require.NoError(t, err)
	return model, g
}

func TestBestScanPrefersIndexScanOnPrimaryKey(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	result, err := p.bestScan("customers")
	require.NoError(t, err)

	scan, ok := result.(cost.TableScanNode)
	require.True(t, ok)
	assert.Equal(t, "customers", scan.Table)
	idx, ok := scan.Strategy.(cost.IndexScanStrategy)
	require.True(t, ok, "expected an index scan over the primary key, got %#v", scan.Strategy)
	assert.Equal(t, "customer_id", idx.Index)
}

func TestBestScanFullScanWhenNoUniqueColumns(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	result, err := p.bestScan("sales")
	require.NoError(t, err)

	scan, ok := result.(cost.TableScanNode)
	require.True(t, ok)
	assert.Equal(t, cost.FullScanStrategy{}, scan.Strategy)
}

func TestBestScanUnknownEntityFails(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	_, err := p.bestScan("nonexistent")
	assert.Error(t, err)
}

func TestPlanTwoTableJoinProducesHashOrNestedLoop(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.JoinNode{
		Left:     plan.ScanNode{Entity: "sales"},
		Right:    plan.ScanNode{Entity: "customers"},
		JoinType: plan.JoinInner,
		On:       []plan.JoinCondition{{Left: plan.ColRef{Entity: "sales", Column: "customer_id"}, Right: plan.ColRef{Entity: "customers", Column: "customer_id"}}},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	switch j := result.(type) {
	case cost.HashJoinNode:
		assertJoinSides(t, j.Left, j.Right)
	case cost.NestedLoopJoinNode:
		assertJoinSides(t, j.Left, j.Right)
	default:
		t.Fatalf("expected a join node, got %T", result)
	}
}

func assertJoinSides(t *testing.T, left, right cost.PhysicalPlan) {
	t.Helper()
	tables := map[string]bool{}
	for _, side := range []cost.PhysicalPlan{left, right} {
		scan, ok := side.(cost.TableScanNode)
		require.True(t, ok)
		tables[scan.Table] = true
	}
	assert.True(t, tables["sales"])
	assert.True(t, tables["customers"])
}

func TestPlanJoinCarriesGraphJoinColumns(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.JoinNode{
		Left:  plan.ScanNode{Entity: "sales"},
		Right: plan.ScanNode{Entity: "customers"},
	}
	result, err := p.Plan(logical)
	require.NoError(t, err)

	var on []cost.JoinCondition
	switch j := result.(type) {
	case cost.HashJoinNode:
		on = j.On
	case cost.NestedLoopJoinNode:
		on = j.On
	default:
		t.Fatalf("expected a join node, got %T", result)
	}
	require.Len(t, on, 1)
	assert.Equal(t, "customer_id", on[0].LeftColumn)
	assert.Equal(t, "customer_id", on[0].RightColumn)
}

func TestPlanThreeTableStarUsesJoinOrderOptimizer(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	// sales joins both customers and products, but customers and products
	// never join directly: the physical plan must still produce a single
	// bushy/left-deep tree covering all three via memo.Optimize.
	logical := plan.JoinNode{
		Left: plan.JoinNode{
			Left:  plan.ScanNode{Entity: "sales"},
			Right: plan.ScanNode{Entity: "customers"},
		},
		Right: plan.ScanNode{Entity: "products"},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	leaves := collectScanTables(result)
	assert.ElementsMatch(t, []string{"sales", "customers", "products"}, leaves)
}

func collectScanTables(p cost.PhysicalPlan) []string {
	var out []string
	var walk func(cost.PhysicalPlan)
	walk = func(n cost.PhysicalPlan) {
		switch v := n.(type) {
		case cost.TableScanNode:
			out = append(out, v.Table)
		case cost.HashJoinNode:
			walk(v.Left)
			walk(v.Right)
		case cost.NestedLoopJoinNode:
			walk(v.Left)
			walk(v.Right)
		case cost.FilterNode:
			walk(v.Input)
		case cost.HashAggregateNode:
			walk(v.Input)
		case cost.SortNode:
			walk(v.Input)
		case cost.LimitNode:
			walk(v.Input)
		case cost.ProjectNode:
			walk(v.Input)
		}
	}
	walk(p)
	return out
}

func TestPlanFilterWrapsInputAndCarriesEntity(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.FilterNode{
		Input: plan.ScanNode{Entity: "sales"},
		Predicates: []semmodel.Expr{semmodel.BinaryExpr{
			Op:    semmodel.OpEq,
			Left:  semmodel.ColumnExpr{Entity: "sales", Column: "region_code"},
			Right: semmodel.LiteralExpr{Value: "WEST"},
		}},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	f, ok := result.(cost.FilterNode)
	require.True(t, ok)
	assert.Equal(t, "sales", f.Entity)
	assert.Len(t, f.Predicates, 1)
	_, ok = f.Input.(cost.TableScanNode)
	assert.True(t, ok)
}

func TestPlanAggregateRendersAggregateLabels(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.AggregateNode{
		Input:   plan.ScanNode{Entity: "sales"},
		GroupBy: []plan.ColRef{{Entity: "sales", Column: "region_code"}},
		Aggregates: []plan.AggExpr{
			{Name: "total_amount", Expr: semmodel.AggCallExpr{Func: "SUM", Args: []semmodel.Expr{semmodel.ColumnExpr{Entity: "sales", Column: "amount"}}}},
		},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	agg, ok := result.(cost.HashAggregateNode)
	require.True(t, ok)
	require.Len(t, agg.Aggregates, 1)
	assert.Equal(t, "total_amount", agg.Aggregates[0].Output)
	assert.Equal(t, semmodel.AggCallExpr{Func: "SUM", Args: []semmodel.Expr{semmodel.ColumnExpr{Entity: "sales", Column: "amount"}}}, agg.Aggregates[0].Expr)
	require.Len(t, agg.GroupBy, 1)
	assert.Equal(t, "region_code", agg.GroupBy[0].Column)
}

func TestPlanSortKeepsOnlyColumnKeys(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.SortNode{
		Input: plan.ScanNode{Entity: "sales"},
		Items: []plan.SortItem{
			{Expr: semmodel.ColumnExpr{Entity: "sales", Column: "region_code"}, Desc: true},
			{Expr: semmodel.AggCallExpr{Func: "SUM", Args: nil}, Desc: false},
		},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	sortNode, ok := result.(cost.SortNode)
	require.True(t, ok)
	require.Len(t, sortNode.Keys, 1, "non-column sort expressions are dropped from the physical sort key list")
	assert.Equal(t, "region_code", sortNode.Keys[0].Column)
	assert.True(t, sortNode.Desc[0])
}

func TestPlanLimitAndProjectPassThrough(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	logical := plan.LimitNode{
		Input: plan.ProjectNode{
			Input:   plan.ScanNode{Entity: "sales"},
			Columns: []plan.ProjectedColumn{{Alias: "region", Expr: semmodel.ColumnExpr{Entity: "sales", Column: "region_code"}}},
		},
		N: 10,
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	limit, ok := result.(cost.LimitNode)
	require.True(t, ok)
	assert.Equal(t, 10, limit.N)
	project, ok := limit.Input.(cost.ProjectNode)
	require.True(t, ok)
	require.Len(t, project.Columns, 1)
	assert.Equal(t, "region", project.Columns[0].Alias)
}

func TestPlanUnreachableJoinFails(t *testing.T) {
	model := &semmodel.Model{
		Tables: map[string]*semmodel.Table{
			"a": {Name: "a", SourceEntity: "fct_a"},
			"b": {Name: "b", SourceEntity: "fct_b"},
		},
	}
	g, err := graph.New(model, graph.Stats{})
	require.NoError(t, err)
	p := New(g)

	logical := plan.JoinNode{Left: plan.ScanNode{Entity: "a"}, Right: plan.ScanNode{Entity: "b"}}
	_, err = p.Plan(logical)
	assert.Error(t, err)
}

// TestPlanDirectJoinOfPreAggregatedSubqueries exercises report.go's
// composeCohorts shape: a JoinNode whose sides are themselves
// Project(Aggregate(...)) subtrees, as produced when a multi-fact report's
// cohorts are combined via a FULL OUTER join on their shared group-by key.
// This must not be routed through the base-table join-order optimizer (its
// leaves aren't base tables), just built directly.
func TestPlanDirectJoinOfPreAggregatedSubqueries(t *testing.T) {
	_, g := starModel(t)
	p := New(g)

	leftCohort := plan.ProjectNode{
		Input: plan.AggregateNode{
			Input:   plan.ScanNode{Entity: "sales"},
			GroupBy: []plan.ColRef{{Entity: "sales", Column: "region_code"}},
			Aggregates: []plan.AggExpr{
				{Name: "total_amount", Expr: semmodel.AggCallExpr{Func: "SUM", Args: []semmodel.Expr{semmodel.ColumnExpr{Entity: "sales", Column: "amount"}}}},
			},
		},
		Columns: []plan.ProjectedColumn{
			{Alias: "region_code", Expr: semmodel.ColumnExpr{Entity: "sales", Column: "region_code"}},
			{Alias: "total_amount", Expr: semmodel.ColumnExpr{Entity: "sales", Column: "total_amount"}},
		},
	}
	rightCohort := plan.ProjectNode{
		Input: plan.AggregateNode{
			Input:   plan.ScanNode{Entity: "sales"},
			GroupBy: []plan.ColRef{{Entity: "sales", Column: "region_code"}},
			Aggregates: []plan.AggExpr{
				{Name: "refund_amount", Expr: semmodel.AggCallExpr{Func: "SUM", Args: []semmodel.Expr{semmodel.ColumnExpr{Entity: "sales", Column: "amount"}}}},
			},
		},
		Columns: []plan.ProjectedColumn{
			{Alias: "region_code", Expr: semmodel.ColumnExpr{Entity: "sales", Column: "region_code"}},
			{Alias: "refund_amount", Expr: semmodel.ColumnExpr{Entity: "sales", Column: "refund_amount"}},
		},
	}

	logical := plan.JoinNode{
		Left:     leftCohort,
		Right:    rightCohort,
		JoinType: plan.JoinFull,
		On:       []plan.JoinCondition{{Left: plan.ColRef{Entity: "sales", Column: "region_code"}, Right: plan.ColRef{Entity: "sales", Column: "region_code"}}},
	}

	result, err := p.Plan(logical)
	require.NoError(t, err)

	var on []cost.JoinCondition
	var kind cost.JoinKind
	var left, right cost.PhysicalPlan
	switch j := result.(type) {
	case cost.HashJoinNode:
		on, kind, left, right = j.On, j.Kind, j.Left, j.Right
	case cost.NestedLoopJoinNode:
		on, kind, left, right = j.On, j.Kind, j.Left, j.Right
	default:
		t.Fatalf("expected a join node, got %T", result)
	}

	assert.Equal(t, cost.FullJoin, kind)
	require.Len(t, on, 1)
	assert.Equal(t, "region_code", on[0].LeftColumn)
	assert.Equal(t, "region_code", on[0].RightColumn)

	_, ok := left.(cost.ProjectNode)
	assert.True(t, ok, "left side should remain a built Project(Aggregate(...)) subplan, got %T", left)
	_, ok = right.(cost.ProjectNode)
	assert.True(t, ok, "right side should remain a built Project(Aggregate(...)) subplan, got %T", right)
}

// TestEndToEndFromReportToPhysicalPlan exercises plan.Builder -> physical.Planner
// together, confirming the two packages' node shapes line up.
func TestEndToEndFromReportToPhysicalPlan(t *testing.T) {
	model, g := starModel(t)
	b := plan.NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "sales_by_region",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.InlineSlicerGroup{Slicer: "region"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount"}},
	}

	logical, err := b.Build(report)
	require.NoError(t, err)

	result, err := New(g).Plan(logical)
	require.NoError(t, err)

	project, ok := result.(cost.ProjectNode)
	require.True(t, ok, "expected the top-level node to remain a Project, got %T", result)
	agg, ok := project.Input.(cost.HashAggregateNode)
	require.True(t, ok, "expected Project's input to be a HashAggregate, got %T", project.Input)
	assert.Len(t, agg.Aggregates, 1)
}
