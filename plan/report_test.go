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

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/semmodel"
)

// starModel builds sales -> customers (region attribute via ViaSlicer),
// sales -> products, sales -> date, with one measure total_amount; used
// across report planner tests.
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
					"customer":     semmodel.ForeignKeySlicer{Name: "customer", Dimension: "customers", KeyColumn: "customer_id"},
					"product":      semmodel.ForeignKeySlicer{Name: "product", Dimension: "products", KeyColumn: "product_id"},
					"region":       semmodel.InlineSlicer{Name: "region", Column: "region_code", DataType: "string"},
					"cust_region":  semmodel.ViaSlicer{Name: "cust_region", Through: "customer", Attribute: "region"},
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

	g, err := graph.New(model, graph.Stats{})
	require.NoError(t, err)
	return model, g
}

func TestBuildExtractsExplicitGroupBy(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.InlineSlicerGroup{Slicer: "region"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount"}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	agg := FindAggregate(logicalPlan)
	require.NotNil(t, agg)
	require.Len(t, agg.GroupBy, 1)
	assert.Equal(t, "sales", agg.GroupBy[0].Entity)
	assert.Equal(t, "region_code", agg.GroupBy[0].Column)
}

func TestBuildMultipleGroupByColumns(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name: "test_report",
		From: []string{"sales"},
		Group: []semmodel.GroupItem{
			semmodel.InlineSlicerGroup{Slicer: "region"},
			semmodel.DrillPathGroup{Calendar: "date", Path: "", Level: "day"},
		},
		Show: []semmodel.ShowItem{{Measure: "total_amount"}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	agg := FindAggregate(logicalPlan)
	require.NotNil(t, agg)
	assert.Len(t, agg.GroupBy, 2)
	assert.Equal(t, "date", agg.GroupBy[1].Entity)
	assert.Equal(t, "day", agg.GroupBy[1].Column)
}

func TestBuildViaSlicerResolvesThroughForeignKey(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.InlineSlicerGroup{Slicer: "cust_region"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount"}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	agg := FindAggregate(logicalPlan)
	require.NotNil(t, agg)
	require.Len(t, agg.GroupBy, 1)
	assert.Equal(t, "customers", agg.GroupBy[0].Entity)
	assert.Equal(t, "region_name", agg.GroupBy[0].Column)

	// The join tree should incorporate a join against customers, not a bare
	// Scan(sales), since cust_region lives on the customers entity.
	var sawJoin bool
	Walk(logicalPlan, func(n LogicalPlan) {
		if _, ok := n.(JoinNode); ok {
			sawJoin = true
		}
	})
	assert.True(t, sawJoin)
}

func TestBuildEmptyFromIsUndefinedReference(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	_, err := b.Build(&semmodel.Report{Name: "r", From: nil})
	require.Error(t, err)
}

func TestBuildMultiEntryFromIsUndefinedReference(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	_, err := b.Build(&semmodel.Report{Name: "r", From: []string{"sales", "sales"}})
	require.Error(t, err)
}

func TestBuildUnknownMeasureIsUndefinedReference(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{Name: "r", From: []string{"sales"}, Show: []semmodel.ShowItem{{Measure: "nope"}}}
	_, err := b.Build(report)
	require.Error(t, err)
}

func TestBuildSortAndLimitWrapFinalPlan(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	limit := 10
	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.InlineSlicerGroup{Slicer: "region"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount"}},
		Sort:  []semmodel.SortItem{{Expr: semmodel.ColumnExpr{Entity: "sales", Column: "region_code"}}},
		Limit: &limit,
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	limitNode, ok := logicalPlan.(LimitNode)
	require.True(t, ok)
	assert.Equal(t, 10, limitNode.N)

	_, ok = limitNode.Input.(SortNode)
	require.True(t, ok)
}

func TestBuildFilterRoutedToReachableCohortOnly(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.InlineSlicerGroup{Slicer: "region"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount"}},
		Filters: []semmodel.Filter{{Expr: semmodel.BinaryExpr{
			Op:    semmodel.OpEq,
			Left:  semmodel.ColumnExpr{Entity: "customers", Column: "region_name"},
			Right: semmodel.LiteralExpr{Value: "WEST"},
		}}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	var sawFilter bool
	Walk(logicalPlan, func(n LogicalPlan) {
		if _, ok := n.(FilterNode); ok {
			sawFilter = true
		}
	})
	assert.True(t, sawFilter, "filter on a reachable entity (customers) should be attached")
}

func TestBuildYtdMeasureSetsWindowFraming(t *testing.T) {
	model, g := starModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.DrillPathGroup{Calendar: "date", Level: "day"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount", TimeSuffix: "ytd"}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	agg := FindAggregate(logicalPlan)
	require.NotNil(t, agg)
	require.Len(t, agg.Aggregates, 1)
	assert.Equal(t, "ytd", agg.Aggregates[0].TimeSuffix)
	assert.Equal(t, "day", agg.Aggregates[0].OrderBy.Column)
}

// physicalCalendarModel is a sales-only model (no dimensions or slicers)
// whose calendar is backed by a physical table whose grain column is named nothing like a grain level -- the shape
// that defeated a name-matching heuristic for the date column.
func physicalCalendarModel(t *testing.T) (*semmodel.Model, *graph.Graph) {
	t.Helper()

	model := &semmodel.Model{
		Calendars: map[string]*semmodel.Calendar{
			"fiscal_date": {
				Name: "fiscal_date",
				Body: semmodel.PhysicalCalendar{
					SourceEntity: "fiscal_date",
					GrainColumns: map[semmodel.Grain]string{"day": "order_date"},
					DrillPaths:   map[string][]semmodel.Grain{"calendar": {"day"}},
				},
			},
		},
		Dimensions: map[string]*semmodel.Dimension{},
		Tables: map[string]*semmodel.Table{
			"sales": {
				Name:         "sales",
				SourceEntity: "fct_sales",
				Atoms: map[string]semmodel.Atom{
					"amount": {Name: "amount", Column: "amount", Agg: semmodel.AggSum},
				},
				TimeBindings: map[string]semmodel.TimeBinding{
					"order_date": {LocalColumn: "order_date", Calendar: "fiscal_date", Grain: "day"},
				},
				Slicers: map[string]semmodel.Slicer{},
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

	g, err := graph.New(model, graph.Stats{})
	require.NoError(t, err)
	return model, g
}

func TestBuildYtdMeasurePhysicalCalendarOrdersByResolvedColumn(t *testing.T) {
	model, g := physicalCalendarModel(t)
	b := NewBuilder(model, g)

	report := &semmodel.Report{
		Name:  "test_report",
		From:  []string{"sales"},
		Group: []semmodel.GroupItem{semmodel.DrillPathGroup{Calendar: "fiscal_date", Path: "calendar", Level: "day"}},
		Show:  []semmodel.ShowItem{{Measure: "total_amount", TimeSuffix: "ytd"}},
	}

	logicalPlan, err := b.Build(report)
	require.NoError(t, err)

	agg := FindAggregate(logicalPlan)
	require.NotNil(t, agg)
	require.Len(t, agg.Aggregates, 1)
	assert.Equal(t, "ytd", agg.Aggregates[0].TimeSuffix)
	assert.Equal(t, "order_date", agg.Aggregates[0].OrderBy.Column)
	assert.Empty(t, agg.Aggregates[0].PartitionBy)
}
