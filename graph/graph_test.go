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

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/semantic-sql/semmodel"
)

// starSchema builds sales -> customers, sales -> products, sales -> (date
// calendar), a small star used across graph tests.
func starSchema(t *testing.T) *Graph {
	t.Helper()

	model := &semmodel.Model{
		Calendars: map[string]*semmodel.Calendar{
			"date": {
				Name: "date",
				Body: semmodel.GeneratedCalendar{
					Grain:      "day",
					RangeStart: "2020-01-01",
					RangeEnd:   "2030-12-31",
				},
			},
		},
		Dimensions: map[string]*semmodel.Dimension{
			"customers": {
				Name:         "customers",
				SourceEntity: "dim_customers",
				KeyColumn:    "customer_id",
				Attributes:   map[string]string{"region": "region"},
			},
			"products": {
				Name:         "products",
				SourceEntity: "dim_products",
				KeyColumn:    "product_id",
				Attributes:   map[string]string{"category": "category"},
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
		Measures: map[string]*semmodel.MeasureBlock{},
		Reports:  map[string]*semmodel.Report{},
	}

	g, err := New(model, Stats{})
	require.NoError(t, err)
	return g
}

func TestFindPathSameEntityIsEmpty(t *testing.T) {
	g := starSchema(t)
	path, err := g.FindPath("sales", "sales")
	require.NoError(t, err)
	assert.Equal(t, 0, path.Len())
}

func TestFindPathConnected(t *testing.T) {
	g := starSchema(t)
	path, err := g.FindPath("sales", "customers")
	require.NoError(t, err)
	require.Equal(t, 1, path.Len())
	assert.Equal(t, "sales", path.Edges[0].FromEntity)
	assert.Equal(t, "customers", path.Edges[0].ToEntity)
	assert.Equal(t, ManyToOne, path.Edges[0].Cardinality)
}

func TestFindPathNoPath(t *testing.T) {
	g, err := New(twoFactModel(nil, nil), Stats{})
	require.NoError(t, err)
	_, err = g.FindPath("fact_a", "fact_b")
	require.Error(t, err)
}

func TestFindPathIsConnectedWalk(t *testing.T) {
	g := starSchema(t)
	path, err := g.FindPath("customers", "sales")
	require.NoError(t, err)
	require.Equal(t, 1, path.Len())
	// Orientation is preserved as stored even though we walked customers->sales.
	assert.Equal(t, "sales", path.Edges[0].FromEntity)
	assert.Equal(t, "customers", path.Edges[0].ToEntity)
	assert.False(t, path.Edges[0].Forward)
}

func TestReachableEntitiesMatchesFindPath(t *testing.T) {
	g := starSchema(t)
	reachable, err := g.ReachableEntities("sales")
	require.NoError(t, err)

	for _, name := range g.AllEntityNames() {
		if name == "sales" {
			continue
		}
		_, pathErr := g.FindPath("sales", name)
		isReachable := containsString(reachable, name)
		assert.Equal(t, pathErr == nil, isReachable, "entity %s", name)
	}
}

func TestFindJoinTreeUnionDeduped(t *testing.T) {
	g := starSchema(t)
	tree, err := g.FindJoinTree("sales", []string{"customers", "products", "date"})
	require.NoError(t, err)
	assert.Len(t, tree.Edges, 3)

	seen := map[[2]string]bool{}
	for _, e := range tree.Edges {
		key := [2]string{e.FromEntity, e.ToEntity}
		require.False(t, seen[key], "duplicate edge %v", key)
		seen[key] = true
	}
}

func TestTopologicalOrderDependenciesFirst(t *testing.T) {
	g := starSchema(t)
	order, err := g.TopologicalOrder()
	require.NoError(t, err)

	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["customers"], pos["sales"])
	assert.Less(t, pos["products"], pos["sales"])
	assert.Less(t, pos["date"], pos["sales"])
}

func TestDetectCyclesNoneInStarSchema(t *testing.T) {
	g := starSchema(t)
	assert.Nil(t, g.DetectCycles())
}

func TestDetectCyclesSelfLoop(t *testing.T) {
	g := starSchema(t)
	g.depAdjacency["sales"] = append(g.depAdjacency["sales"], "sales")

	cycle := g.DetectCycles()
	require.NotNil(t, cycle)
	assert.Equal(t, []string{"sales", "sales"}, cycle)
}

func TestDetectCyclesRemovingAnyEdgeEliminatesIt(t *testing.T) {
	g := starSchema(t)
	// Inject a genuine 2-cycle: sales -> customers -> sales.
	g.depAdjacency["customers"] = append(g.depAdjacency["customers"], "sales")

	require.NotNil(t, g.DetectCycles())

	// Removing the sales -> customers edge breaks the cycle.
	saved := g.depAdjacency["sales"]
	g.depAdjacency["sales"] = removeString(saved, "customers")
	assert.Nil(t, g.DetectCycles())
	g.depAdjacency["sales"] = saved
	require.NotNil(t, g.DetectCycles())

	// Removing the customers -> sales edge also breaks the cycle.
	g.depAdjacency["customers"] = removeString(g.depAdjacency["customers"], "sales")
	assert.Nil(t, g.DetectCycles())
}

func removeString(xs []string, x string) []string {
	out := make([]string, 0, len(xs))
	for _, v := range xs {
		if v != x {
			out = append(out, v)
		}
	}
	return out
}

func TestDependsOn(t *testing.T) {
	g := starSchema(t)
	assert.True(t, g.DependsOn("sales", "customers"))
	assert.False(t, g.DependsOn("customers", "sales"))
}

func TestRequiredSources(t *testing.T) {
	g := starSchema(t)
	sources, err := g.RequiredSources("sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "dim_customers", "dim_products", "fct_sales"}, sources)
}

func TestAffectedTargets(t *testing.T) {
	g := starSchema(t)
	affected, err := g.AffectedTargets("dim_customers")
	require.NoError(t, err)
	assert.Contains(t, affected, "customers")
	assert.Contains(t, affected, "sales")
}

func TestHasAmbiguousPathFalseOnStarSchema(t *testing.T) {
	g := starSchema(t)
	assert.False(t, g.HasAmbiguousPath("sales", "customers"))
}

func TestUnknownEntityError(t *testing.T) {
	g := starSchema(t)
	_, err := g.FindPath("sales", "nope")
	require.Error(t, err)
}

// twoFactModel builds fact_a and fact_b (no joins between them) so Includes
// can be the only source of any dependency edge between them.
func twoFactModel(includesA, includesB []string) *semmodel.Model {
	return &semmodel.Model{
		Calendars:  map[string]*semmodel.Calendar{},
		Dimensions: map[string]*semmodel.Dimension{},
		Tables: map[string]*semmodel.Table{
			"fact_a": {Name: "fact_a", SourceEntity: "fct_a", Includes: includesA},
			"fact_b": {Name: "fact_b", SourceEntity: "fct_b", Includes: includesB},
		},
		Measures: map[string]*semmodel.MeasureBlock{},
		Reports:  map[string]*semmodel.Report{},
	}
}

func TestIncludesProducesFactToFactDependency(t *testing.T) {
	g, err := New(twoFactModel([]string{"fact_b"}, nil), Stats{})
	require.NoError(t, err)

	assert.True(t, g.DependsOn("fact_a", "fact_b"))
	assert.False(t, g.DependsOn("fact_b", "fact_a"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["fact_b"], pos["fact_a"])
}

func TestIncludesSelfReferenceIsCyclicDependency(t *testing.T) {
	g, err := New(twoFactModel([]string{"fact_a"}, nil), Stats{})
	require.NoError(t, err)

	cycle := g.DetectCycles()
	require.NotNil(t, cycle)
	assert.Equal(t, []string{"fact_a", "fact_a"}, cycle)

	_, err = g.TopologicalOrder()
	require.Error(t, err)
}

func TestIncludesMutualReferenceIsCyclicDependency(t *testing.T) {
	g, err := New(twoFactModel([]string{"fact_b"}, []string{"fact_a"}), Stats{})
	require.NoError(t, err)

	require.NotNil(t, g.DetectCycles())
	_, err = g.TopologicalOrder()
	require.Error(t, err)
}

func TestIncludesUnknownEntityIsUndefinedReference(t *testing.T) {
	_, err := New(twoFactModel([]string{"does_not_exist"}, nil), Stats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
