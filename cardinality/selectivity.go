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

package cardinality

import (
	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/semmodel"
)

// Selectivity estimates the fraction of rows a filter predicate expr passes,
// per spec §4.3:
//
//	equality on a high-cardinality column -> 0.001
//	equality on a low-cardinality or hint-less column -> 0.1
//	range comparison (<, <=, >, >=) -> 0.33
//	inequality (!=) -> 1 - equality selectivity of the same column
//	AND -> product of child selectivities
//	OR -> a + b - a*b
//	NOT -> 1 - selectivity of the inner expression
//	anything else (unrecognized predicate shape) -> 1.0, i.e. no filtering
//
// defaultEntity supplies the owning entity for unqualified column
// references (spec's filters are always routed to a single source entity
// before selectivity is computed; see package plan's filter router).
func Selectivity(expr semmodel.Expr, g *graph.Graph, defaultEntity string) float64 {
	switch e := expr.(type) {
	case semmodel.NotExpr:
		return 1 - Selectivity(e.Inner, g, defaultEntity)
	case semmodel.BinaryExpr:
		switch e.Op {
		case semmodel.OpAnd:
			return Selectivity(e.Left, g, defaultEntity) * Selectivity(e.Right, g, defaultEntity)
		case semmodel.OpOr:
			a := Selectivity(e.Left, g, defaultEntity)
			b := Selectivity(e.Right, g, defaultEntity)
			return a + b - a*b
		case semmodel.OpEq:
			return equalitySelectivity(e, g, defaultEntity)
		case semmodel.OpNeq:
			return 1 - equalitySelectivity(e, g, defaultEntity)
		case semmodel.OpLt, semmodel.OpLte, semmodel.OpGt, semmodel.OpGte:
			return 0.33
		default:
			return 1.0
		}
	default:
		return 1.0
	}
}

// equalitySelectivity locates the column operand of an equality/inequality
// comparison (the other operand is expected to be a literal) and looks up
// its cardinality hint. A comparison with no column operand on either side
// is treated as hint-less (0.1).
func equalitySelectivity(e semmodel.BinaryExpr, g *graph.Graph, defaultEntity string) float64 {
	col := columnOperand(e.Left)
	if col == nil {
		col = columnOperand(e.Right)
	}
	if col == nil {
		return 0.1
	}

	entity := col.Entity
	if entity == "" {
		entity = defaultEntity
	}

	return filterColumnSelectivity(g, entity, col.Column)
}

func columnOperand(e semmodel.Expr) *semmodel.ColumnExpr {
	if c, ok := e.(semmodel.ColumnExpr); ok {
		return &c
	}
	return nil
}

// filterColumnSelectivity maps a column's cardinality hint to an
// equality-filter selectivity: high -> 0.001 (picks out roughly one value
// among many), low or unknown -> 0.1. See groupByColumnSelectivity in
// cardinality.go for why GROUP BY uses a different mapping for the same
// hint.
func filterColumnSelectivity(g *graph.Graph, entity, column string) float64 {
	if g == nil {
		return 0.1
	}
	col, ok := g.Column(entity, column)
	if !ok {
		return 0.1
	}
	if col.Cardinality() == "high" {
		return 0.001
	}
	return 0.1
}
