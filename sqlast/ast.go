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

// Package sqlast implements the SQL-AST Emitter (spec §4.7): it walks a
// chosen cost.PhysicalPlan and builds a dialect-neutral Query, the
// structural AST an external dialect printer renders into SQL text.
// Quoting, identifier casing, and dialect-specific function names are
// deliberately absent here; they belong to the printer (see printer.go's
// minimal ANSI-ish stand-in).
package sqlast

import "github.com/dolthub/semantic-sql/semmodel"

// Query is the top-level structural AST for one compiled report: a single
// SELECT statement over a FROM/JOIN chain, with optional WHERE, GROUP BY,
// ORDER BY, LIMIT, and OFFSET clauses.
type Query struct {
	From    TableRef
	Joins   []Join
	Where   []semmodel.Expr // AND-ed conjuncts; empty means no WHERE clause
	GroupBy []ColumnRef
	Select  []SelectItem
	OrderBy []OrderItem
	Limit   *int
	Offset  *int
}

// TableRef names one relation in FROM or JOIN position: either a base
// table (Table set, Subquery nil) or a derived table (Subquery set, Alias
// required) -- the shape report.go's composeCohorts produces when a
// multi-fact report joins two already pre-aggregated per-fact queries.
type TableRef struct {
	Table    string
	Subquery *Query
	Alias    string
}

// JoinKind mirrors cost.JoinKind: the emitter only reads it, it never
// invents one, so there is no translation to do here beyond naming it.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
	RightJoin JoinKind = "right"
	FullJoin  JoinKind = "full"
)

// Join is one "JOIN table ON cond1 AND cond2 AND ..." clause.
type Join struct {
	Kind  JoinKind
	Table TableRef
	On    []Equality
}

// Equality is one "left = right" conjunct of a JOIN's ON clause.
type Equality struct {
	Left, Right ColumnRef
}

// ColumnRef is a table-qualified column reference in the emitted AST.
type ColumnRef struct {
	Table  string
	Column string
}

// SelectItem is one SELECT-list entry: an expression given an output name.
type SelectItem struct {
	Alias string
	Expr  semmodel.Expr
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr semmodel.Expr
	Desc bool
}
