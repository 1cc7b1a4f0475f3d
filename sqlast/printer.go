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
	"fmt"
	"strconv"
	"strings"

	"github.com/dolthub/semantic-sql/semmodel"
)

// Printer renders a Query into dialect-specific SQL text. The core emits
// only the structural AST (spec §4.7); turning that into quoted,
// dialect-correct SQL is explicitly out of scope (spec.md Non-goals) and
// left to an external collaborator. ANSIPrinter below is one illustrative
// implementation, not a dialect matrix.
type Printer interface {
	Print(q *Query) (string, error)
}

// ANSIPrinter renders ANSI-ish SQL: double-quoted identifiers, no
// dialect-specific function translation. Good enough to eyeball a compiled
// report's shape; not a substitute for a real dialect printer.
type ANSIPrinter struct{}

// Print renders q as a single SELECT statement.
func (ANSIPrinter) Print(q *Query) (string, error) {
	var b strings.Builder

	b.WriteString("SELECT ")
	for i, item := range q.Select {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := printExpr(item.Expr)
		if err != nil {
			return "", err
		}
		b.WriteString(expr)
		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(quoteIdent(item.Alias))
		}
	}

	b.WriteString("\nFROM ")
	from, err := printTableRef(q.From)
	if err != nil {
		return "", err
	}
	b.WriteString(from)

	for _, j := range q.Joins {
		b.WriteString("\n")
		b.WriteString(joinKeyword(j.Kind))
		b.WriteString(" ")
		table, err := printTableRef(j.Table)
		if err != nil {
			return "", err
		}
		b.WriteString(table)
		b.WriteString(" ON ")
		for i, eq := range j.On {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(printColumnRef(eq.Left))
			b.WriteString(" = ")
			b.WriteString(printColumnRef(eq.Right))
		}
	}

	if len(q.Where) > 0 {
		b.WriteString("\nWHERE ")
		for i, pred := range q.Where {
			if i > 0 {
				b.WriteString(" AND ")
			}
			expr, err := printExpr(pred)
			if err != nil {
				return "", err
			}
			b.WriteString(expr)
		}
	}

	if len(q.GroupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		for i, c := range q.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(printColumnRef(c))
		}
	}

	if len(q.OrderBy) > 0 {
		b.WriteString("\nORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			expr, err := printExpr(o.Expr)
			if err != nil {
				return "", err
			}
			b.WriteString(expr)
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}

	if q.Limit != nil {
		b.WriteString("\nLIMIT ")
		b.WriteString(strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		b.WriteString("\nOFFSET ")
		b.WriteString(strconv.Itoa(*q.Offset))
	}

	return b.String(), nil
}

func printTableRef(ref TableRef) (string, error) {
	if ref.Subquery != nil {
		sub, err := (ANSIPrinter{}).Print(ref.Subquery)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(\n%s\n) AS %s", indent(sub), quoteIdent(ref.Alias)), nil
	}
	return quoteIdent(ref.Table), nil
}

func printColumnRef(c ColumnRef) string {
	if c.Table == "" {
		return quoteIdent(c.Column)
	}
	return quoteIdent(c.Table) + "." + quoteIdent(c.Column)
}

func printExpr(e semmodel.Expr) (string, error) {
	switch v := e.(type) {
	case semmodel.ColumnExpr:
		return printColumnRef(ColumnRef{Table: v.Entity, Column: v.Column}), nil
	case semmodel.LiteralExpr:
		return printLiteral(v.Value), nil
	case semmodel.AggCallExpr:
		return printCall(v.Func, v.Args)
	case semmodel.ScalarCallExpr:
		return printCall(v.Func, v.Args)
	case semmodel.AtomRefExpr:
		return quoteIdent(v.Atom), nil
	case semmodel.BinaryExpr:
		left, err := printExpr(v.Left)
		if err != nil {
			return "", err
		}
		right, err := printExpr(v.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, v.Op, right), nil
	case semmodel.NotExpr:
		inner, err := printExpr(v.Inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	default:
		return "", fmt.Errorf("sqlast: unrenderable expression type %T", e)
	}
}

func printCall(fn string, args []semmodel.Expr) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		p, err := printExpr(a)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", ")), nil
}

func printLiteral(v interface{}) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func joinKeyword(kind JoinKind) string {
	switch kind {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL OUTER JOIN"
	default:
		return "JOIN"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
