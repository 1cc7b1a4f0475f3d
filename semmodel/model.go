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

// Package semmodel holds the canonical, read-only Semantic Model (calendars,
// dimensions, fact tables, measures, reports) that the core consumes. It is
// produced by an external lowering pass (out of scope here, spec §1) and is
// assumed to already have every reference resolved: the core does not
// re-validate it.
package semmodel

import "sort"

// Grain names a level of aggregation within a calendar, e.g. "day", "month".
type Grain string

// NullPolicy controls how a measure treats null inputs.
type NullPolicy string

const (
	NullIgnore        NullPolicy = "ignore"
	NullCoalesceZero  NullPolicy = "coalesce_zero"
	NullOnZero        NullPolicy = "null_on_zero"
)

// AggType is the aggregation applied to a fact atom.
type AggType string

const (
	AggSum   AggType = "sum"
	AggAvg   AggType = "avg"
	AggCount AggType = "count"
	AggMin   AggType = "min"
	AggMax   AggType = "max"
)

// CalendarBody is a closed sum type: a calendar is either backed by a
// physical table or generated from a grain + date range.
type CalendarBody interface {
	isCalendarBody()
}

// PhysicalCalendar sources calendar grains from an external table.
type PhysicalCalendar struct {
	SourceEntity    string
	GrainColumns    map[Grain]string
	DrillPaths      map[string][]Grain
	FiscalYearStart *int // 1-12, nil uses Defaults.FiscalYearStart
	WeekStart       *string
}

func (PhysicalCalendar) isCalendarBody() {}

// GeneratedCalendar is materialized from a grain and an inclusive date range.
type GeneratedCalendar struct {
	Grain      Grain
	RangeStart string // inclusive, ISO-8601 date
	RangeEnd   string // inclusive, ISO-8601 date
}

func (GeneratedCalendar) isCalendarBody() {}

// Calendar is a named time dimension.
type Calendar struct {
	Name string
	Body CalendarBody
}

// SupportsGrain reports whether level is a supported grain of the calendar's
// named drill path (or its generated grain, for a GeneratedCalendar).
func (c *Calendar) SupportsGrain(path string, level Grain) bool {
	switch b := c.Body.(type) {
	case PhysicalCalendar:
		levels, ok := b.DrillPaths[path]
		if !ok {
			return false
		}
		for _, l := range levels {
			if l == level {
				return true
			}
		}
		return false
	case GeneratedCalendar:
		return b.Grain == level
	default:
		return false
	}
}

// SourceEntityName returns the physical source entity backing the calendar.
func (c *Calendar) SourceEntityName() string {
	switch b := c.Body.(type) {
	case PhysicalCalendar:
		return b.SourceEntity
	default:
		return c.Name
	}
}

// Dimension describes a conformed dimension table.
type Dimension struct {
	Name         string
	SourceEntity string
	KeyColumn    string
	Attributes   map[string]string   // attribute name -> physical column
	DrillPaths   map[string][]string // named path -> ordered level (attribute) list
}

// Slicer is a closed sum type for fact columns available to group or filter
// by: a foreign key to a dimension, an inline local column, a transitive
// attribute routed through a foreign key, or a computed expression.
type Slicer interface {
	isSlicer()
	SlicerName() string
}

type ForeignKeySlicer struct {
	Name      string
	Dimension string
	KeyColumn string
}

func (s ForeignKeySlicer) isSlicer()          {}
func (s ForeignKeySlicer) SlicerName() string { return s.Name }

type InlineSlicer struct {
	Name     string
	Column   string
	DataType string
}

func (s InlineSlicer) isSlicer()          {}
func (s InlineSlicer) SlicerName() string { return s.Name }

// ViaSlicer routes through an existing ForeignKeySlicer on the same table to
// expose one of the dimension's transitive attributes.
type ViaSlicer struct {
	Name      string
	Through   string // name of a ForeignKeySlicer on the same table
	Attribute string
}

func (s ViaSlicer) isSlicer()          {}
func (s ViaSlicer) SlicerName() string { return s.Name }

type CalculatedSlicer struct {
	Name     string
	Expr     Expr
	DataType string
}

func (s CalculatedSlicer) isSlicer()          {}
func (s CalculatedSlicer) SlicerName() string { return s.Name }

// Atom is a raw measurable column on a fact table.
type Atom struct {
	Name   string
	Column string
	Agg    AggType
}

// TimeBinding binds a local fact column to a calendar at a given grain.
type TimeBinding struct {
	LocalColumn string
	Calendar    string
	Grain       Grain
}

// Table is a fact table: atoms, time bindings, slicers, and includes.
type Table struct {
	Name         string
	SourceEntity string
	Atoms        map[string]Atom
	TimeBindings map[string]TimeBinding
	Slicers      map[string]Slicer
	// Includes names other facts or dimensions this fact's grain is composed
	// from, independent of any slicer or time binding: required_sources and
	// topological_order both close over "fact grain + includes" (spec §4.1).
	// Unlike a Slicer, an include carries no join columns -- it exists only
	// to order builds and to surface grain-composition cycles.
	Includes []string
}

// SortedSlicerNames returns slicer names in sorted order, for deterministic
// iteration (spec §4.1 tie-break discipline applies model-wide).
func (t *Table) SortedSlicerNames() []string {
	names := make([]string, 0, len(t.Slicers))
	for n := range t.Slicers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Measure is a named aggregate or derived expression over a fact's atoms.
type Measure struct {
	Name       string
	Table      string
	Expr       Expr
	RowFilter  Expr // optional, nil if absent
	NullPolicy *NullPolicy
}

// MeasureBlock groups the measures owned by one fact table.
type MeasureBlock struct {
	Table    string
	Measures map[string]*Measure
}

// GroupItem is a closed sum type for report `group` entries.
type GroupItem interface {
	isGroupItem()
}

type InlineSlicerGroup struct {
	Slicer string
}

func (InlineSlicerGroup) isGroupItem() {}

type DrillPathGroup struct {
	Calendar string
	Path     string
	Level    Grain
}

func (DrillPathGroup) isGroupItem() {}

// ShowItem is one `show` entry: a plain measure, or a measure suffixed with
// a running-window semantic (ytd/mtd/qtd).
type ShowItem struct {
	Measure    string
	TimeSuffix string // "", "ytd", "mtd", "qtd"
}

// Filter is one report-level predicate.
type Filter struct {
	Expr Expr
}

// SortItem is one ORDER BY entry.
type SortItem struct {
	Expr Expr
	Desc bool
}

// Report is a single analytical query over one or more fact tables.
type Report struct {
	Name    string
	From    []string
	UseDate map[string]string // calendar name -> bound local name, optional
	Group   []GroupItem
	Show    []ShowItem
	Filters []Filter
	Sort    []SortItem
	Limit   *int
}

// Defaults are model-wide fallbacks.
type Defaults struct {
	Calendar         string
	FiscalYearStart  int
	WeekStart        string
	NullPolicy       NullPolicy
	DecimalPlaces    int
}

// Model is the full canonical semantic model.
type Model struct {
	Calendars  map[string]*Calendar
	Dimensions map[string]*Dimension
	Tables     map[string]*Table
	Measures   map[string]*MeasureBlock // keyed by owning table name
	Reports    map[string]*Report
	Defaults   Defaults
}

// SortedTableNames returns fact table names sorted for deterministic
// iteration.
func (m *Model) SortedTableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for n := range m.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SortedDimensionNames returns dimension names sorted for deterministic
// iteration.
func (m *Model) SortedDimensionNames() []string {
	names := make([]string, 0, len(m.Dimensions))
	for n := range m.Dimensions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SortedCalendarNames returns calendar names sorted for deterministic
// iteration.
func (m *Model) SortedCalendarNames() []string {
	names := make([]string, 0, len(m.Calendars))
	for n := range m.Calendars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MeasureByName finds a measure across all measure blocks, returning the
// owning table name alongside it.
func (m *Model) MeasureByName(name string) (*Measure, string, bool) {
	for _, table := range m.SortedTableNames() {
		block, ok := m.Measures[table]
		if !ok {
			continue
		}
		if meas, ok := block.Measures[name]; ok {
			return meas, table, true
		}
	}
	return nil, "", false
}
