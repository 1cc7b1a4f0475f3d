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

package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/semantic-sql/semmodel"
)

// modelFile is the YAML structural stand-in for the out-of-scope DSL: the
// same Calendar/Dimension/Table/Report shapes the semantic model defines,
// written as a plain YAML document rather than parsed from a bespoke
// grammar (SPEC_FULL.md §2).
type modelFile struct {
	Defaults   defaultsFile          `yaml:"defaults"`
	Calendars  map[string]calendarY  `yaml:"calendars"`
	Dimensions map[string]dimensionY `yaml:"dimensions"`
	Tables     map[string]tableY     `yaml:"tables"`
	Measures   map[string]measuresY  `yaml:"measures"` // keyed by owning table name
	Reports    map[string]reportY    `yaml:"reports"`
}

type calendarY struct {
	Kind  string `yaml:"kind"` // "generated" or "physical"
	Grain string `yaml:"grain"`
	// generated
	RangeStart string `yaml:"range_start"`
	RangeEnd   string `yaml:"range_end"`
	// physical
	SourceEntity    string              `yaml:"source_entity"`
	GrainColumns    map[string]string   `yaml:"grain_columns"`
	DrillPaths      map[string][]string `yaml:"drill_paths"`
	FiscalYearStart *int                `yaml:"fiscal_year_start"`
	WeekStart       *string             `yaml:"week_start"`
}

type dimensionY struct {
	SourceEntity string              `yaml:"source_entity"`
	KeyColumn    string              `yaml:"key_column"`
	Attributes   map[string]string   `yaml:"attributes"`
	DrillPaths   map[string][]string `yaml:"drill_paths"`
}

type slicerY struct {
	Kind string `yaml:"kind"` // "inline", "foreign_key", "via", "calculated"

	Column    string      `yaml:"column"`     // inline
	DataType  string      `yaml:"data_type"`  // inline, calculated
	Dimension string      `yaml:"dimension"`  // foreign_key
	KeyColumn string      `yaml:"key_column"` // foreign_key
	Through   string      `yaml:"through"`    // via
	Attribute string      `yaml:"attribute"`  // via
	Expr      interface{} `yaml:"expr"`       // calculated
}

type atomY struct {
	Column string `yaml:"column"`
	Agg    string `yaml:"agg"`
}

type timeBindingY struct {
	LocalColumn string `yaml:"local_column"`
	Calendar    string `yaml:"calendar"`
	Grain       string `yaml:"grain"`
}

type tableY struct {
	SourceEntity string                  `yaml:"source_entity"`
	Atoms        map[string]atomY        `yaml:"atoms"`
	TimeBindings map[string]timeBindingY `yaml:"time_bindings"`
	Slicers      map[string]slicerY      `yaml:"slicers"`
	Includes     []string                `yaml:"includes"`
}

type measureY struct {
	Expr       interface{} `yaml:"expr"`
	RowFilter  interface{} `yaml:"row_filter"`
	NullPolicy string      `yaml:"null_policy"`
}

type measuresY struct {
	Measures map[string]measureY `yaml:"measures"`
}

type groupItemY struct {
	Kind     string `yaml:"kind"` // "slicer" or "drill_path"
	Slicer   string `yaml:"slicer"`
	Calendar string `yaml:"calendar"`
	Path     string `yaml:"path"`
	Level    string `yaml:"level"`
}

type showItemY struct {
	Measure    string `yaml:"measure"`
	TimeSuffix string `yaml:"time_suffix"`
}

type sortItemY struct {
	Expr interface{} `yaml:"expr"`
	Desc bool        `yaml:"desc"`
}

type reportY struct {
	From    []string          `yaml:"from"`
	UseDate map[string]string `yaml:"use_date"`
	Group   []groupItemY      `yaml:"group"`
	Show    []showItemY       `yaml:"show"`
	Filters []interface{}     `yaml:"filters"`
	Sort    []sortItemY       `yaml:"sort"`
	Limit   *int              `yaml:"limit"`
}

// LoadModel reads a YAML semantic-model file and builds a semmodel.Model.
// spf13/cast coerces the YAML decoder's interface{}-typed names, operators
// and map keys to strings; scalar literal values (in measure expressions,
// filter predicates, literal args) are stored in LiteralExpr.Value exactly
// as the YAML decoder returned them, without conversion.
func LoadModel(path string) (*semmodel.Model, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading model file %q", path)
	}

	var f modelFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "config: parsing model file %q", path)
	}

	model := &semmodel.Model{
		Calendars:  map[string]*semmodel.Calendar{},
		Dimensions: map[string]*semmodel.Dimension{},
		Tables:     map[string]*semmodel.Table{},
		Measures:   map[string]*semmodel.MeasureBlock{},
		Reports:    map[string]*semmodel.Report{},
	}

	for name, c := range f.Calendars {
		cal, err := buildCalendar(name, c)
		if err != nil {
			return nil, err
		}
		model.Calendars[name] = cal
	}

	for name, d := range f.Dimensions {
		model.Dimensions[name] = &semmodel.Dimension{
			Name:         name,
			SourceEntity: d.SourceEntity,
			KeyColumn:    d.KeyColumn,
			Attributes:   d.Attributes,
			DrillPaths:   d.DrillPaths,
		}
	}

	for name, tb := range f.Tables {
		table, err := buildTable(name, tb)
		if err != nil {
			return nil, err
		}
		model.Tables[name] = table
	}

	for tableName, mb := range f.Measures {
		block := &semmodel.MeasureBlock{Table: tableName, Measures: map[string]*semmodel.Measure{}}
		for name, m := range mb.Measures {
			measure, err := buildMeasure(tableName, name, m)
			if err != nil {
				return nil, err
			}
			block.Measures[name] = measure
		}
		model.Measures[tableName] = block
	}

	defaults, err := buildDefaults(f.Defaults)
	if err != nil {
		return nil, err
	}
	model.Defaults = defaults

	for name, r := range f.Reports {
		report, err := buildReport(name, r)
		if err != nil {
			return nil, err
		}
		model.Reports[name] = report
	}

	return model, nil
}

func buildDefaults(f defaultsFile) (semmodel.Defaults, error) {
	policy := semmodel.NullPolicy(f.NullPolicy)
	switch policy {
	case "", semmodel.NullIgnore, semmodel.NullCoalesceZero, semmodel.NullOnZero:
	default:
		return semmodel.Defaults{}, errors.Errorf("config: unrecognized null_policy %q", f.NullPolicy)
	}
	if policy == "" {
		policy = semmodel.NullIgnore
	}
	return semmodel.Defaults{
		Calendar:        f.Calendar,
		FiscalYearStart: f.FiscalYearStart,
		WeekStart:       f.WeekStart,
		NullPolicy:      policy,
		DecimalPlaces:   f.DecimalPlaces,
	}, nil
}

func buildCalendar(name string, c calendarY) (*semmodel.Calendar, error) {
	switch c.Kind {
	case "generated", "":
		return &semmodel.Calendar{
			Name: name,
			Body: semmodel.GeneratedCalendar{
				Grain:      semmodel.Grain(c.Grain),
				RangeStart: c.RangeStart,
				RangeEnd:   c.RangeEnd,
			},
		}, nil
	case "physical":
		return &semmodel.Calendar{
			Name: name,
			Body: semmodel.PhysicalCalendar{
				SourceEntity:    c.SourceEntity,
				GrainColumns:    toGrainColumns(c.GrainColumns),
				DrillPaths:      toGrainPaths(c.DrillPaths),
				FiscalYearStart: c.FiscalYearStart,
				WeekStart:       c.WeekStart,
			},
		}, nil
	default:
		return nil, errors.Errorf("config: calendar %q: unrecognized kind %q", name, c.Kind)
	}
}

func toGrainColumns(m map[string]string) map[semmodel.Grain]string {
	out := make(map[semmodel.Grain]string, len(m))
	for k, v := range m {
		out[semmodel.Grain(k)] = v
	}
	return out
}

func toGrainPaths(m map[string][]string) map[string][]semmodel.Grain {
	out := make(map[string][]semmodel.Grain, len(m))
	for k, levels := range m {
		grains := make([]semmodel.Grain, len(levels))
		for i, l := range levels {
			grains[i] = semmodel.Grain(l)
		}
		out[k] = grains
	}
	return out
}

func buildTable(name string, tb tableY) (*semmodel.Table, error) {
	table := &semmodel.Table{
		Name:         name,
		SourceEntity: tb.SourceEntity,
		Atoms:        map[string]semmodel.Atom{},
		TimeBindings: map[string]semmodel.TimeBinding{},
		Slicers:      map[string]semmodel.Slicer{},
		Includes:     tb.Includes,
	}

	for atomName, a := range tb.Atoms {
		table.Atoms[atomName] = semmodel.Atom{Name: atomName, Column: a.Column, Agg: semmodel.AggType(a.Agg)}
	}
	for bindingName, b := range tb.TimeBindings {
		table.TimeBindings[bindingName] = semmodel.TimeBinding{
			LocalColumn: b.LocalColumn,
			Calendar:    b.Calendar,
			Grain:       semmodel.Grain(b.Grain),
		}
	}
	for slicerName, s := range tb.Slicers {
		slicer, err := buildSlicer(name, slicerName, s)
		if err != nil {
			return nil, err
		}
		table.Slicers[slicerName] = slicer
	}
	return table, nil
}

func buildSlicer(table, name string, s slicerY) (semmodel.Slicer, error) {
	switch s.Kind {
	case "inline", "":
		return semmodel.InlineSlicer{Name: name, Column: s.Column, DataType: s.DataType}, nil
	case "foreign_key":
		return semmodel.ForeignKeySlicer{Name: name, Dimension: s.Dimension, KeyColumn: s.KeyColumn}, nil
	case "via":
		return semmodel.ViaSlicer{Name: name, Through: s.Through, Attribute: s.Attribute}, nil
	case "calculated":
		expr, err := buildExpr(s.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "config: table %q slicer %q", table, name)
		}
		return semmodel.CalculatedSlicer{Name: name, Expr: expr, DataType: s.DataType}, nil
	default:
		return nil, errors.Errorf("config: table %q slicer %q: unrecognized kind %q", table, name, s.Kind)
	}
}

func buildMeasure(table, name string, m measureY) (*semmodel.Measure, error) {
	expr, err := buildExpr(m.Expr)
	if err != nil {
		return nil, errors.Wrapf(err, "config: table %q measure %q", table, name)
	}

	measure := &semmodel.Measure{Name: name, Table: table, Expr: expr}

	if m.RowFilter != nil {
		rowFilter, err := buildExpr(m.RowFilter)
		if err != nil {
			return nil, errors.Wrapf(err, "config: table %q measure %q row_filter", table, name)
		}
		measure.RowFilter = rowFilter
	}

	if m.NullPolicy != "" {
		policy := semmodel.NullPolicy(m.NullPolicy)
		measure.NullPolicy = &policy
	}

	return measure, nil
}

func buildReport(name string, r reportY) (*semmodel.Report, error) {
	report := &semmodel.Report{
		Name:    name,
		From:    r.From,
		UseDate: r.UseDate,
		Limit:   r.Limit,
	}

	for _, g := range r.Group {
		item, err := buildGroupItem(name, g)
		if err != nil {
			return nil, err
		}
		report.Group = append(report.Group, item)
	}

	for _, s := range r.Show {
		report.Show = append(report.Show, semmodel.ShowItem{Measure: s.Measure, TimeSuffix: s.TimeSuffix})
	}

	for _, raw := range r.Filters {
		expr, err := buildExpr(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "config: report %q filter", name)
		}
		report.Filters = append(report.Filters, semmodel.Filter{Expr: expr})
	}

	for _, s := range r.Sort {
		expr, err := buildExpr(s.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "config: report %q sort item", name)
		}
		report.Sort = append(report.Sort, semmodel.SortItem{Expr: expr, Desc: s.Desc})
	}

	return report, nil
}

func buildGroupItem(report string, g groupItemY) (semmodel.GroupItem, error) {
	switch g.Kind {
	case "slicer", "":
		return semmodel.InlineSlicerGroup{Slicer: g.Slicer}, nil
	case "drill_path":
		return semmodel.DrillPathGroup{Calendar: g.Calendar, Path: g.Path, Level: semmodel.Grain(g.Level)}, nil
	default:
		return nil, errors.Errorf("config: report %q: unrecognized group item kind %q", report, g.Kind)
	}
}

// buildExpr converts a YAML-decoded value into a semmodel.Expr. A bare
// scalar (string/number/bool) becomes a LiteralExpr; a map is expected to
// carry a "kind" discriminator naming one of the Expr variants.
func buildExpr(raw interface{}) (semmodel.Expr, error) {
	if raw == nil {
		return nil, errors.New("config: expected an expression, got none")
	}

	node, ok := asStringMap(raw)
	if !ok {
		return semmodel.LiteralExpr{Value: raw}, nil
	}

	kind, _ := node["kind"].(string)
	switch kind {
	case "column":
		return semmodel.ColumnExpr{Entity: cast.ToString(node["entity"]), Column: cast.ToString(node["column"])}, nil
	case "atom_ref":
		return semmodel.AtomRefExpr{Atom: cast.ToString(node["atom"])}, nil
	case "literal":
		return semmodel.LiteralExpr{Value: node["value"]}, nil
	case "not":
		inner, err := buildExpr(node["inner"])
		if err != nil {
			return nil, err
		}
		return semmodel.NotExpr{Inner: inner}, nil
	case "binary":
		left, err := buildExpr(node["left"])
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(node["right"])
		if err != nil {
			return nil, err
		}
		return semmodel.BinaryExpr{Op: semmodel.BinaryOp(cast.ToString(node["op"])), Left: left, Right: right}, nil
	case "agg_call", "scalar_call":
		args, err := buildExprList(node["args"])
		if err != nil {
			return nil, err
		}
		fn := cast.ToString(node["func"])
		if kind == "agg_call" {
			return semmodel.AggCallExpr{Func: fn, Args: args}, nil
		}
		return semmodel.ScalarCallExpr{Func: fn, Args: args}, nil
	default:
		return nil, errors.Errorf("config: unrecognized expression kind %q", kind)
	}
}

func buildExprList(raw interface{}) ([]semmodel.Expr, error) {
	list, ok := raw.([]interface{})
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, errors.New("config: expected a list of expressions")
	}
	exprs := make([]semmodel.Expr, len(list))
	for i, item := range list {
		expr, err := buildExpr(item)
		if err != nil {
			return nil, err
		}
		exprs[i] = expr
	}
	return exprs, nil
}

// asStringMap normalizes yaml.v2's map[interface{}]interface{} decoding
// into map[string]interface{}, the shape the rest of this file works with.
func asStringMap(raw interface{}) (map[string]interface{}, bool) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[cast.ToString(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}
