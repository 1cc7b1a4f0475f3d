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
	"sort"

	"github.com/dolthub/semantic-sql/semerr"
	"github.com/dolthub/semantic-sql/semmodel"
)

// EntityStats carries the externally supplied statistics for one entity
// (row count, size category, arbitrary metadata). The semantic model itself
// never carries statistics (spec §6.1): they come from the graph metadata
// input the caller assembles separately, e.g. from catalog statistics.
type EntityStats struct {
	RowCount     *int64
	SizeCategory SizeCategory
	Metadata     map[string]string
}

// ColumnStats carries the externally supplied statistics for one column.
type ColumnStats struct {
	Unique      bool
	PrimaryKey  bool
	Cardinality string // "low", "high", or "" for unknown
}

// Stats is the full external metadata input layered onto entities and
// columns discovered from the semantic model when building a Graph.
type Stats struct {
	Entities map[string]EntityStats
	Columns  map[string]ColumnStats // keyed by "entity.column"
}

type edgeRef struct {
	edge *JoinsToEdge
	// reverse is true when this adjacency entry was added so the edge can
	// be walked from ToEntity back toward FromEntity.
	reverse bool
}

// Graph is the immutable Semantic Graph for one compilation.
type Graph struct {
	model *semmodel.Model

	entities    []EntityNode
	entityIndex map[string]int

	columns      []ColumnNode
	columnByName map[string]int // "entity.column" -> index into columns

	joinEdges []*JoinsToEdge
	adjacency map[string][]edgeRef // entity name -> traversable edges

	// depAdjacency models the target-dependency DAG (facts -> the
	// dimensions/calendars they depend on and the targets they include),
	// used by topological_order,
	// detect_cycles, and depends_on.
	depAdjacency map[string][]string
}

// New builds a Graph from a validated semantic model and external stats.
// New checks the graph-level invariants spec §3 requires (unique node
// names, non-empty join_columns, and endpoints that exist) and returns
// UndefinedReference when a foreign-key dimension, calendar, or include
// does not resolve; it does not check for dependency cycles.
func New(model *semmodel.Model, stats Stats) (*Graph, error) {
	g := &Graph{
		model:        model,
		entityIndex:  map[string]int{},
		columnByName: map[string]int{},
		adjacency:    map[string][]edgeRef{},
		depAdjacency: map[string][]string{},
	}

	if err := g.addEntities(stats); err != nil {
		return nil, err
	}
	if err := g.addColumns(stats); err != nil {
		return nil, err
	}
	if err := g.addJoinEdges(); err != nil {
		return nil, err
	}
	if err := g.buildDependencyDAG(); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *Graph) addEntities(stats Stats) error {
	add := func(name string, kind EntityKind, physical string) error {
		if _, exists := g.entityIndex[name]; exists {
			return semerr.InvalidPlan("duplicate entity name across kinds: %s", name)
		}
		node := EntityNode{
			Name:         name,
			Kind:         kind,
			PhysicalName: physical,
			SizeCategory: SizeUnknown,
			Metadata:     map[string]string{},
		}
		if st, ok := stats.Entities[name]; ok {
			node.RowCount = st.RowCount
			node.SizeCategory = st.SizeCategory
			for k, v := range st.Metadata {
				node.Metadata[k] = v
			}
		}
		g.entityIndex[name] = len(g.entities)
		g.entities = append(g.entities, node)
		return nil
	}

	for _, name := range g.model.SortedCalendarNames() {
		cal := g.model.Calendars[name]
		if err := add(name, KindCalendar, cal.SourceEntityName()); err != nil {
			return err
		}
	}
	for _, name := range g.model.SortedDimensionNames() {
		dim := g.model.Dimensions[name]
		if err := add(name, KindDimension, dim.SourceEntity); err != nil {
			return err
		}
	}
	for _, name := range g.model.SortedTableNames() {
		tbl := g.model.Tables[name]
		if err := add(name, KindFact, tbl.SourceEntity); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) addColumn(entity, name, dataType string, stats Stats) {
	key := entity + "." + name
	if _, exists := g.columnByName[key]; exists {
		return
	}
	col := ColumnNode{Entity: entity, Name: name, DataType: dataType, Metadata: map[string]string{}}
	if st, ok := stats.Columns[key]; ok {
		col.Unique = st.Unique
		col.PrimaryKey = st.PrimaryKey
		if st.Cardinality != "" {
			col.Metadata["cardinality"] = st.Cardinality
		}
	}
	g.columnByName[key] = len(g.columns)
	g.columns = append(g.columns, col)
}

func (g *Graph) addColumns(stats Stats) error {
	for _, name := range g.model.SortedDimensionNames() {
		dim := g.model.Dimensions[name]
		g.addColumn(name, dim.KeyColumn, "unknown", stats)
		attrNames := sortedKeys(dim.Attributes)
		for _, attr := range attrNames {
			g.addColumn(name, dim.Attributes[attr], "unknown", stats)
		}
	}
	for _, name := range g.model.SortedTableNames() {
		tbl := g.model.Tables[name]
		atomNames := sortedAtomKeys(tbl.Atoms)
		for _, a := range atomNames {
			g.addColumn(name, tbl.Atoms[a].Column, "unknown", stats)
		}
		for _, s := range tbl.SortedSlicerNames() {
			switch sl := tbl.Slicers[s].(type) {
			case semmodel.InlineSlicer:
				g.addColumn(name, sl.Column, sl.DataType, stats)
			case semmodel.ForeignKeySlicer:
				g.addColumn(name, sl.KeyColumn, "unknown", stats)
			}
		}
	}
	return nil
}

func (g *Graph) addJoinEdges() error {
	for _, name := range g.model.SortedTableNames() {
		tbl := g.model.Tables[name]
		for _, s := range tbl.SortedSlicerNames() {
			fk, ok := tbl.Slicers[s].(semmodel.ForeignKeySlicer)
			if !ok {
				continue
			}
			dim, ok := g.model.Dimensions[fk.Dimension]
			if !ok {
				return semerr.UndefinedReference("dimension", fk.Dimension, g.model.SortedDimensionNames())
			}
			edge := &JoinsToEdge{
				FromEntity:  name,
				ToEntity:    fk.Dimension,
				JoinColumns: []JoinColumnPair{{LeftColumn: fk.KeyColumn, RightColumn: dim.KeyColumn}},
				Cardinality: ManyToOne,
				Source:      SourceForeignKey,
			}
			if err := g.registerEdge(edge); err != nil {
				return err
			}
		}
	}

	for _, name := range g.model.SortedTableNames() {
		tbl := g.model.Tables[name]
		for _, binding := range sortedBindings(tbl.TimeBindings) {
			cal, ok := g.model.Calendars[binding.Calendar]
			if !ok {
				return semerr.UndefinedReference("calendar", binding.Calendar, g.model.SortedCalendarNames())
			}
			source := cal.SourceEntityName()
			if _, isEntity := g.entityIndex[source]; !isEntity || source == name {
				continue
			}
			edge := &JoinsToEdge{
				FromEntity:  name,
				ToEntity:    source,
				JoinColumns: []JoinColumnPair{{LeftColumn: binding.LocalColumn, RightColumn: binding.LocalColumn}},
				Cardinality: ManyToOne,
				Source:      SourceForeignKey,
			}
			if err := g.registerEdge(edge); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Graph) registerEdge(edge *JoinsToEdge) error {
	if len(edge.JoinColumns) == 0 {
		return semerr.InvalidPlan("join edge %s->%s has no join columns", edge.FromEntity, edge.ToEntity)
	}
	if _, ok := g.entityIndex[edge.FromEntity]; !ok {
		return semerr.UnknownEntity(edge.FromEntity, g.AllEntityNames())
	}
	if _, ok := g.entityIndex[edge.ToEntity]; !ok {
		return semerr.UnknownEntity(edge.ToEntity, g.AllEntityNames())
	}
	g.joinEdges = append(g.joinEdges, edge)
	g.adjacency[edge.FromEntity] = append(g.adjacency[edge.FromEntity], edgeRef{edge: edge, reverse: false})
	if edge.FromEntity != edge.ToEntity {
		g.adjacency[edge.ToEntity] = append(g.adjacency[edge.ToEntity], edgeRef{edge: edge, reverse: true})
	}
	return nil
}

// Entity looks up an EntityNode by name.
func (g *Graph) Entity(name string) (*EntityNode, bool) {
	idx, ok := g.entityIndex[name]
	if !ok {
		return nil, false
	}
	return &g.entities[idx], true
}

// Column looks up a ColumnNode by entity and column name.
func (g *Graph) Column(entity, name string) (*ColumnNode, bool) {
	idx, ok := g.columnByName[entity+"."+name]
	if !ok {
		return nil, false
	}
	return &g.columns[idx], true
}

// ColumnsForEntity returns every known column of entity, in the order they
// were added to the graph (for a dimension, its key column then its
// attribute columns; for a fact, its atom columns then its slicer columns,
// per addColumns's construction order).
func (g *Graph) ColumnsForEntity(entity string) []ColumnNode {
	var cols []ColumnNode
	for _, c := range g.columns {
		if c.Entity == entity {
			cols = append(cols, c)
		}
	}
	return cols
}

// AllEntityNames returns every entity name in the graph, sorted.
func (g *Graph) AllEntityNames() []string {
	names := make([]string, 0, len(g.entities))
	for _, e := range g.entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// GetJoinEdge returns the JoinsToEdge connecting a and b in either
// direction, if one exists.
func (g *Graph) GetJoinEdge(a, b string) (*JoinsToEdge, bool) {
	for _, ref := range g.adjacency[a] {
		if (ref.edge.FromEntity == a && ref.edge.ToEntity == b) || (ref.edge.FromEntity == b && ref.edge.ToEntity == a) {
			return ref.edge, true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAtomKeys(m map[string]semmodel.Atom) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type namedBinding struct {
	Name string
	semmodel.TimeBinding
}

func sortedBindings(m map[string]semmodel.TimeBinding) []namedBinding {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]namedBinding, 0, len(keys))
	for _, k := range keys {
		out = append(out, namedBinding{Name: k, TimeBinding: m[k]})
	}
	return out
}
