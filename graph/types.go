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

// Package graph implements the Semantic Graph (spec §3/§4.1): a typed,
// immutable DAG-over-entities used for path finding, dependency ordering,
// and cycle detection. It is built once per compilation from a validated
// semantic model and never mutated afterward, so it needs no synchronization
// even when several compilations run concurrently over the same model.
//
// The graph keeps its nodes in flat slices with name->index maps rather
// than as a pointer graph, matching the teacher's own preference for owned,
// flat storage over cyclic pointer structures (see design notes in
// DESIGN.md): this sidesteps the question of cyclic ownership entirely,
// since join edges name their endpoint entities by string and adjacency
// lists are keyed by entity name, so no node points at another node.
package graph

// EntityKind classifies a graph node.
type EntityKind string

const (
	KindFact      EntityKind = "fact"
	KindDimension EntityKind = "dimension"
	KindCalendar  EntityKind = "calendar"
)

// SizeCategory is a coarse fallback bucket used when an exact row count is
// unavailable.
type SizeCategory string

const (
	SizeSmall   SizeCategory = "small"
	SizeMedium  SizeCategory = "medium"
	SizeLarge   SizeCategory = "large"
	SizeUnknown SizeCategory = ""
)

// EntityNode is a fact, dimension, or calendar in the graph.
type EntityNode struct {
	Name         string
	Kind         EntityKind
	PhysicalName string
	Schema       string
	RowCount     *int64
	SizeCategory SizeCategory
	Metadata     map[string]string
}

// ColumnNode is a column owned by an entity.
type ColumnNode struct {
	Entity     string
	Name       string
	DataType   string
	Nullable   bool
	Unique     bool
	PrimaryKey bool
	Metadata   map[string]string
}

// Cardinality returns the column-cardinality hint ("low"/"high"), or "" if
// unset (the cardinality/selectivity model treats "" as unknown).
func (c *ColumnNode) Cardinality() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["cardinality"]
}

// JoinCardinality classifies the multiplicity of a JoinsTo relationship.
type JoinCardinality string

const (
	OneToOne   JoinCardinality = "1:1"
	OneToMany  JoinCardinality = "1:N"
	ManyToOne  JoinCardinality = "N:1"
	ManyToMany JoinCardinality = "N:M"
)

// RelationshipSource records how a JoinsTo edge was derived.
type RelationshipSource string

const (
	SourceForeignKey        RelationshipSource = "foreign_key"
	SourceInferredFromNames RelationshipSource = "inferred_from_names"
	SourceUserDeclared      RelationshipSource = "user_declared"
)

// JoinColumnPair is one equality pair of a (possibly composite) join key.
type JoinColumnPair struct {
	LeftColumn  string
	RightColumn string
}

// JoinsToEdge is a directed join relationship between two entities.
type JoinsToEdge struct {
	FromEntity  string
	ToEntity    string
	JoinColumns []JoinColumnPair
	Cardinality JoinCardinality
	Source      RelationshipSource
}

// JoinEdge is one hop of a JoinPath: a simplified, single-column-pair view
// of a JoinsToEdge as it appears in a path. Its From/To fields always match
// the edge's originally stored orientation, even when a path traverses the
// edge from the "to" side toward the "from" side (spec §4.1: "edges
// preserve orientation as stored").
type JoinEdge struct {
	FromEntity  string
	ToEntity    string
	FromColumn  string
	ToColumn    string
	Cardinality JoinCardinality
	// Forward is true when this hop was walked from FromEntity toward
	// ToEntity (the edge's stored direction), false when walked the other
	// way. Used by IsSafePath to tell which side of a 1:N edge the walk
	// fans out from.
	Forward bool
}

// JoinPath is an ordered sequence of joins connecting two entities.
type JoinPath struct {
	Edges []JoinEdge
}

// NewJoinPath returns an empty path.
func NewJoinPath() JoinPath { return JoinPath{} }

// Len reports the number of hops in the path.
func (p JoinPath) Len() int { return len(p.Edges) }
