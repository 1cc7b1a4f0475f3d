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

package memo

import "github.com/dolthub/semantic-sql/graph"

// JoinGraph records one query's table set and answers the joinability
// questions the DP enumerator needs from the Semantic Graph's direct
// JoinsTo edges; it does not check that the tables asked about belong to
// that set. Grounded on
// original_source/tests/planner/join_graph_test.rs's
// are_joinable/get_join_edge/are_sets_joinable contract.
type JoinGraph struct {
	g      *graph.Graph
	tables []string
}

// Build returns a JoinGraph over g for the given tables.
func Build(g *graph.Graph, tables []string) *JoinGraph {
	return &JoinGraph{g: g, tables: append([]string(nil), tables...)}
}

// TableCount returns the number of tables this JoinGraph was built over.
func (jg *JoinGraph) TableCount() int { return len(jg.tables) }

// AreJoinable reports whether a direct JoinsTo edge connects a and b.
func (jg *JoinGraph) AreJoinable(a, b string) bool {
	_, ok := jg.g.GetJoinEdge(a, b)
	return ok
}

// GetJoinEdge returns the JoinsToEdge connecting a and b, if one exists.
func (jg *JoinGraph) GetJoinEdge(a, b string) (*graph.JoinsToEdge, bool) {
	return jg.g.GetJoinEdge(a, b)
}

// AreSetsJoinable reports whether any table in s1 is directly joinable to
// any table in s2.
func (jg *JoinGraph) AreSetsJoinable(s1, s2 []string) bool {
	for _, a := range s1 {
		for _, b := range s2 {
			if jg.AreJoinable(a, b) {
				return true
			}
		}
	}
	return false
}
