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

// Dependency analysis for Graph: required/affected sources, topological
// build order, and cycle detection over the target-dependency DAG (facts
// depending on the dimensions/calendars their grain and slicers reference,
// and on the other facts/dimensions named in their Includes).
// Grounded on original_source/archive/semantic/model_graph/dependencies.rs.
package graph

import (
	"sort"

	"github.com/dolthub/semantic-sql/semerr"
)

// buildDependencyDAG derives "A depends on B" edges for the target
// (fact/dimension/calendar) dependency graph. Two sources feed it:
//
//   - The join edges already registered: every JoinsToEdge {From, To} means
//     From depends on To (a fact's FK slicer or time binding depends on the
//     dimension or calendar it points at -- the "grain source" half of
//     spec §4.1's required_sources/topological_order).
//   - Each fact's Includes: names of other facts or dimensions its grain is
//     composed from, with no corresponding join edge (original_source's
//     dependencies.rs builds this half from fact.includes directly, not
//     from any join/slicer structure). An include naming an unknown entity
//     is an UndefinedReference; an include naming the fact itself, or a
//     cycle of includes, is left for DetectCycles/TopologicalOrder to
//     report.
func (g *Graph) buildDependencyDAG() error {
	for _, e := range g.joinEdges {
		g.depAdjacency[e.FromEntity] = append(g.depAdjacency[e.FromEntity], e.ToEntity)
	}

	for _, name := range g.model.SortedTableNames() {
		tbl := g.model.Tables[name]
		includes := append([]string(nil), tbl.Includes...)
		sort.Strings(includes)
		for _, dep := range includes {
			if _, ok := g.entityIndex[dep]; !ok {
				return semerr.UndefinedReference("include", dep, g.factAndDimensionNames())
			}
			g.depAdjacency[name] = append(g.depAdjacency[name], dep)
		}
	}

	for name := range g.depAdjacency {
		sort.Strings(g.depAdjacency[name])
	}
	return nil
}

// RequiredSources returns the physical source names required to build
// target, transitively over the target-dependency DAG. UnknownEntity is
// returned when target is neither a fact nor a dimension.
func (g *Graph) RequiredSources(target string) ([]string, error) {
	node, ok := g.Entity(target)
	if !ok || (node.Kind != KindFact && node.Kind != KindDimension) {
		return nil, semerr.UnknownEntity(target, g.factAndDimensionNames())
	}

	required := map[string]bool{}
	visited := map[string]bool{}
	stack := []string{target}

	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		if entity, ok := g.Entity(cur); ok {
			required[entity.PhysicalName] = true
		}
		for _, dep := range g.depAdjacency[cur] {
			stack = append(stack, dep)
		}
	}

	out := make([]string, 0, len(required))
	for s := range required {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// AffectedTargets is the inverse of RequiredSources: every fact whose
// RequiredSources contains source, plus every dimension whose physical
// source equals it.
func (g *Graph) AffectedTargets(source string) ([]string, error) {
	found := false
	for _, e := range g.entities {
		if e.PhysicalName == source {
			found = true
			break
		}
	}
	if !found {
		return nil, semerr.UnknownEntity(source, g.allPhysicalNames())
	}

	var affected []string
	for _, name := range g.sortedTargetNames() {
		sources, err := g.RequiredSources(name)
		if err != nil {
			continue
		}
		for _, s := range sources {
			if s == source {
				affected = append(affected, name)
				break
			}
		}
	}
	sort.Strings(affected)
	return affected, nil
}

// TopologicalOrder returns every target (fact/dimension/calendar) such that
// every dependency precedes its dependent. Returns CyclicDependency if the
// target-dependency DAG has a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if cycle := g.DetectCycles(); cycle != nil {
		return nil, semerr.CyclicDependency(cycle)
	}

	visited := map[string]bool{}
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		deps := append([]string(nil), g.depAdjacency[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			visit(dep)
		}
		order = append(order, name)
	}

	for _, name := range g.sortedTargetNames() {
		visit(name)
	}

	return order, nil
}

// DetectCycles returns the first cycle found in the target-dependency DAG
// (as a strongly connected component of size > 1, or a self-loop), with
// node names sorted and the first repeated at the end (spec §9 open
// question 2). Returns nil if the DAG is acyclic.
func (g *Graph) DetectCycles() []string {
	for _, name := range g.sortedTargetNames() {
		for _, dep := range g.depAdjacency[name] {
			if dep == name {
				return []string{name, name}
			}
		}
	}

	sccs := tarjanSCC(g.depAdjacency, g.sortedTargetNames())
	for _, scc := range sccs {
		if len(scc) > 1 {
			sort.Strings(scc)
			return append(scc, scc[0])
		}
	}
	return nil
}

// DependsOn reports whether a depends on b, directly or transitively, in
// the target-dependency DAG.
func (g *Graph) DependsOn(a, b string) bool {
	visited := map[string]bool{}
	stack := []string{a}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == b && cur != a {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, dep := range g.depAdjacency[cur] {
			if dep == b {
				return true
			}
			stack = append(stack, dep)
		}
	}
	return false
}

func (g *Graph) sortedTargetNames() []string {
	var names []string
	for _, e := range g.entities {
		if e.Kind == KindFact || e.Kind == KindDimension || e.Kind == KindCalendar {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (g *Graph) factAndDimensionNames() []string {
	var names []string
	for _, e := range g.entities {
		if e.Kind == KindFact || e.Kind == KindDimension {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (g *Graph) allPhysicalNames() []string {
	seen := map[string]bool{}
	for _, e := range g.entities {
		seen[e.PhysicalName] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// tarjanSCC computes strongly connected components of the graph described
// by adjacency, restricted to the given node set, using Tarjan's algorithm.
// Iteration order over nodes is the caller-supplied (sorted) order so
// results are deterministic.
func tarjanSCC(adjacency map[string][]string, nodes []string) [][]string {
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if _, ok := indices[w]; !ok {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, ok := indices[v]; !ok {
			strongConnect(v)
		}
	}

	return sccs
}
