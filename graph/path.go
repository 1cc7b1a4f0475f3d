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

// Path finding over the entity subgraph. Grounded on
// original_source/src/semantic/model_graph/path.rs: BFS with parent-pointer
// backtracking (O(V) memory, not O(E*P)) for find_path, and an iterative
// depth-bounded DFS with a per-branch visited set for find_all_paths.
package graph

import (
	"sort"

	"github.com/dolthub/semantic-sql/semerr"
)

const defaultMaxDepth = 5

type parentInfo struct {
	parent string
	via    edgeRef
}

// FindPath returns the shortest JoinPath from `from` to `to`, or NoPath if
// none exists. FindPath(A, A) returns an empty path.
func (g *Graph) FindPath(from, to string) (JoinPath, error) {
	if from == to {
		return NewJoinPath(), nil
	}
	if _, ok := g.Entity(from); !ok {
		return JoinPath{}, semerr.UnknownEntity(from, g.AllEntityNames())
	}
	if _, ok := g.Entity(to); !ok {
		return JoinPath{}, semerr.UnknownEntity(to, g.AllEntityNames())
	}

	visited := map[string]bool{from: true}
	parents := map[string]parentInfo{}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, ref := range g.sortedAdjacency(cur) {
			neighbor := otherEnd(ref, cur)
			if visited[neighbor] {
				continue
			}
			parents[neighbor] = parentInfo{parent: cur, via: ref}
			if neighbor == to {
				return g.reconstructPath(from, to, parents), nil
			}
			visited[neighbor] = true
			queue = append(queue, neighbor)
		}
	}

	return JoinPath{}, semerr.NoPath(from, to)
}

func (g *Graph) reconstructPath(from, to string, parents map[string]parentInfo) JoinPath {
	var edges []JoinEdge
	cur := to
	for cur != from {
		info := parents[cur]
		edges = append(edges, toJoinEdge(info.via.edge, info.via.edge.FromEntity == info.parent))
		cur = info.parent
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return JoinPath{Edges: edges}
}

func toJoinEdge(e *JoinsToEdge, forward bool) JoinEdge {
	return JoinEdge{
		FromEntity:  e.FromEntity,
		ToEntity:    e.ToEntity,
		FromColumn:  e.JoinColumns[0].LeftColumn,
		ToColumn:    e.JoinColumns[0].RightColumn,
		Cardinality: e.Cardinality,
		Forward:     forward,
	}
}

func otherEnd(ref edgeRef, from string) string {
	if ref.edge.FromEntity == from {
		return ref.edge.ToEntity
	}
	return ref.edge.FromEntity
}

// sortedAdjacency returns the adjacency list for entity name, sorted by the
// neighbor's name so traversal order (and therefore any tie-broken result)
// is deterministic.
func (g *Graph) sortedAdjacency(name string) []edgeRef {
	refs := append([]edgeRef(nil), g.adjacency[name]...)
	sort.Slice(refs, func(i, j int) bool {
		return otherEnd(refs[i], name) < otherEnd(refs[j], name)
	})
	return refs
}

// FindJoinTree returns the union of FindPath(root, t) for each target,
// deduplicated by the ordered (from_entity, to_entity) pair, preserving
// first-seen order. It assembles the FROM/JOIN skeleton for a single-fact
// query spanning several referenced entities.
func (g *Graph) FindJoinTree(root string, targets []string) (JoinPath, error) {
	var edges []JoinEdge
	seen := map[[2]string]bool{}

	for _, target := range targets {
		if target == root {
			continue
		}
		path, err := g.FindPath(root, target)
		if err != nil {
			return JoinPath{}, err
		}
		for _, e := range path.Edges {
			key := [2]string{e.FromEntity, e.ToEntity}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, e)
		}
	}

	return JoinPath{Edges: edges}, nil
}

// FindAllPaths performs an iterative depth-bounded DFS, with a per-branch
// visited set (no revisiting within a single path), returning every
// distinct path from `from` to `to` of at most maxDepth hops.
func (g *Graph) FindAllPaths(from, to string, maxDepth int) ([]JoinPath, error) {
	if from == to {
		return []JoinPath{NewJoinPath()}, nil
	}
	if _, ok := g.Entity(from); !ok {
		return nil, semerr.UnknownEntity(from, g.AllEntityNames())
	}
	if _, ok := g.Entity(to); !ok {
		return nil, semerr.UnknownEntity(to, g.AllEntityNames())
	}

	type frame struct {
		node    string
		path    []JoinEdge
		visited map[string]bool
	}

	var results []JoinPath
	initial := map[string]bool{from: true}
	stack := []frame{{node: from, path: nil, visited: initial}}

	for len(stack) > 0 {
		n := len(stack) - 1
		f := stack[n]
		stack = stack[:n]

		if len(f.path) >= maxDepth {
			continue
		}

		for _, ref := range g.sortedAdjacency(f.node) {
			neighbor := otherEnd(ref, f.node)
			if f.visited[neighbor] {
				continue
			}

			newPath := append(append([]JoinEdge(nil), f.path...), toJoinEdge(ref.edge, ref.edge.FromEntity == f.node))

			if neighbor == to {
				results = append(results, JoinPath{Edges: newPath})
				continue
			}

			newVisited := map[string]bool{}
			for k := range f.visited {
				newVisited[k] = true
			}
			newVisited[neighbor] = true
			stack = append(stack, frame{node: neighbor, path: newPath, visited: newVisited})
		}
	}

	if len(results) == 0 {
		return nil, semerr.NoPath(from, to)
	}
	return results, nil
}

// HasAmbiguousPath reports whether there is more than one path of at most
// 5 hops between from and to.
func (g *Graph) HasAmbiguousPath(from, to string) bool {
	paths, err := g.FindAllPaths(from, to, defaultMaxDepth)
	if err != nil {
		return false
	}
	return len(paths) > 1
}

// ReachableEntities returns every entity name (sorted, excluding from)
// reachable from from via BFS over the entity subgraph.
func (g *Graph) ReachableEntities(from string) ([]string, error) {
	if _, ok := g.Entity(from); !ok {
		return nil, semerr.UnknownEntity(from, g.AllEntityNames())
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	var reached []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range g.adjacency[cur] {
			neighbor := otherEnd(ref, cur)
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			reached = append(reached, neighbor)
			queue = append(queue, neighbor)
		}
	}

	sort.Strings(reached)
	return reached, nil
}

// IsSafePath reports whether the path from the fact to every entity
// referenced by a filter can be traversed without fanning out the fact's
// grain: no edge may be traversed from its "1" side toward its "N" side
// (spec §9 open question 3). Traversing a 1:N/N:1 edge from the "N" side
// back toward the "1" side only narrows and is always safe; N:M edges risk
// fan-out in either direction and are treated conservatively as unsafe.
func IsSafePath(path JoinPath) bool {
	for _, e := range path.Edges {
		if fansOut(e) {
			return false
		}
	}
	return true
}

func fansOut(e JoinEdge) bool {
	switch e.Cardinality {
	case OneToOne:
		return false
	case ManyToMany:
		return true
	case ManyToOne:
		// FromEntity is the "N" side, ToEntity is the "1" side. Walking
		// forward (N -> 1) narrows; walking backward (1 -> N) fans out.
		return !e.Forward
	case OneToMany:
		// FromEntity is the "1" side, ToEntity is the "N" side. Walking
		// forward (1 -> N) fans out; walking backward (N -> 1) narrows.
		return e.Forward
	default:
		return false
	}
}
