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

// Package semerr defines the typed error payloads at the core's boundary
// (spec §6.4). Each is a distinct errors.Kind so callers can distinguish
// error classes with errors.Is/errors.As style matching via the Kind's
// Is method, the same pattern the teacher uses in auth.ErrNotAuthorized.
package semerr

import (
	"fmt"
	"strings"

	goerrors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/semantic-sql/internal/similartext"
)

var (
	// ErrUnknownEntity is returned when a target name is neither a known
	// fact nor a known dimension.
	ErrUnknownEntity = goerrors.NewKind("unknown entity: %s%s")

	// ErrNoPath is returned when no join path connects two entities.
	ErrNoPath = goerrors.NewKind("no join path from %s to %s")

	// ErrCyclicDependency is returned when the target-dependency DAG
	// contains a cycle.
	ErrCyclicDependency = goerrors.NewKind("cyclic dependency: %s")

	// ErrUndefinedReference is returned when a report or model element
	// references a name that does not resolve.
	ErrUndefinedReference = goerrors.NewKind("undefined %s: %s%s")

	// ErrAmbiguousJoin is a diagnostic (non-fatal by default) describing
	// more than one shortest path between two entities.
	ErrAmbiguousJoin = goerrors.NewKind("ambiguous join from %s to %s: %d candidate paths")

	// ErrInvalidPlan marks an internal invariant violation in the planner
	// (empty candidate set, malformed plan node, missing entity during
	// planning). These are programming errors, not model defects.
	ErrInvalidPlan = goerrors.NewKind("invalid plan: %s")
)

// UnknownEntity builds ErrUnknownEntity with a similarity suggestion drawn
// from candidates (typically the union of known fact and dimension names).
func UnknownEntity(name string, candidates []string) error {
	return ErrUnknownEntity.New(name, similartext.Find(candidates, name))
}

// NoPath builds ErrNoPath.
func NoPath(from, to string) error {
	return ErrNoPath.New(from, to)
}

// CyclicDependency builds ErrCyclicDependency from a cycle path, sorting
// the interior node names for determinism (spec §9 open question 2) and
// repeating the lexicographically-first node at the end.
func CyclicDependency(path []string) error {
	if len(path) == 0 {
		return ErrCyclicDependency.New("(empty cycle)")
	}
	interior := append([]string(nil), path...)
	if interior[len(interior)-1] == interior[0] {
		interior = interior[:len(interior)-1]
	}
	sorted := append([]string(nil), interior...)
	sortStrings(sorted)
	sorted = append(sorted, sorted[0])
	return ErrCyclicDependency.New(strings.Join(sorted, " -> "))
}

// UndefinedReference builds ErrUndefinedReference with a similarity
// suggestion.
func UndefinedReference(entityType, name string, candidates []string) error {
	return ErrUndefinedReference.New(entityType, name, similartext.Find(candidates, name))
}

// AmbiguousJoin builds ErrAmbiguousJoin.
func AmbiguousJoin(from, to string, pathCount int) error {
	return ErrAmbiguousJoin.New(from, to, pathCount)
}

// InvalidPlan builds ErrInvalidPlan.
func InvalidPlan(reason string, args ...interface{}) error {
	return ErrInvalidPlan.New(fmt.Sprintf(reason, args...))
}

// sortStrings avoids importing sort in the hot error-construction path
// more than once; kept local and trivial (insertion sort is fine, cycles
// are always small).
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
