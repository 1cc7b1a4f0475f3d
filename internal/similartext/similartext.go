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

// Package similartext suggests the closest known names for a misspelled
// reference, for use in error messages such as "unknown entity: custmers,
// maybe you mean customers?".
package similartext

import (
	"fmt"
	"sort"
	"strings"
)

// Find returns a ", maybe you mean X?" suffix listing every name in the
// slice that is similar enough to search (see isSimilar), or "" if search
// is empty or nothing is close enough.
func Find(names []string, search string) string {
	if search == "" {
		return ""
	}

	var matches []string
	for _, name := range names {
		if isSimilar(name, search) {
			matches = append(matches, name)
		}
	}

	return suggestion(matches)
}

// FindFromMap behaves like Find over the sorted keys of names, so the
// suggestion is deterministic regardless of map iteration order.
func FindFromMap[V any](names map[string]V, search string) string {
	if search == "" {
		return ""
	}

	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Find(keys, search)
}

func suggestion(matches []string) string {
	switch len(matches) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(", maybe you mean %s?", matches[0])
	default:
		return fmt.Sprintf(", maybe you mean %s?", strings.Join(matches[:len(matches)-1], ", ")+" or "+matches[len(matches)-1])
	}
}

func isSimilar(name, search string) bool {
	threshold := len(search) / 2
	if threshold < 1 {
		threshold = 1
	}
	return levenshtein(name, search) <= threshold
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
