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

package main

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dolthub/semantic-sql/config"
	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/plan"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a semantic model file for structural and report-planning errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

// runValidate loads the model, builds the semantic graph (catching
// undefined references and malformed joins), checks the target-dependency
// graph for cycles (join ambiguity is not checked), then runs
// every report through the logical planner -- without going on to
// physical planning or SQL emission, since a valid model with an
// unplannable report is still the failure validate exists to catch.
func runValidate(path string) error {
	model, err := config.LoadModel(path)
	if err != nil {
		return err
	}

	g, err := graph.New(model, graph.Stats{})
	if err != nil {
		return errors.Wrap(err, "invalid semantic model")
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return errors.Wrap(err, "invalid semantic model")
	}

	names :=make([]string, 0, len(model.Reports))
	for name := range model.Reports {
		names = append(names, name)
	}
	sort.Strings(names)

	builder := plan.NewBuilder(model, g)
	for _, name := range names {
		if _, err := builder.Build(model.Reports[name]); err != nil {
			return errors.Wrapf(err, "report %q", name)
		}
	}

	fmt.Printf("ok: %d report(s) valid\n", len(names))
	return nil
}
