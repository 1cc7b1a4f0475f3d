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

// Command semanticsql compiles reports from a semantic model file into
// dialect-neutral SQL. It is the external wrapper spec.md §6.3 describes
// only to pin down exit-code semantics: everything it does is a thin shim
// over config, engine, and sqlast.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// supportedDialects mirrors spec.md §6.3's list. Every one of them is
// rendered through sqlast.ANSIPrinter -- the dialect flag is checked
// against this list and is not otherwise used.
var supportedDialects = map[string]bool{
	"postgres":   true,
	"mysql":      true,
	"tsql":       true,
	"duckdb":     true,
	"bigquery":   true,
	"snowflake":  true,
	"databricks": true,
	"redshift":   true,
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "semanticsql",
		Short:         "Compile semantic-model reports into dialect-neutral SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCompileCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newValidateCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "semanticsql:", err)
		os.Exit(1)
	}
}
