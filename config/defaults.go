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

// Package config loads the two files the CLI needs that the core itself
// never reads directly: the model-wide Defaults (spec §4.1) from TOML, and
// the semantic model file (the minimal structural stand-in for the
// out-of-scope DSL front-end) from YAML.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/dolthub/semantic-sql/semmodel"
)

// defaultsFile mirrors semmodel.Defaults' shape for TOML decoding. Kept
// separate from semmodel.Defaults so the TOML field-naming convention
// (snake_case keys) doesn't leak into the core's own struct tags.
type defaultsFile struct {
	Calendar        string `toml:"calendar"`
	FiscalYearStart int    `toml:"fiscal_year_start"`
	WeekStart       string `toml:"week_start"`
	NullPolicy      string `toml:"null_policy"`
	DecimalPlaces   int    `toml:"decimal_places"`
}

// LoadDefaults reads a TOML file of model-wide defaults.
func LoadDefaults(path string) (semmodel.Defaults, error) {
	var f defaultsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return semmodel.Defaults{}, errors.Wrapf(err, "config: decoding defaults file %q", path)
	}

	policy := semmodel.NullPolicy(f.NullPolicy)
	switch policy {
	case "", semmodel.NullIgnore, semmodel.NullCoalesceZero, semmodel.NullOnZero:
	default:
		return semmodel.Defaults{}, errors.Errorf("config: %q: unrecognized null_policy %q", path, f.NullPolicy)
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
