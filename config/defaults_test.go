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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/semantic-sql/semmodel"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "semantic-sql-config-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadDefaultsFillsInNullPolicy(t *testing.T) {
	path := writeTemp(t, "defaults.toml", `
calendar = "fiscal"
fiscal_year_start = 4
week_start = "monday"
decimal_places = 2
`)

	d, err := LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "fiscal", d.Calendar)
	assert.Equal(t, 4, d.FiscalYearStart)
	assert.Equal(t, "monday", d.WeekStart)
	assert.Equal(t, 2, d.DecimalPlaces)
	assert.Equal(t, semmodel.NullIgnore, d.NullPolicy)
}

func TestLoadDefaultsHonorsExplicitNullPolicy(t *testing.T) {
	path := writeTemp(t, "defaults.toml", `null_policy = "coalesce_zero"`)

	d, err := LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, semmodel.NullCoalesceZero, d.NullPolicy)
}

func TestLoadDefaultsRejectsUnrecognizedNullPolicy(t *testing.T) {
	path := writeTemp(t, "defaults.toml", `null_policy = "explode"`)

	_, err := LoadDefaults(path)
	assert.Error(t, err)
}

func TestLoadDefaultsWrapsMissingFile(t *testing.T) {
	_, err := LoadDefaults("/no/such/file.toml")
	assert.Error(t, err)
}
