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

package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostEstimateTotalWithDefaultWeights(t *testing.T) {
	c := CostEstimate{RowsOut: 1000, CPUCost: 100.0, IOCost: 50.0, MemoryCost: 20.0}
	// (100*1.0) + (50*10.0) + (20*0.1) = 100 + 500 + 2 = 602.0
	assert.Equal(t, 602.0, c.Total())
}

func TestCostEstimateIOWeightedHigherThanCPU(t *testing.T) {
	c := CostEstimate{RowsOut: 1000, CPUCost: 100.0, IOCost: 10.0, MemoryCost: 0.0}
	assert.Equal(t, 200.0, c.Total())
}

func TestCostEstimateMemoryWeightedLowerThanCPU(t *testing.T) {
	c := CostEstimate{RowsOut: 1000, CPUCost: 10.0, IOCost: 0.0, MemoryCost: 100.0}
	assert.Equal(t, 20.0, c.Total())
}

func TestCostEstimateZeroCostsTotalZero(t *testing.T) {
	assert.Equal(t, 0.0, CostEstimate{}.Total())
}
