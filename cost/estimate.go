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

// Scalarization weights for CostEstimate.Total (spec §4.6): IO is weighted
// far above CPU since it is the scarcer resource in most deployments, and
// memory is weighted well below both since it is usually the most
// plentiful.
const (
	weightCPU    = 1.0
	weightIO     = 10.0
	weightMemory = 0.1
)

// CostEstimate is a multi-objective cost for one physical plan node,
// accumulated bottom-up from its inputs.
type CostEstimate struct {
	RowsOut    int64
	CPUCost    float64
	IOCost     float64
	MemoryCost float64
}

// Total collapses the multi-objective estimate into a single scalar via
// fixed-weight scalarization, used to rank candidate plans.
func (c CostEstimate) Total() float64 {
	return c.CPUCost*weightCPU + c.IOCost*weightIO + c.MemoryCost*weightMemory
}
