package execmodel

import (
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// Complexity buckets a plan's structural size.
type Complexity int

const (
	ComplexitySimple Complexity = iota
	ComplexityMedium
	ComplexityComplex
)

// ParallelismRequirement buckets how much a plan benefits from concurrent
// execution.
type ParallelismRequirement int

const (
	ParallelismNone ParallelismRequirement = iota
	ParallelismLow
	ParallelismMedium
	ParallelismHigh
)

// Features is the feature vector the selector's decision table consumes.
type Features struct {
	Complexity             Complexity
	DataSize               int64
	OperationTypes         map[types.NodeKind]int
	ParallelismRequirement ParallelismRequirement
}

// defaultDataSize is used when the caller has no better estimate; upper
// layers (the optimizer, table statistics) may override it.
const defaultDataSize = 1000

// ExtractFeatures derives a Features vector from plan. dataSize <= 0 falls
// back to the layer default.
func ExtractFeatures(plan *types.OptimizedPlan, dataSize int64) Features {
	f := Features{DataSize: dataSize, OperationTypes: map[types.NodeKind]int{}}
	if f.DataSize <= 0 {
		f.DataSize = defaultDataSize
	}
	if plan == nil {
		return f
	}

	hasJoin, hasAggregate := false, false
	heavyOps := 0
	for _, n := range plan.Nodes {
		f.OperationTypes[n.Kind]++
		switch n.Kind {
		case types.NodeJoin:
			hasJoin = true
			heavyOps++
		case types.NodeAggregate:
			hasAggregate = true
			heavyOps++
		case types.NodeSort:
			heavyOps++
		}
	}

	n := len(plan.Nodes)
	switch {
	case n <= 2 && !hasJoin && !hasAggregate:
		f.Complexity = ComplexitySimple
	case hasJoin && hasAggregate, n > 6:
		f.Complexity = ComplexityComplex
	default:
		f.Complexity = ComplexityMedium
	}

	switch {
	case n == 0:
		f.ParallelismRequirement = ParallelismNone
	case heavyOps >= 2 || n > 6:
		f.ParallelismRequirement = ParallelismHigh
	case heavyOps == 1 || n > 3:
		f.ParallelismRequirement = ParallelismMedium
	case n > 1:
		f.ParallelismRequirement = ParallelismLow
	default:
		f.ParallelismRequirement = ParallelismNone
	}
	return f
}

// vectorizationThreshold is the data_size above which Vectorized is
// preferred by the "else" row of the decision table; the config surface's
// vectorization_threshold option overrides it at the caller's discretion.
const vectorizationThreshold = 10000

// Select implements the §4.9 decision table.
func Select(f Features) Model {
	switch {
	case f.Complexity == ComplexitySimple && f.ParallelismRequirement == ParallelismNone:
		return ModelPipeline
	case f.Complexity == ComplexityComplex:
		return ModelVolcano
	case f.ParallelismRequirement == ParallelismHigh:
		return ModelMPP
	case f.DataSize > vectorizationThreshold:
		return ModelVectorized
	default:
		return ModelVolcano
	}
}

// SelectForPlan is the convenience entry point: extract features, then
// select.
func SelectForPlan(plan *types.OptimizedPlan, dataSize int64) Model {
	return Select(ExtractFeatures(plan, dataSize))
}
