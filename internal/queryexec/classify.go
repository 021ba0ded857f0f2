package queryexec

import "github.com/database-intelligence/sqlexec/pkg/types"

// Strategy is the executor's chosen driving discipline for one plan.
type Strategy int

const (
	StrategySequential Strategy = iota
	StrategyParallel
	StrategyMixed
)

func (s Strategy) String() string {
	switch s {
	case StrategyParallel:
		return "Parallel"
	case StrategyMixed:
		return "Mixed"
	default:
		return "Sequential"
	}
}

// serialMandatory reports whether kind must run after everything before it
// has materialized: Aggregate, Sort, and Limit all consume their full input
// before producing output.
func serialMandatory(kind types.NodeKind) bool {
	switch kind {
	case types.NodeAggregate, types.NodeSort, types.NodeLimit:
		return true
	default:
		return false
	}
}

// ClassifyNodes implements the §4.10 node-classification walk: encountering
// a serial-mandatory node flips can_parallelize to false for it and every
// later node. Join is parallel-safe while can_parallelize holds, serial
// otherwise; the remaining scan/filter/project kinds follow the same flag.
func ClassifyNodes(nodes []types.PlanNode) []bool {
	safe := make([]bool, len(nodes))
	canParallelize := true
	for i, n := range nodes {
		if serialMandatory(n.Kind) {
			canParallelize = false
			safe[i] = false
			continue
		}
		safe[i] = canParallelize
	}
	return safe
}

// nodeGroup is a maximal run of consecutive nodes sharing the same
// parallel-safety classification, in plan order.
type nodeGroup struct {
	parallelSafe bool
	start, end   int // [start, end) into the plan's Nodes slice
}

func groupNodes(safe []bool) []nodeGroup {
	var groups []nodeGroup
	for i := 0; i < len(safe); i++ {
		if len(groups) > 0 && groups[len(groups)-1].parallelSafe == safe[i] {
			groups[len(groups)-1].end = i + 1
			continue
		}
		groups = append(groups, nodeGroup{parallelSafe: safe[i], start: i, end: i + 1})
	}
	return groups
}

// SelectStrategy picks Sequential, Parallel, or Mixed for plan per §4.10.
func SelectStrategy(plan *types.OptimizedPlan) Strategy {
	if plan.Empty() || len(plan.Nodes) == 1 {
		return StrategySequential
	}
	safe := ClassifyNodes(plan.Nodes)
	allSafe, allSerial := true, true
	for _, s := range safe {
		if s {
			allSerial = false
		} else {
			allSafe = false
		}
	}
	switch {
	case allSafe:
		return StrategyParallel
	case allSerial:
		return StrategySequential
	default:
		return StrategyMixed
	}
}
