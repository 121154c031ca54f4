package planner

import (
	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// DetectParallelGroups partitions the pending steps into execution batches.
// Level-order over the dependency graph: a step is ready once every
// dependency is completed or emitted by an earlier group; all ready steps
// form one batch with no internal ordering. Batches must run in emission
// order.
//
// Liveness beats strictness: when nothing is ready (a cycle the repair pass
// missed, or a dependency on a failed step that will never complete) the
// first remaining step is forced through as a singleton batch, so the
// pending set always drains.
func DetectParallelGroups(p *Plan) [][]PlanStep {
	satisfied := make(map[int]bool)
	for _, id := range p.CompletedIDs() {
		satisfied[id] = true
	}

	remaining := p.PendingSteps()
	var groups [][]PlanStep
	for len(remaining) > 0 {
		var ready, blocked []PlanStep
		for _, s := range remaining {
			if depsSatisfied(s.DependsOn, satisfied) {
				ready = append(ready, s)
			} else {
				blocked = append(blocked, s)
			}
		}

		if len(ready) == 0 {
			forced := blocked[0]
			logging.Planner("no step is ready (unresolved cycle or failed dependency), forcing step %d onward", forced.ID)
			ready = append(ready, forced)
			blocked = blocked[1:]
		}

		for _, s := range ready {
			satisfied[s.ID] = true
		}
		groups = append(groups, ready)
		remaining = blocked
	}
	return groups
}

func depsSatisfied(deps []int, satisfied map[int]bool) bool {
	for _, d := range deps {
		if !satisfied[d] {
			return false
		}
	}
	return true
}
