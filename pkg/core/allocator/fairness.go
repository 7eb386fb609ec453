package allocator

import (
	"sort"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// JainIndex computes Jain's fairness index (Σu)² / (n·Σu²) over the given
// per-stakeholder totals. By convention the index is 1.0 when there are no
// stakeholders or all totals are zero: the absence of allocations carries no
// inequality. The range is [1/n, 1] otherwise.
func JainIndex(totals []float64) float64 {
	if len(totals) == 0 {
		return 1.0
	}

	sum := 0.0
	sumOfSquares := 0.0
	for _, total := range totals {
		sum += total
		sumOfSquares += total * total
	}
	if sumOfSquares == 0 {
		return 1.0
	}
	return (sum * sum) / (float64(len(totals)) * sumOfSquares)
}

// FairnessOverRequests computes Jain's index over per-stakeholder allocated
// capacity totals. Every stakeholder with at least one pending request in
// scope counts toward n, including those that received nothing.
func FairnessOverRequests(assignments []Assignment, requests []model.Request) float64 {
	capacityByRequest := make(map[int]int, len(requests))
	totalsByStakeholder := make(map[string]float64)
	for _, request := range requests {
		capacityByRequest[request.ID] = request.RequestedCapacity
		totalsByStakeholder[request.StakeholderID] += 0
	}

	for _, assignment := range assignments {
		totalsByStakeholder[assignment.StakeholderID] += float64(capacityByRequest[assignment.RequestID])
	}

	stakeholders := make([]string, 0, len(totalsByStakeholder))
	for stakeholder := range totalsByStakeholder {
		stakeholders = append(stakeholders, stakeholder)
	}
	sort.Strings(stakeholders)

	totals := make([]float64, len(stakeholders))
	for i, stakeholder := range stakeholders {
		totals[i] = totalsByStakeholder[stakeholder]
	}
	return JainIndex(totals)
}
