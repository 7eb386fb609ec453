package allocator

import (
	"context"
	"sort"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// GreedySolver is the deterministic heuristic allocator used when the exact
// optimizer is unavailable, aborted, or returned a degenerate result.
//
// Requests are visited in (priority weight descending, request ID ascending)
// order. Each request takes its still-eligible room with the highest idle
// probability, breaking ties by smallest capacity then smallest room ID.
// The order is a total order over the inputs, so identical inputs always
// yield identical assignment lists.
type GreedySolver struct{}

func (s *GreedySolver) Solve(
	ctx context.Context,
	candidates []Candidate,
	requests []model.Request,
	cfg ConstraintConfig,
) ([]Assignment, SolveStatus) {
	byRequest := make(map[int][]Candidate)
	for _, candidate := range candidates {
		byRequest[candidate.RequestID] = append(byRequest[candidate.RequestID], candidate)
	}

	ordered := make([]model.Request, len(requests))
	copy(ordered, requests)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PriorityWeight != ordered[j].PriorityWeight {
			return ordered[i].PriorityWeight > ordered[j].PriorityWeight
		}
		return ordered[i].ID < ordered[j].ID
	})

	capLimit := stakeholderCapLimit(cfg.StakeholderUsageCap, len(requests))
	roomUsed := make(map[int]bool)
	countByStakeholder := make(map[string]int)
	assignments := make([]Assignment, 0, len(ordered))

	for _, request := range ordered {
		if float64(countByStakeholder[request.StakeholderID]+1) > capLimit+scoreEpsilon {
			continue
		}

		var pick *Candidate
		for i := range byRequest[request.ID] {
			candidate := &byRequest[request.ID][i]
			if roomUsed[candidate.RoomID] {
				continue
			}
			if pick == nil || betterGreedyRoom(candidate, pick) {
				pick = candidate
			}
		}
		if pick == nil {
			continue
		}

		roomUsed[pick.RoomID] = true
		countByStakeholder[request.StakeholderID]++
		assignments = append(assignments, Assignment{
			RequestID:     pick.RequestID,
			RoomID:        pick.RoomID,
			StakeholderID: pick.StakeholderID,
			Score:         pick.Score,
		})
	}

	return assignments, StatusFeasible
}

// betterGreedyRoom reports whether a should be picked over b:
// highest idle probability, then smallest capacity, then smallest room ID
func betterGreedyRoom(a, b *Candidate) bool {
	if a.IdleProbability != b.IdleProbability {
		return a.IdleProbability > b.IdleProbability
	}
	if a.RoomCapacity != b.RoomCapacity {
		return a.RoomCapacity < b.RoomCapacity
	}
	return a.RoomID < b.RoomID
}
