package allocator

import (
	"sort"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// Candidate is a (request, room) pair that satisfies the capacity and
// idle-probability prerequisites. Candidates are ephemeral and rebuilt on
// every run.
type Candidate struct {
	RequestID         int
	RoomID            int
	StakeholderID     string
	RequestedCapacity int
	RoomCapacity      int
	PriorityWeight    float64
	IdleProbability   float64
	Score             float64 // IdleProbability * PriorityWeight
}

// ClampProbability clamps a probability to [0, 1]
func ClampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// BuildCandidates joins rooms, requests, and predictions into the set of
// feasible (request, room) pairs. A pair is feasible when the room's
// capacity covers the requested capacity and its predicted idle probability
// meets the threshold. Rooms without a prediction produce no candidates.
//
// Infeasibility is a property of the candidate set, not a solver failure:
// an empty result here means both strategies return an empty allocation.
func BuildCandidates(
	rooms []model.Room,
	requests []model.Request,
	predictions []model.IdlePrediction,
	cfg ConstraintConfig,
) []Candidate {
	idleByRoom := make(map[int]float64, len(predictions))
	for _, prediction := range predictions {
		idleByRoom[prediction.RoomID] = ClampProbability(prediction.IdleProbability)
	}

	candidates := make([]Candidate, 0)
	for _, request := range requests {
		for _, room := range rooms {
			idleProbability, ok := idleByRoom[room.ID]
			if !ok {
				continue
			}
			if idleProbability < cfg.IdleProbabilityThreshold {
				continue
			}
			if room.Capacity < request.RequestedCapacity {
				continue
			}
			candidates = append(candidates, Candidate{
				RequestID:         request.ID,
				RoomID:            room.ID,
				StakeholderID:     request.StakeholderID,
				RequestedCapacity: request.RequestedCapacity,
				RoomCapacity:      room.Capacity,
				PriorityWeight:    request.PriorityWeight,
				IdleProbability:   idleProbability,
				Score:             idleProbability * request.PriorityWeight,
			})
		}
	}

	// Deterministic base order regardless of input ordering
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RequestID != candidates[j].RequestID {
			return candidates[i].RequestID < candidates[j].RequestID
		}
		return candidates[i].RoomID < candidates[j].RoomID
	})

	return candidates
}
