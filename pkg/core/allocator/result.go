package allocator

import (
	"context"
	"sort"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// SolveStatus reports the outcome of a solve attempt. The status set mirrors
// the usual assignment-solver vocabulary so the caller can decide whether to
// trust the result or engage the fallback.
type SolveStatus int

const (
	// StatusOptimal means the search completed and the solution is proven best
	StatusOptimal SolveStatus = iota
	// StatusFeasible means a valid solution was found without an optimality proof
	StatusFeasible
	// StatusInfeasible means no valid solution exists for the given constraints
	StatusInfeasible
	// StatusUnknown means the solve was aborted (time or node budget exceeded)
	StatusUnknown
	// StatusUnavailable means the solver cannot run at all
	StatusUnavailable
)

func (s SolveStatus) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusUnknown:
		return "UNKNOWN"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "INVALID"
	}
}

// Assignment is a single (request, room) decision with its objective score
type Assignment struct {
	RequestID     int
	RoomID        int
	StakeholderID string
	Score         float64
}

// Result is the outcome of one allocation run, produced identically by the
// exact optimizer and the greedy fallback
type Result struct {
	Assignments          []Assignment
	ObjectiveValue       float64
	FairnessMetric       float64
	UnassignedRequestIDs []int
	UsedFallback         bool
}

// Solver is the shared capability behind the exact optimizer and the greedy
// fallback. The caller selects between them based on the returned status,
// never via error-driven control flow.
type Solver interface {
	Solve(ctx context.Context, candidates []Candidate, requests []model.Request, cfg ConstraintConfig) ([]Assignment, SolveStatus)
}

// buildResult assembles the canonical Result from raw assignments: sorted
// assignment order, summed objective, fairness metric, and the sorted IDs of
// requests left unassigned.
func buildResult(assignments []Assignment, requests []model.Request, usedFallback bool) *Result {
	sorted := make([]Assignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RequestID < sorted[j].RequestID
	})

	objective := 0.0
	assigned := make(map[int]bool, len(sorted))
	for _, assignment := range sorted {
		objective += assignment.Score
		assigned[assignment.RequestID] = true
	}

	unassigned := make([]int, 0)
	for _, request := range requests {
		if !assigned[request.ID] {
			unassigned = append(unassigned, request.ID)
		}
	}
	sort.Ints(unassigned)

	return &Result{
		Assignments:          sorted,
		ObjectiveValue:       objective,
		FairnessMetric:       FairnessOverRequests(sorted, requests),
		UnassignedRequestIDs: unassigned,
		UsedFallback:         usedFallback,
	}
}
