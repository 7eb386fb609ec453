package allocator

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/idlematch/idlematch/pkg/core/model"
)

const scoreEpsilon = 1e-9

// ExactSolver solves the assignment exactly: a 0/1 decision per candidate
// pair maximizing the summed score, subject to at most one room per request,
// at most one request per room, and the per-stakeholder usage cap.
//
// The search is a depth-first branch and bound over requests in ID order,
// with per-request room order pinned by the configured seed. Identical
// inputs and seed always produce identical assignments. Exceeding the time
// or node budget aborts the solve with StatusUnknown so the caller can
// engage the fallback instead of hanging.
type ExactSolver struct {
	// Disabled makes every solve report StatusUnavailable, standing in for
	// a missing solver dependency
	Disabled bool
}

type exactSearch struct {
	requestIDs  []int
	byRequest   map[int][]Candidate
	capLimit    float64
	suffixBound []float64

	roomUsed     map[int]bool
	countBy      map[string]int
	current      []Assignment
	currentScore float64
	best         []Assignment
	bestScore    float64
	haveBest     bool
	nodes        int
	nodeBudget   int
	deadline     time.Time
	ctx          context.Context
	aborted      bool
}

func (s *ExactSolver) Solve(
	ctx context.Context,
	candidates []Candidate,
	requests []model.Request,
	cfg ConstraintConfig,
) ([]Assignment, SolveStatus) {
	if s.Disabled {
		return nil, StatusUnavailable
	}
	if len(candidates) == 0 {
		return []Assignment{}, StatusOptimal
	}

	// Tie keys are drawn from the seeded source in the candidates' base
	// order, so the exploration order is a pure function of inputs and seed.
	rng := rand.New(rand.NewSource(cfg.Seed))
	tieKeys := make(map[[2]int]int64, len(candidates))
	for _, candidate := range candidates {
		tieKeys[[2]int{candidate.RequestID, candidate.RoomID}] = rng.Int63()
	}

	byRequest := make(map[int][]Candidate)
	for _, candidate := range candidates {
		byRequest[candidate.RequestID] = append(byRequest[candidate.RequestID], candidate)
	}

	requestIDs := make([]int, 0, len(byRequest))
	for requestID := range byRequest {
		requestIDs = append(requestIDs, requestID)
	}
	sort.Ints(requestIDs)

	for _, requestID := range requestIDs {
		rooms := byRequest[requestID]
		sort.Slice(rooms, func(i, j int) bool {
			if rooms[i].Score != rooms[j].Score {
				return rooms[i].Score > rooms[j].Score
			}
			keyI := tieKeys[[2]int{rooms[i].RequestID, rooms[i].RoomID}]
			keyJ := tieKeys[[2]int{rooms[j].RequestID, rooms[j].RoomID}]
			if keyI != keyJ {
				return keyI < keyJ
			}
			return rooms[i].RoomID < rooms[j].RoomID
		})
		byRequest[requestID] = rooms
	}

	// Optimistic bound: best remaining score per request, conflicts ignored
	suffixBound := make([]float64, len(requestIDs)+1)
	for i := len(requestIDs) - 1; i >= 0; i-- {
		suffixBound[i] = suffixBound[i+1] + byRequest[requestIDs[i]][0].Score
	}

	search := &exactSearch{
		requestIDs:  requestIDs,
		byRequest:   byRequest,
		capLimit:    stakeholderCapLimit(cfg.StakeholderUsageCap, len(requests)),
		suffixBound: suffixBound,
		roomUsed:    make(map[int]bool),
		countBy:     make(map[string]int),
		bestScore:   -1,
		nodeBudget:  cfg.SolverNodeBudget,
		deadline:    time.Now().Add(cfg.SolverTimeBudget),
		ctx:         ctx,
	}
	search.step(0)

	if search.aborted {
		return nil, StatusUnknown
	}
	return search.best, StatusOptimal
}

func (e *exactSearch) step(index int) {
	if e.aborted {
		return
	}
	e.nodes++
	if e.nodes > e.nodeBudget {
		e.aborted = true
		return
	}
	if e.nodes%1024 == 0 && (time.Now().After(e.deadline) || e.ctx.Err() != nil) {
		e.aborted = true
		return
	}

	if index == len(e.requestIDs) {
		if e.currentScore > e.bestScore+scoreEpsilon {
			e.bestScore = e.currentScore
			e.best = make([]Assignment, len(e.current))
			copy(e.best, e.current)
			e.haveBest = true
		}
		return
	}

	// Prune: even the optimistic completion cannot beat the incumbent.
	// Ties resolve to the first solution found in seeded order.
	if e.haveBest && e.currentScore+e.suffixBound[index] <= e.bestScore+scoreEpsilon {
		return
	}

	requestID := e.requestIDs[index]
	for _, candidate := range e.byRequest[requestID] {
		if e.roomUsed[candidate.RoomID] {
			continue
		}
		if float64(e.countBy[candidate.StakeholderID]+1) > e.capLimit+scoreEpsilon {
			continue
		}

		e.roomUsed[candidate.RoomID] = true
		e.countBy[candidate.StakeholderID]++
		e.current = append(e.current, Assignment{
			RequestID:     candidate.RequestID,
			RoomID:        candidate.RoomID,
			StakeholderID: candidate.StakeholderID,
			Score:         candidate.Score,
		})
		e.currentScore += candidate.Score

		e.step(index + 1)

		e.currentScore -= candidate.Score
		e.current = e.current[:len(e.current)-1]
		e.countBy[candidate.StakeholderID]--
		e.roomUsed[candidate.RoomID] = false

		if e.aborted {
			return
		}
	}

	// Branch where this request stays unassigned
	e.step(index + 1)
}
