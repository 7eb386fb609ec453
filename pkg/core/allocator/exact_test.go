package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idlematch/idlematch/pkg/core/model"
)

func TestExactSolver_FindsOptimalOverGreedyChoice(t *testing.T) {
	// Greedy would give request 1 the best room and strand request 2. The
	// exact solver must instead pick the pairing with the higher total.
	rooms := []model.Room{
		{ID: 1, Capacity: 30},
		{ID: 2, Capacity: 10},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 5, PriorityWeight: 1.0},
		{ID: 2, StakeholderID: "dept-b", RequestedCapacity: 20, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.8},
	}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusOptimal, status)
	require.Len(t, assignments, 2)

	byRequest := make(map[int]int)
	total := 0.0
	for _, a := range assignments {
		byRequest[a.RequestID] = a.RoomID
		total += a.Score
	}
	// Request 2 only fits room 1, so request 1 must settle for room 2
	assert.Equal(t, 2, byRequest[1])
	assert.Equal(t, 1, byRequest[2])
	assert.InDelta(t, 0.8+0.9, total, 1e-9)
}

func TestExactSolver_EmptyCandidatesIsOptimal(t *testing.T) {
	assignments, status := (&ExactSolver{}).Solve(context.Background(), nil, nil, testConfig())
	assert.Equal(t, StatusOptimal, status)
	assert.Empty(t, assignments)
}

func TestExactSolver_DisabledReportsUnavailable(t *testing.T) {
	candidates := []Candidate{{RequestID: 1, RoomID: 1, StakeholderID: "dept-a", Score: 1}}
	assignments, status := (&ExactSolver{Disabled: true}).Solve(context.Background(), candidates, nil, testConfig())
	assert.Equal(t, StatusUnavailable, status)
	assert.Nil(t, assignments)
}

func TestExactSolver_NodeBudgetAbortsWithUnknown(t *testing.T) {
	rooms := []model.Room{
		{ID: 1, Capacity: 20}, {ID: 2, Capacity: 20},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
		{ID: 2, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.8},
		{RoomID: 2, IdleProbability: 0.8},
	}

	cfg := testConfig()
	cfg.SolverNodeBudget = 1
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
	assert.Equal(t, StatusUnknown, status)
	assert.Nil(t, assignments)
}

func TestExactSolver_CancelledContextAbortsWithUnknown(t *testing.T) {
	// Enough candidates that the search passes a cancellation checkpoint
	rooms := make([]model.Room, 0, 12)
	requests := make([]model.Request, 0, 12)
	predictions := make([]model.IdlePrediction, 0, 12)
	for i := 1; i <= 12; i++ {
		rooms = append(rooms, model.Room{ID: i, Capacity: 20})
		requests = append(requests, model.Request{ID: i, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0})
		predictions = append(predictions, model.IdlePrediction{RoomID: i, IdleProbability: 0.8})
	}

	cfg := testConfig()
	cfg.SolverNodeBudget = 1_000_000_000
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, status := (&ExactSolver{}).Solve(ctx, candidates, requests, cfg)
	assert.Equal(t, StatusUnknown, status)
}

func TestExactSolver_SameSeedSameAssignments(t *testing.T) {
	// All scores are identical, so the outcome is entirely tie-breaking
	rooms := []model.Room{
		{ID: 1, Capacity: 20}, {ID: 2, Capacity: 20},
		{ID: 3, Capacity: 20}, {ID: 4, Capacity: 20},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
		{ID: 2, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 1.0},
		{ID: 3, StakeholderID: "dept-c", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.8},
		{RoomID: 2, IdleProbability: 0.8},
		{RoomID: 3, IdleProbability: 0.8},
		{RoomID: 4, IdleProbability: 0.8},
	}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	first, status := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusOptimal, status)

	for i := 0; i < 5; i++ {
		again, _ := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
		assert.Equal(t, first, again)
	}
}

func TestExactSolver_SingleRequestStillAssignable(t *testing.T) {
	// With one pending request the raw cap product (0.6 x 1) is below one;
	// the effective limit must floor at a single assignment per stakeholder
	// instead of forbidding every assignment.
	rooms := []model.Room{{ID: 1, Capacity: 30}}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{{RoomID: 1, IdleProbability: 0.9}}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusOptimal, status)
	require.Len(t, assignments, 1)
	assert.Equal(t, 1, assignments[0].RequestID)

	result := buildResult(assignments, requests, false)
	assert.Empty(t, CheckInvariants(result, rooms, requests, predictions, cfg))
}

func TestExactSolver_StakeholderCapBindsCount(t *testing.T) {
	rooms := []model.Room{
		{ID: 1, Capacity: 20}, {ID: 2, Capacity: 20}, {ID: 3, Capacity: 20},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 5.0},
		{ID: 2, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 5.0},
		{ID: 3, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 5.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.9},
		{RoomID: 3, IdleProbability: 0.9},
	}

	cfg := testConfig()
	cfg.StakeholderUsageCap = 0.34 // floor(0.34 * 3) = 1 assignment
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&ExactSolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusOptimal, status)
	assert.Len(t, assignments, 1)
}
