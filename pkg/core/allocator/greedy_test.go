package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idlematch/idlematch/pkg/core/model"
)

func TestGreedySolver_PriorityOrderWins(t *testing.T) {
	// Both requests fit both rooms; the higher-priority request must take
	// the higher idle probability room even though it arrives second.
	rooms := []model.Room{
		{ID: 1, Capacity: 20},
		{ID: 2, Capacity: 20},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
		{ID: 2, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 3.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.6},
	}

	cfg := testConfig()
	cfg.IdleProbabilityThreshold = 0.5
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusFeasible, status)
	require.Len(t, assignments, 2)

	assert.Equal(t, 2, assignments[0].RequestID)
	assert.Equal(t, 1, assignments[0].RoomID)
	assert.Equal(t, 1, assignments[1].RequestID)
	assert.Equal(t, 2, assignments[1].RoomID)
}

func TestGreedySolver_TightestFitOnIdleTie(t *testing.T) {
	// Equal idle probabilities resolve to the smallest sufficient room
	rooms := []model.Room{
		{ID: 1, Capacity: 100},
		{ID: 2, Capacity: 15},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.8},
		{RoomID: 2, IdleProbability: 0.8},
	}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, _ := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Len(t, assignments, 1)
	assert.Equal(t, 2, assignments[0].RoomID)
}

func TestGreedySolver_RequestIDBreaksPriorityTie(t *testing.T) {
	rooms := []model.Room{{ID: 1, Capacity: 20}}
	requests := []model.Request{
		{ID: 7, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
		{ID: 3, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{{RoomID: 1, IdleProbability: 0.9}}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, _ := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Len(t, assignments, 1)
	assert.Equal(t, 3, assignments[0].RequestID)
}

func TestGreedySolver_SingleRequestStillAssignable(t *testing.T) {
	// With a single pending request the raw cap product (0.6 x 1) is below
	// one; the floored limit keeps the request assignable
	rooms := []model.Room{{ID: 1, Capacity: 30}}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0},
	}
	predictions := []model.IdlePrediction{{RoomID: 1, IdleProbability: 0.9}}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, status := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Equal(t, StatusFeasible, status)
	require.Len(t, assignments, 1)
	assert.Equal(t, 1, assignments[0].RoomID)
}

func TestGreedySolver_RespectsStakeholderCap(t *testing.T) {
	rooms := []model.Room{
		{ID: 1, Capacity: 20}, {ID: 2, Capacity: 20},
		{ID: 3, Capacity: 20}, {ID: 4, Capacity: 20},
	}
	requests := []model.Request{
		{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 2.0},
		{ID: 2, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.9},
		{ID: 3, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.8},
		{ID: 4, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 0.5},
	}
	predictions := []model.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.9},
		{RoomID: 3, IdleProbability: 0.9},
		{RoomID: 4, IdleProbability: 0.9},
	}

	cfg := testConfig()
	cfg.StakeholderUsageCap = 0.5 // at most 2 of 4 requests per stakeholder
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	assignments, _ := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	require.Len(t, assignments, 3)

	deptACount := 0
	for _, a := range assignments {
		if a.StakeholderID == "dept-a" {
			deptACount++
		}
	}
	assert.Equal(t, 2, deptACount)
}

func TestGreedySolver_DeterministicAcrossRuns(t *testing.T) {
	rooms := []model.Room{
		{ID: 1, Capacity: 20}, {ID: 2, Capacity: 20}, {ID: 3, Capacity: 20},
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
	}

	cfg := testConfig()
	candidates := BuildCandidates(rooms, requests, predictions, cfg)

	first, _ := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
	for i := 0; i < 5; i++ {
		again, _ := (&GreedySolver{}).Solve(context.Background(), candidates, requests, cfg)
		assert.Equal(t, first, again)
	}
}
