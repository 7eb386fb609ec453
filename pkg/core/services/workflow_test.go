package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/internal/config"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// mockStore implements Store and PredictionStore for testing
type mockStore struct {
	rooms       []model.Room
	requests    []model.Request
	predictions []model.IdlePrediction

	committedEntries    []model.AllocationLogEntry
	committedRequestIDs []int
	savedPredictions    []model.IdlePrediction
	savedForecasts      []model.DemandForecast

	listRoomsErr    error
	listRequestsErr error
	commitErr       error
}

func (m *mockStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	if m.listRoomsErr != nil {
		return nil, m.listRoomsErr
	}
	return m.rooms, nil
}

func (m *mockStore) ListPendingRequests(ctx context.Context, date, timeSlot string) ([]model.Request, error) {
	if m.listRequestsErr != nil {
		return nil, m.listRequestsErr
	}
	var matched []model.Request
	for _, request := range m.requests {
		if request.Date == date && request.TimeSlot == timeSlot && request.Status == model.StatusPending {
			matched = append(matched, request)
		}
	}
	return matched, nil
}

func (m *mockStore) ListAllPendingRequests(ctx context.Context) ([]model.Request, error) {
	if m.listRequestsErr != nil {
		return nil, m.listRequestsErr
	}
	var matched []model.Request
	for _, request := range m.requests {
		if request.Status == model.StatusPending {
			matched = append(matched, request)
		}
	}
	return matched, nil
}

func (m *mockStore) ListPredictions(ctx context.Context, date, timeSlot string) ([]model.IdlePrediction, error) {
	var matched []model.IdlePrediction
	for _, prediction := range m.predictions {
		if prediction.Date == date && prediction.TimeSlot == timeSlot {
			matched = append(matched, prediction)
		}
	}
	return matched, nil
}

func (m *mockStore) SavePrediction(ctx context.Context, prediction model.IdlePrediction) error {
	m.savedPredictions = append(m.savedPredictions, prediction)
	return nil
}

func (m *mockStore) SaveDemandForecasts(ctx context.Context, forecasts []model.DemandForecast) error {
	m.savedForecasts = append(m.savedForecasts, forecasts...)
	return nil
}

func (m *mockStore) CommitAllocations(ctx context.Context, entries []model.AllocationLogEntry, requestIDs []int) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committedEntries = append(m.committedEntries, entries...)
	m.committedRequestIDs = append(m.committedRequestIDs, requestIDs...)
	return nil
}

func testAppConfig() *config.Config {
	return &config.Config{
		DatabaseURL: "postgres://test",
		Allocation: config.AllocationSettings{
			IdleProbabilityThreshold: 0.6,
			StakeholderUsageCap:      0.6,
			SolverTimeBudgetMillis:   2000,
			SolverNodeBudget:         1_000_000,
			SolverSeed:               42,
			SimulationSolverSeed:     1042,
		},
		Prediction: config.PredictionSettings{
			DefaultOccupancyProbability: 0.5,
			DefaultConfidence:           0.3,
		},
	}
}

func newTestWorkflow(store *mockStore, cfg *config.Config) *Workflow {
	predictor := NewFallbackPredictor(store, cfg.Prediction)
	return NewWorkflow(store, predictor, cfg, zap.NewNop())
}

func TestWorkflow_AllocateCreatesDraft(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{
			{ID: 1, Name: "Lab A", Capacity: 30},
			{ID: 2, Name: "Lab B", Capacity: 20},
		},
		requests: []model.Request{
			{ID: 10, StakeholderID: "dept-a", RequestedCapacity: 25, PriorityWeight: 1.2, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
			{ID: 11, StakeholderID: "dept-b", RequestedCapacity: 18, PriorityWeight: 1.1, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
		},
		predictions: []model.IdlePrediction{
			{RoomID: 1, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.96},
			{RoomID: 2, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.75},
		},
	}

	workflow := newTestWorkflow(store, testAppConfig())

	result, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "09-11"})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 2)
	assert.False(t, result.UsedFallback)

	draft := workflow.Draft()
	require.NotNil(t, draft)
	assert.Equal(t, "2026-09-01", draft.Date)
	assert.Equal(t, "09-11", draft.TimeSlot)
	assert.Equal(t, *result, draft.Result)

	// Drafting alone must not touch the store
	assert.Empty(t, store.committedEntries)
	assert.Empty(t, store.committedRequestIDs)
}

func TestWorkflow_AllocateRejectsBadInputs(t *testing.T) {
	workflow := newTestWorkflow(&mockStore{}, testAppConfig())

	_, err := workflow.Allocate(context.Background(), AllocateParams{Date: "01-09-2026", TimeSlot: "09-11"})
	assert.Error(t, err)

	_, err = workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "9am"})
	assert.Error(t, err)

	_, err = workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "18-09"})
	assert.Error(t, err)

	badThreshold := 1.5
	_, err = workflow.Allocate(context.Background(), AllocateParams{
		Date: "2026-09-01", TimeSlot: "09-11", IdleProbabilityThreshold: &badThreshold,
	})
	assert.Error(t, err)
}

func TestWorkflow_AllocateFillsPredictionGaps(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{{ID: 1, Capacity: 30}},
		requests: []model.Request{
			{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
		},
	}

	cfg := testAppConfig()
	cfg.Prediction.DefaultOccupancyProbability = 0.3 // idle fallback 0.7

	workflow := newTestWorkflow(store, cfg)

	result, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "09-11"})
	require.NoError(t, err)

	// The gap fill is persisted during a real allocation run
	require.Len(t, store.savedPredictions, 1)
	assert.Equal(t, 1, store.savedPredictions[0].RoomID)
	assert.InDelta(t, 0.7, store.savedPredictions[0].IdleProbability, 1e-9)

	require.Len(t, result.Assignments, 1)
	assert.InDelta(t, 0.7, result.Assignments[0].Score, 1e-9)
}

func TestWorkflow_SecondAllocateReplacesDraft(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{{ID: 1, Capacity: 30}},
		requests: []model.Request{
			{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
			{ID: 2, StakeholderID: "dept-b", RequestedCapacity: 10, PriorityWeight: 1.0, Date: "2026-09-02", TimeSlot: "14-16", Status: model.StatusPending},
		},
		predictions: []model.IdlePrediction{
			{RoomID: 1, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.9},
			{RoomID: 1, Date: "2026-09-02", TimeSlot: "14-16", IdleProbability: 0.9},
		},
	}

	workflow := newTestWorkflow(store, testAppConfig())

	_, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "09-11"})
	require.NoError(t, err)

	_, err = workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-02", TimeSlot: "14-16"})
	require.NoError(t, err)

	draft := workflow.Draft()
	require.NotNil(t, draft)
	assert.Equal(t, "2026-09-02", draft.Date)
	assert.Equal(t, "14-16", draft.TimeSlot)
}

func TestWorkflow_ApproveWithoutDraft(t *testing.T) {
	workflow := newTestWorkflow(&mockStore{}, testAppConfig())

	_, err := workflow.Approve(context.Background())
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestWorkflow_ApproveCommitsAndClearsDraft(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{
			{ID: 1, Capacity: 30},
			{ID: 2, Capacity: 20},
		},
		requests: []model.Request{
			{ID: 10, StakeholderID: "dept-a", RequestedCapacity: 25, PriorityWeight: 1.2, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
			{ID: 11, StakeholderID: "dept-b", RequestedCapacity: 18, PriorityWeight: 1.1, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
		},
		predictions: []model.IdlePrediction{
			{RoomID: 1, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.96},
			{RoomID: 2, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.75},
		},
	}

	workflow := newTestWorkflow(store, testAppConfig())

	allocated, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "09-11"})
	require.NoError(t, err)

	approved, err := workflow.Approve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "APPROVED", approved.Status)
	assert.Equal(t, len(allocated.Assignments), approved.ApprovedAllocationsCount)
	assert.Equal(t, allocated.ObjectiveValue, approved.ObjectiveValue)
	assert.Equal(t, allocated.FairnessMetric, approved.FairnessMetric)

	require.Len(t, store.committedEntries, 2)
	assert.ElementsMatch(t, []int{10, 11}, store.committedRequestIDs)
	for _, entry := range store.committedEntries {
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "2026-09-01", entry.Date)
		assert.Equal(t, "09-11", entry.TimeSlot)
	}

	// Draft consumed: a second approve must fail
	assert.Nil(t, workflow.Draft())
	_, err = workflow.Approve(context.Background())
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestWorkflow_FailedCommitKeepsDraft(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{{ID: 1, Capacity: 30}},
		requests: []model.Request{
			{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0, Date: "2026-09-01", TimeSlot: "09-11", Status: model.StatusPending},
		},
		predictions: []model.IdlePrediction{
			{RoomID: 1, Date: "2026-09-01", TimeSlot: "09-11", IdleProbability: 0.9},
		},
		commitErr: errors.New("connection reset"),
	}

	workflow := newTestWorkflow(store, testAppConfig())

	_, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-01", TimeSlot: "09-11"})
	require.NoError(t, err)

	_, err = workflow.Approve(context.Background())
	require.Error(t, err)

	// The draft survives a failed commit and can be retried
	require.NotNil(t, workflow.Draft())
	store.commitErr = nil

	approved, err := workflow.Approve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, approved.ApprovedAllocationsCount)
}

func TestWorkflow_MaintenanceWindowBlocksRoom(t *testing.T) {
	store := &mockStore{
		rooms: []model.Room{
			{ID: 1, Capacity: 30},
			{ID: 2, Capacity: 30},
		},
		requests: []model.Request{
			{ID: 1, StakeholderID: "dept-a", RequestedCapacity: 10, PriorityWeight: 1.0, Date: "2026-09-07", TimeSlot: "09-11", Status: model.StatusPending},
		},
		predictions: []model.IdlePrediction{
			{RoomID: 1, Date: "2026-09-07", TimeSlot: "09-11", IdleProbability: 0.99},
			{RoomID: 2, Date: "2026-09-07", TimeSlot: "09-11", IdleProbability: 0.80},
		},
	}

	cfg := testAppConfig()
	// 2026-09-07 is a Monday; room 1 is serviced every Monday
	cfg.MaintenanceWindows = []config.MaintenanceWindow{
		{RRule: "FREQ=WEEKLY;BYDAY=MO", RoomIDs: []int{1}},
	}

	workflow := newTestWorkflow(store, cfg)

	result, err := workflow.Allocate(context.Background(), AllocateParams{Date: "2026-09-07", TimeSlot: "09-11"})
	require.NoError(t, err)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 2, result.Assignments[0].RoomID)
}
