package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/idlematch/idlematch/internal/config"
	"github.com/idlematch/idlematch/pkg/core/allocator"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// ErrDraftNotFound is returned by Approve when no allocation draft exists
var ErrDraftNotFound = errors.New("no allocation draft found, run allocate before approve")

// Store defines the database operations needed by the allocation workflow
type Store interface {
	ListRooms(ctx context.Context) ([]model.Room, error)
	ListPendingRequests(ctx context.Context, date, timeSlot string) ([]model.Request, error)
	ListAllPendingRequests(ctx context.Context) ([]model.Request, error)
	ListPredictions(ctx context.Context, date, timeSlot string) ([]model.IdlePrediction, error)
	SaveDemandForecasts(ctx context.Context, forecasts []model.DemandForecast) error
	CommitAllocations(ctx context.Context, entries []model.AllocationLogEntry, requestIDs []int) error
}

// AllocationDraft holds the most recent allocation result pending approval.
// At most one draft exists per process; every successful Allocate replaces
// it and a successful Approve consumes it.
type AllocationDraft struct {
	Date      string
	TimeSlot  string
	Result    allocator.Result
	CreatedAt time.Time
}

// Workflow coordinates the allocate -> approve flow and owns the single
// draft slot. Allocate, Approve, and draft reads are serialized by one
// mutex so a reader never observes a partially replaced draft.
//
// The draft is process-local state: this workflow is only valid for a
// single-process deployment.
type Workflow struct {
	mu        sync.Mutex
	store     Store
	predictor Predictor
	engine    *allocator.Engine
	cfg       *config.Config
	logger    *zap.Logger
	draft     *AllocationDraft
}

// NewWorkflow creates the workflow with its solver pair wired from config
func NewWorkflow(store Store, predictor Predictor, cfg *config.Config, logger *zap.Logger) *Workflow {
	exact := &allocator.ExactSolver{Disabled: cfg.Allocation.DisableExactSolver}
	fallback := &allocator.GreedySolver{}
	return &Workflow{
		store:     store,
		predictor: predictor,
		engine:    allocator.NewEngine(exact, fallback, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Draft returns a copy of the pending draft, or nil if none exists
func (w *Workflow) Draft() *AllocationDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return nil
	}
	draft := *w.draft
	return &draft
}
