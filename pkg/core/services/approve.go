package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// ApproveResult reports a committed allocation
type ApproveResult struct {
	Status                   string
	ApprovedAllocationsCount int
	ObjectiveValue           float64
	FairnessMetric           float64
}

// Approve commits the pending draft: every assignment is written as an
// allocation log entry and each assigned request is marked ALLOCATED, in a
// single transaction. The draft is cleared only after the commit succeeds,
// so a failed commit leaves both the draft and the store unchanged.
func (w *Workflow) Approve(ctx context.Context) (*ApproveResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft == nil {
		return nil, ErrDraftNotFound
	}
	draft := w.draft

	entries := make([]model.AllocationLogEntry, 0, len(draft.Result.Assignments))
	requestIDs := make([]int, 0, len(draft.Result.Assignments))
	for _, assignment := range draft.Result.Assignments {
		entries = append(entries, model.AllocationLogEntry{
			ID:        uuid.New().String(),
			RequestID: assignment.RequestID,
			RoomID:    assignment.RoomID,
			Date:      draft.Date,
			TimeSlot:  draft.TimeSlot,
			Score:     assignment.Score,
		})
		requestIDs = append(requestIDs, assignment.RequestID)
	}

	if err := w.store.CommitAllocations(ctx, entries, requestIDs); err != nil {
		return nil, fmt.Errorf("failed to commit allocations: %w", err)
	}

	w.logger.Info("Allocation draft approved",
		zap.String("date", draft.Date),
		zap.String("time_slot", draft.TimeSlot),
		zap.Int("approved_allocations", len(entries)),
		zap.Float64("objective_value", draft.Result.ObjectiveValue),
		zap.Float64("fairness_metric", draft.Result.FairnessMetric))

	w.draft = nil

	return &ApproveResult{
		Status:                   "APPROVED",
		ApprovedAllocationsCount: len(entries),
		ObjectiveValue:           draft.Result.ObjectiveValue,
		FairnessMetric:           draft.Result.FairnessMetric,
	}, nil
}
