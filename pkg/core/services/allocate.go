package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/idlematch/idlematch/pkg/core/allocator"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// AllocateParams are the inputs for one allocation run. Nil threshold or
// cap means the configured default applies.
type AllocateParams struct {
	Date                     string
	TimeSlot                 string
	IdleProbabilityThreshold *float64
	StakeholderUsageCap      *float64
}

// Allocate builds a fresh allocation for the given date and time slot and
// unconditionally replaces any existing draft with the result. Nothing is
// persisted until Approve.
func (w *Workflow) Allocate(ctx context.Context, params AllocateParams) (*allocator.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validateDate(params.Date); err != nil {
		return nil, err
	}
	if err := validateTimeSlot(params.TimeSlot); err != nil {
		return nil, err
	}

	cc := w.constraintConfig(params.IdleProbabilityThreshold, params.StakeholderUsageCap, w.cfg.Allocation.SolverSeed)
	if err := cc.Validate(); err != nil {
		return nil, err
	}

	w.logger.Debug("Starting allocation run",
		zap.String("date", params.Date),
		zap.String("time_slot", params.TimeSlot),
		zap.Float64("threshold", cc.IdleProbabilityThreshold),
		zap.Float64("usage_cap", cc.StakeholderUsageCap))

	rooms, err := w.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}
	rooms = filterRoomsForDate(rooms, w.cfg.MaintenanceWindows, params.Date, w.logger)

	requests, err := w.store.ListPendingRequests(ctx, params.Date, params.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending requests: %w", err)
	}

	predictions, err := w.loadPredictions(ctx, rooms, params.Date, params.TimeSlot, true)
	if err != nil {
		return nil, err
	}

	result, err := w.engine.Run(ctx, rooms, requests, predictions, cc)
	if err != nil {
		return nil, err
	}

	// Each run refreshes the demand intensity view of the backlog
	if err := w.forecastDemand(ctx); err != nil {
		return nil, err
	}

	w.logger.Info("Allocation run completed",
		zap.String("date", params.Date),
		zap.String("time_slot", params.TimeSlot),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("unassigned", len(result.UnassignedRequestIDs)),
		zap.Float64("objective_value", result.ObjectiveValue),
		zap.Float64("fairness_metric", result.FairnessMetric),
		zap.Bool("used_fallback", result.UsedFallback))

	// Last call wins: any previous draft is discarded
	w.draft = &AllocationDraft{
		Date:      params.Date,
		TimeSlot:  params.TimeSlot,
		Result:    *result,
		CreatedAt: time.Now(),
	}

	return result, nil
}

// loadPredictions returns the persisted predictions for the slot, asking
// the predictor to fill gaps for rooms that have none. Gap predictions are
// only written back when persist is true.
func (w *Workflow) loadPredictions(ctx context.Context, rooms []model.Room, date, timeSlot string, persist bool) ([]model.IdlePrediction, error) {
	persisted, err := w.store.ListPredictions(ctx, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}

	byRoom := make(map[int]model.IdlePrediction, len(persisted))
	for _, prediction := range persisted {
		byRoom[prediction.RoomID] = prediction
	}

	missing := make([]int, 0)
	for _, room := range rooms {
		if _, ok := byRoom[room.ID]; !ok {
			missing = append(missing, room.ID)
		}
	}

	if len(missing) > 0 {
		w.logger.Info("Prediction gap detected",
			zap.String("date", date),
			zap.String("time_slot", timeSlot),
			zap.Ints("missing_rooms", missing),
			zap.Bool("persist", persist))
		for _, roomID := range missing {
			prediction, err := w.predictor.Predict(ctx, roomID, date, timeSlot, persist)
			if err != nil {
				return nil, fmt.Errorf("failed to predict idle probability for room %d: %w", roomID, err)
			}
			byRoom[roomID] = prediction
		}
	}

	roomIDs := make([]int, 0, len(byRoom))
	for roomID := range byRoom {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Ints(roomIDs)

	predictions := make([]model.IdlePrediction, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		predictions = append(predictions, byRoom[roomID])
	}
	return predictions, nil
}

// constraintConfig builds the per-run constraint config, falling back to
// the configured defaults for absent values
func (w *Workflow) constraintConfig(threshold, usageCap *float64, seed int64) allocator.ConstraintConfig {
	cc := allocator.ConstraintConfig{
		IdleProbabilityThreshold: w.cfg.Allocation.IdleProbabilityThreshold,
		StakeholderUsageCap:      w.cfg.Allocation.StakeholderUsageCap,
		SolverTimeBudget:         time.Duration(w.cfg.Allocation.SolverTimeBudgetMillis) * time.Millisecond,
		SolverNodeBudget:         w.cfg.Allocation.SolverNodeBudget,
		Seed:                     seed,
	}
	if threshold != nil {
		cc.IdleProbabilityThreshold = *threshold
	}
	if usageCap != nil {
		cc.StakeholderUsageCap = *usageCap
	}
	return cc
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must follow YYYY-MM-DD format: %w", err)
	}
	return nil
}

func validateTimeSlot(timeSlot string) error {
	parts := strings.Split(timeSlot, "-")
	if len(parts) != 2 {
		return fmt.Errorf("time slot must follow HH-HH format, got %q", timeSlot)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("time slot must follow HH-HH format, got %q", timeSlot)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("time slot must follow HH-HH format, got %q", timeSlot)
	}
	if start < 0 || start > 23 || end < 0 || end > 23 || start >= end {
		return fmt.Errorf("time slot boundaries are invalid: %q", timeSlot)
	}
	return nil
}
