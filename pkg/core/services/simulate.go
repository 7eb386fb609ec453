package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/pkg/core/allocator"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// SimulationOverride holds the temporary what-if constraints for one
// simulation run. Nil or empty fields leave the corresponding baseline
// values untouched.
type SimulationOverride struct {
	IdleThreshold      *float64
	StakeholderCap     *float64
	CapacityOverride   map[int]int        // room ID -> capacity
	PriorityAdjustment map[string]float64 // stakeholder -> multiplier
}

// SimulationResult compares a baseline run against a simulated run with the
// overrides applied. Deltas are simulated minus baseline.
type SimulationResult struct {
	RunID     string
	Baseline  allocator.Metrics
	Simulated allocator.Metrics
	Delta     allocator.MetricsDelta
}

type slotKey struct {
	date     string
	timeSlot string
}

// snapshot is a point-in-time view of the allocation inputs. Simulated runs
// operate on value clones of it so temporary overrides never leak into the
// baseline or into persisted state.
type snapshot struct {
	rooms             []model.Room
	requestsBySlot    map[slotKey][]model.Request
	predictionsBySlot map[slotKey][]model.IdlePrediction
}

func (s *snapshot) slotKeys() []slotKey {
	keys := make([]slotKey, 0, len(s.requestsBySlot))
	for key := range s.requestsBySlot {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].timeSlot < keys[j].timeSlot
	})
	return keys
}

func (s *snapshot) allRequests() []model.Request {
	requests := make([]model.Request, 0)
	for _, key := range s.slotKeys() {
		requests = append(requests, s.requestsBySlot[key]...)
	}
	return requests
}

// Simulate reruns the allocation pipeline twice, once on the unmodified
// snapshot and once on a clone with the overrides applied, and returns both
// metric sets plus their deltas. Neither run touches the draft or writes to
// the store; prediction gap fills are explicitly non-persisting.
func (w *Workflow) Simulate(ctx context.Context, override SimulationOverride) (*SimulationResult, error) {
	runID := uuid.New().String()
	w.logger.Info("Simulation run started",
		zap.String("run_id", runID),
		zap.Bool("has_threshold", override.IdleThreshold != nil),
		zap.Bool("has_cap", override.StakeholderCap != nil),
		zap.Int("capacity_overrides", len(override.CapacityOverride)),
		zap.Int("priority_adjustments", len(override.PriorityAdjustment)))

	snap, err := w.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateOverride(override, snap); err != nil {
		return nil, err
	}

	baselineConfig := w.constraintConfig(nil, nil, w.cfg.Allocation.SolverSeed)
	baselineRun, err := w.runPipeline(ctx, snap, baselineConfig)
	if err != nil {
		return nil, err
	}

	simulated := cloneSnapshot(snap)
	applyOverride(simulated, override)
	simulatedConfig := w.constraintConfig(override.IdleThreshold, override.StakeholderCap, w.cfg.Allocation.SimulationSolverSeed)
	simulatedRun, err := w.runPipeline(ctx, simulated, simulatedConfig)
	if err != nil {
		return nil, err
	}

	baselineMetrics := computeMetrics(snap, baselineRun)
	simulatedMetrics := computeMetrics(simulated, simulatedRun)
	delta := allocator.Delta(baselineMetrics, simulatedMetrics)

	w.logger.Info("Simulation run completed",
		zap.String("run_id", runID),
		zap.Float64("baseline_objective", baselineMetrics.ObjectiveValue),
		zap.Float64("simulated_objective", simulatedMetrics.ObjectiveValue),
		zap.Int("requests_satisfied_delta", delta.RequestsSatisfied),
		zap.Float64("utilization_delta", delta.UtilizationRate))

	return &SimulationResult{
		RunID:     runID,
		Baseline:  baselineMetrics,
		Simulated: simulatedMetrics,
		Delta:     delta,
	}, nil
}

// loadSnapshot reads rooms, all pending requests, and predictions in one
// pass. Prediction gaps are filled through the predictor with persist=false.
func (w *Workflow) loadSnapshot(ctx context.Context) (*snapshot, error) {
	rooms, err := w.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}

	requests, err := w.store.ListAllPendingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending requests: %w", err)
	}

	requestsBySlot := make(map[slotKey][]model.Request)
	for _, request := range requests {
		key := slotKey{date: request.Date, timeSlot: request.TimeSlot}
		requestsBySlot[key] = append(requestsBySlot[key], request)
	}

	snap := &snapshot{
		rooms:             rooms,
		requestsBySlot:    requestsBySlot,
		predictionsBySlot: make(map[slotKey][]model.IdlePrediction),
	}

	for _, key := range snap.slotKeys() {
		slotRooms := filterRoomsForDate(rooms, w.cfg.MaintenanceWindows, key.date, w.logger)
		predictions, err := w.loadPredictions(ctx, slotRooms, key.date, key.timeSlot, false)
		if err != nil {
			return nil, err
		}
		snap.predictionsBySlot[key] = predictions
	}

	return snap, nil
}

// cloneSnapshot builds a fully independent value copy of the snapshot so
// override mutations cannot alias baseline data
func cloneSnapshot(s *snapshot) *snapshot {
	clone := &snapshot{
		rooms:             make([]model.Room, len(s.rooms)),
		requestsBySlot:    make(map[slotKey][]model.Request, len(s.requestsBySlot)),
		predictionsBySlot: make(map[slotKey][]model.IdlePrediction, len(s.predictionsBySlot)),
	}
	copy(clone.rooms, s.rooms)
	for key, requests := range s.requestsBySlot {
		cloned := make([]model.Request, len(requests))
		copy(cloned, requests)
		clone.requestsBySlot[key] = cloned
	}
	for key, predictions := range s.predictionsBySlot {
		cloned := make([]model.IdlePrediction, len(predictions))
		copy(cloned, predictions)
		clone.predictionsBySlot[key] = cloned
	}
	return clone
}

// validateOverride rejects invalid temporary constraints before any
// snapshot is cloned or mutated
func validateOverride(override SimulationOverride, snap *snapshot) error {
	if override.IdleThreshold != nil && (*override.IdleThreshold < 0 || *override.IdleThreshold > 1) {
		return fmt.Errorf("idle threshold override must be between 0 and 1, got %v", *override.IdleThreshold)
	}
	if override.StakeholderCap != nil && (*override.StakeholderCap <= 0 || *override.StakeholderCap > 1) {
		return fmt.Errorf("stakeholder cap override must be in (0, 1], got %v", *override.StakeholderCap)
	}

	roomIDs := make(map[int]bool, len(snap.rooms))
	for _, room := range snap.rooms {
		roomIDs[room.ID] = true
	}
	for roomID, capacity := range override.CapacityOverride {
		if !roomIDs[roomID] {
			return fmt.Errorf("capacity override references unknown room %d", roomID)
		}
		if capacity <= 0 {
			return fmt.Errorf("capacity override for room %d must be positive, got %d", roomID, capacity)
		}
	}

	stakeholders := make(map[string]bool)
	for _, request := range snap.allRequests() {
		stakeholders[request.StakeholderID] = true
	}
	for stakeholder, multiplier := range override.PriorityAdjustment {
		if !stakeholders[stakeholder] {
			return fmt.Errorf("priority adjustment references unknown stakeholder %q", stakeholder)
		}
		if multiplier <= 0 {
			return fmt.Errorf("priority adjustment for stakeholder %q must be positive, got %v", stakeholder, multiplier)
		}
	}

	return nil
}

// applyOverride mutates the (cloned) snapshot with capacity and priority
// adjustments. Threshold and cap overrides travel in the constraint config.
func applyOverride(snap *snapshot, override SimulationOverride) {
	if len(override.CapacityOverride) > 0 {
		for i := range snap.rooms {
			if capacity, ok := override.CapacityOverride[snap.rooms[i].ID]; ok {
				snap.rooms[i].Capacity = capacity
			}
		}
	}
	if len(override.PriorityAdjustment) > 0 {
		for key := range snap.requestsBySlot {
			requests := snap.requestsBySlot[key]
			for i := range requests {
				if multiplier, ok := override.PriorityAdjustment[requests[i].StakeholderID]; ok {
					requests[i].PriorityWeight *= multiplier
				}
			}
		}
	}
}

// pipelineRun aggregates per-slot engine results for one snapshot
type pipelineRun struct {
	assignments    []slotAssignment
	objectiveValue float64
	unassigned     []int
	fairnessMetric float64
}

type slotAssignment struct {
	allocator.Assignment
	date     string
	timeSlot string
}

// runPipeline runs the engine slot by slot over the snapshot and aggregates
// the results. Rooms blocked by a maintenance window on a slot's date are
// excluded for that slot, matching what a live allocation run would see.
// Fairness is computed over all requests in scope, not per slot.
func (w *Workflow) runPipeline(ctx context.Context, snap *snapshot, cc allocator.ConstraintConfig) (*pipelineRun, error) {
	run := &pipelineRun{}

	aggregated := make([]allocator.Assignment, 0)
	for _, key := range snap.slotKeys() {
		slotRooms := filterRoomsForDate(snap.rooms, w.cfg.MaintenanceWindows, key.date, w.logger)
		result, err := w.engine.Run(ctx, slotRooms, snap.requestsBySlot[key], snap.predictionsBySlot[key], cc)
		if err != nil {
			return nil, err
		}
		run.objectiveValue += result.ObjectiveValue
		run.unassigned = append(run.unassigned, result.UnassignedRequestIDs...)
		for _, assignment := range result.Assignments {
			aggregated = append(aggregated, assignment)
			run.assignments = append(run.assignments, slotAssignment{
				Assignment: assignment,
				date:       key.date,
				timeSlot:   key.timeSlot,
			})
		}
	}
	sort.Ints(run.unassigned)
	run.fairnessMetric = allocator.FairnessOverRequests(aggregated, snap.allRequests())

	return run, nil
}

// computeMetrics derives the comparison metrics for one pipeline run
func computeMetrics(snap *snapshot, run *pipelineRun) allocator.Metrics {
	utilizedRooms := make(map[int]bool)
	for _, assignment := range run.assignments {
		utilizedRooms[assignment.RoomID] = true
	}

	utilizationRate := 0.0
	if len(snap.rooms) > 0 {
		utilizationRate = float64(len(utilizedRooms)) / float64(len(snap.rooms))
	}

	idleBySlotRoom := make(map[slotKey]map[int]float64, len(snap.predictionsBySlot))
	for key, predictions := range snap.predictionsBySlot {
		byRoom := make(map[int]float64, len(predictions))
		for _, prediction := range predictions {
			byRoom[prediction.RoomID] = allocator.ClampProbability(prediction.IdleProbability)
		}
		idleBySlotRoom[key] = byRoom
	}

	averageIdle := 0.0
	if len(run.assignments) > 0 {
		sum := 0.0
		for _, assignment := range run.assignments {
			sum += idleBySlotRoom[slotKey{date: assignment.date, timeSlot: assignment.timeSlot}][assignment.RoomID]
		}
		averageIdle = sum / float64(len(run.assignments))
	}

	return allocator.Metrics{
		UtilizationRate:                utilizationRate,
		RequestsSatisfied:              len(run.assignments),
		ObjectiveValue:                 run.objectiveValue,
		RoomsUtilized:                  len(utilizedRooms),
		AverageIdleProbabilityUtilized: averageIdle,
		FairnessMetric:                 run.fairnessMetric,
	}
}
