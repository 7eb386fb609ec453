package allocator

import (
	"context"

	"go.uber.org/zap"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// Engine runs the full decision pipeline for one date/time slot: candidate
// building, the exact solve, and the greedy fallback when the exact result
// cannot be trusted. Solver trouble never surfaces as an error; only an
// invalid ConstraintConfig does.
type Engine struct {
	exact    Solver
	fallback Solver
	logger   *zap.Logger
}

// NewEngine creates an engine with the given exact solver and fallback
func NewEngine(exact, fallback Solver, logger *zap.Logger) *Engine {
	return &Engine{
		exact:    exact,
		fallback: fallback,
		logger:   logger,
	}
}

// Run produces an AllocationResult for the given inputs. An empty candidate
// set yields an empty result (objective 0, fairness 1), not an error.
func (e *Engine) Run(
	ctx context.Context,
	rooms []model.Room,
	requests []model.Request,
	predictions []model.IdlePrediction,
	cfg ConstraintConfig,
) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	candidates := BuildCandidates(rooms, requests, predictions, cfg)
	e.logger.Debug("Built allocation candidates",
		zap.Int("rooms", len(rooms)),
		zap.Int("requests", len(requests)),
		zap.Int("candidates", len(candidates)))

	if len(candidates) == 0 {
		e.logger.Info("No eligible candidate pairs",
			zap.Int("requests", len(requests)))
		return buildResult(nil, requests, false), nil
	}

	assignments, status := e.exact.Solve(ctx, candidates, requests, cfg)
	e.logger.Debug("Exact solve finished",
		zap.String("status", status.String()),
		zap.Int("assignments", len(assignments)))

	trusted := (status == StatusOptimal || status == StatusFeasible) && len(assignments) > 0
	if trusted {
		return buildResult(assignments, requests, false), nil
	}

	// Unavailable, aborted, infeasible, or a degenerate zero-assignment
	// result with feasible pairs present: downgrade to the fallback.
	e.logger.Warn("Exact optimizer not trusted, engaging greedy fallback",
		zap.String("status", status.String()),
		zap.Int("exact_assignments", len(assignments)),
		zap.Int("candidates", len(candidates)))

	fallbackAssignments, fallbackStatus := e.fallback.Solve(ctx, candidates, requests, cfg)
	e.logger.Debug("Fallback solve finished",
		zap.String("status", fallbackStatus.String()),
		zap.Int("assignments", len(fallbackAssignments)))

	return buildResult(fallbackAssignments, requests, true), nil
}
