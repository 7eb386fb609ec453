package allocator

import (
	"fmt"
	"time"
)

// ConstraintConfig contains the validated thresholds and caps used by every
// allocation run. Seed drives all solver tie-breaking so identical inputs
// always produce identical assignments.
type ConstraintConfig struct {
	// IdleProbabilityThreshold is the minimum predicted idle probability a
	// room must have to be eligible. Must be in [0, 1].
	IdleProbabilityThreshold float64

	// StakeholderUsageCap is the maximum fraction of total pending requests
	// one stakeholder may have assigned. Must be in (0, 1].
	StakeholderUsageCap float64

	// SolverTimeBudget bounds the exact solve wall time. The solve is
	// treated as UNKNOWN and routed to the fallback when exceeded.
	SolverTimeBudget time.Duration

	// SolverNodeBudget bounds the number of search nodes the exact solver
	// may explore, independent of wall time.
	SolverNodeBudget int

	// Seed pins solver tie-breaking. Baseline and simulated runs use
	// independent seeds.
	Seed int64
}

// stakeholderCapLimit converts the fractional usage cap into an assignment
// count limit. The limit never drops below one, so a small backlog (where
// cap x n < 1) can still be served.
func stakeholderCapLimit(usageCap float64, totalRequests int) float64 {
	limit := usageCap * float64(totalRequests)
	if limit < 1 {
		return 1
	}
	return limit
}

// Validate checks the config before any candidate is built
func (c ConstraintConfig) Validate() error {
	if c.IdleProbabilityThreshold < 0 || c.IdleProbabilityThreshold > 1 {
		return fmt.Errorf("idle probability threshold must be between 0 and 1, got %v", c.IdleProbabilityThreshold)
	}
	if c.StakeholderUsageCap <= 0 || c.StakeholderUsageCap > 1 {
		return fmt.Errorf("stakeholder usage cap must be in (0, 1], got %v", c.StakeholderUsageCap)
	}
	if c.SolverTimeBudget <= 0 {
		return fmt.Errorf("solver time budget must be positive, got %v", c.SolverTimeBudget)
	}
	if c.SolverNodeBudget <= 0 {
		return fmt.Errorf("solver node budget must be positive, got %d", c.SolverNodeBudget)
	}
	return nil
}
