package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/internal/config"
)

// Scheduler runs allocation drafts on a cron schedule, one run per
// configured time slot for the following day. Drafts still need a manual
// Approve; the scheduler never commits anything on its own.
type Scheduler struct {
	workflow *Workflow
	cfg      config.ScheduleSettings
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewScheduler(workflow *Workflow, cfg config.ScheduleSettings, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		workflow: workflow,
		cfg:      cfg,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Run blocks until the context is cancelled, firing allocation runs on the
// configured cron expression
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Cron, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Scheduler started",
		zap.String("cron", s.cfg.Cron),
		zap.Strings("time_slots", s.cfg.TimeSlots))
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
	return ctx.Err()
}

// runOnce drafts allocations for every configured slot of the next day.
// A failing slot is logged and skipped so the remaining slots still run.
func (s *Scheduler) runOnce(ctx context.Context) {
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	for _, timeSlot := range s.cfg.TimeSlots {
		result, err := s.workflow.Allocate(ctx, AllocateParams{Date: date, TimeSlot: timeSlot})
		if err != nil {
			s.logger.Error("Scheduled allocation run failed",
				zap.String("date", date),
				zap.String("time_slot", timeSlot),
				zap.Error(err))
			continue
		}
		s.logger.Info("Scheduled allocation draft ready",
			zap.String("date", date),
			zap.String("time_slot", timeSlot),
			zap.Int("assignments", len(result.Assignments)),
			zap.Bool("used_fallback", result.UsedFallback))
	}
}
