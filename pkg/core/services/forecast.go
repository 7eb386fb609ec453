package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// buildDemandForecasts derives per-slot demand intensity from the pending
// backlog: each date/time slot's request count divided by the total pending
// count. Output is sorted by date then time slot.
func buildDemandForecasts(requests []model.Request, generatedAt time.Time) []model.DemandForecast {
	if len(requests) == 0 {
		return nil
	}

	counts := make(map[slotKey]int)
	for _, request := range requests {
		counts[slotKey{date: request.Date, timeSlot: request.TimeSlot}]++
	}

	keys := make([]slotKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].timeSlot < keys[j].timeSlot
	})

	total := float64(len(requests))
	forecasts := make([]model.DemandForecast, 0, len(keys))
	for _, key := range keys {
		forecasts = append(forecasts, model.DemandForecast{
			Date:           key.date,
			TimeSlot:       key.timeSlot,
			RequestCount:   counts[key],
			IntensityScore: float64(counts[key]) / total,
			GeneratedAt:    generatedAt,
		})
	}
	return forecasts
}

// forecastDemand recomputes demand intensity over the whole pending backlog
// and persists it alongside the allocation run
func (w *Workflow) forecastDemand(ctx context.Context) error {
	pending, err := w.store.ListAllPendingRequests(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending requests: %w", err)
	}

	forecasts := buildDemandForecasts(pending, time.Now())
	if len(forecasts) == 0 {
		return nil
	}

	if err := w.store.SaveDemandForecasts(ctx, forecasts); err != nil {
		return fmt.Errorf("failed to save demand forecasts: %w", err)
	}

	w.logger.Debug("Demand forecasts persisted", zap.Int("slots", len(forecasts)))
	return nil
}
