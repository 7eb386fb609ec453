package db

import (
	"context"
	"fmt"
	"time"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// SaveDemandForecasts upserts the demand forecasts in a single transaction,
// keeping one row per date and time slot
func (db *DB) SaveDemandForecasts(ctx context.Context, forecasts []model.DemandForecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, forecast := range forecasts {
		_, err := tx.Exec(ctx, `
			INSERT INTO demand_forecast (forecast_date, time_slot, request_count, intensity_score, generated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (forecast_date, time_slot)
			DO UPDATE SET request_count = EXCLUDED.request_count,
			              intensity_score = EXCLUDED.intensity_score,
			              generated_at = EXCLUDED.generated_at
		`, forecast.Date, forecast.TimeSlot, forecast.RequestCount, forecast.IntensityScore, forecast.GeneratedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save demand forecast: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListDemandForecasts retrieves all demand forecasts ordered by date and
// time slot
func (db *DB) ListDemandForecasts(ctx context.Context) ([]model.DemandForecast, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT forecast_date, time_slot, request_count, intensity_score, generated_at
		FROM demand_forecast
		ORDER BY forecast_date, time_slot
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []model.DemandForecast
	for rows.Next() {
		var f model.DemandForecast
		var forecastDate time.Time
		if err := rows.Scan(&forecastDate, &f.TimeSlot, &f.RequestCount, &f.IntensityScore, &f.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan demand forecast: %w", err)
		}
		f.Date = forecastDate.Format("2006-01-02")
		forecasts = append(forecasts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demand forecasts: %w", err)
	}

	return forecasts, nil
}
