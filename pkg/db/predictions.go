package db

import (
	"context"
	"fmt"
	"time"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// ListPredictions retrieves the idle predictions for one date and time slot
func (db *DB) ListPredictions(ctx context.Context, date, timeSlot string) ([]model.IdlePrediction, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT room_id, prediction_date, time_slot, idle_probability, confidence_score
		FROM idle_prediction
		WHERE prediction_date = $1 AND time_slot = $2
		ORDER BY room_id
	`, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.IdlePrediction
	for rows.Next() {
		var p model.IdlePrediction
		var predictionDate time.Time
		if err := rows.Scan(&p.RoomID, &predictionDate, &p.TimeSlot, &p.IdleProbability, &p.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.Date = predictionDate.Format("2006-01-02")
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return predictions, nil
}

// SavePrediction upserts an idle prediction for a room, date and time slot
func (db *DB) SavePrediction(ctx context.Context, prediction model.IdlePrediction) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO idle_prediction (room_id, prediction_date, time_slot, idle_probability, confidence_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, prediction_date, time_slot)
		DO UPDATE SET idle_probability = EXCLUDED.idle_probability, confidence_score = EXCLUDED.confidence_score
	`, prediction.RoomID, prediction.Date, prediction.TimeSlot, prediction.IdleProbability, prediction.ConfidenceScore)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}
