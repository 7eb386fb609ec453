package services

import (
	"context"
	"fmt"

	"github.com/idlematch/idlematch/internal/config"
	"github.com/idlematch/idlematch/pkg/core/allocator"
	"github.com/idlematch/idlematch/pkg/core/model"
)

// Predictor supplies idle probabilities for rooms that have no persisted
// prediction. How the probability is computed is opaque to the engine.
// Calls with persist=false must leave no trace in the store.
type Predictor interface {
	Predict(ctx context.Context, roomID int, date, timeSlot string, persist bool) (model.IdlePrediction, error)
}

// PredictionStore defines the database operations needed by the fallback predictor
type PredictionStore interface {
	SavePrediction(ctx context.Context, prediction model.IdlePrediction) error
}

// FallbackPredictor serves the configured default idle probability
// (1 - default occupancy) for every room. It stands in for the external
// prediction model, which is out of scope for the engine.
type FallbackPredictor struct {
	store           PredictionStore
	idleProbability float64
	confidence      float64
}

// NewFallbackPredictor creates a predictor from the prediction settings
func NewFallbackPredictor(store PredictionStore, cfg config.PredictionSettings) *FallbackPredictor {
	return &FallbackPredictor{
		store:           store,
		idleProbability: allocator.ClampProbability(1 - cfg.DefaultOccupancyProbability),
		confidence:      allocator.ClampProbability(cfg.DefaultConfidence),
	}
}

func (p *FallbackPredictor) Predict(ctx context.Context, roomID int, date, timeSlot string, persist bool) (model.IdlePrediction, error) {
	prediction := model.IdlePrediction{
		RoomID:          roomID,
		Date:            date,
		TimeSlot:        timeSlot,
		IdleProbability: p.idleProbability,
		ConfidenceScore: p.confidence,
	}
	if persist {
		if err := p.store.SavePrediction(ctx, prediction); err != nil {
			return model.IdlePrediction{}, fmt.Errorf("failed to save prediction: %w", err)
		}
	}
	return prediction, nil
}
