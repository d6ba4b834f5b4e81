package gar

import (
	"context"
	"fmt"
)

type WeightService struct {
	store          WeightStore
	rejectNegative bool
}

func NewWeightService(store WeightStore, rejectNegative bool) *WeightService {
	return &WeightService{store: store, rejectNegative: rejectNegative}
}

// Get returns the stored weights or DefaultWeights when none are stored.
// It never writes.
func (s *WeightService) Get(ctx context.Context) (Weights, error) {
	stored, err := s.store.ReadWeights(ctx)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights: %w", err)
	}
	if stored == nil {
		return DefaultWeights, nil
	}
	return *stored, nil
}

// Update applies a partial update, last write wins. Negative or unbounded
// values are accepted unless the service was built with rejectNegative.
func (s *WeightService) Update(ctx context.Context, update WeightsUpdate) (Weights, error) {
	if s.rejectNegative {
		if err := validateNonNegative(update); err != nil {
			return Weights{}, err
		}
	}
	out, err := s.store.UpsertWeights(ctx, update)
	if err != nil {
		return Weights{}, fmt.Errorf("upsert weights: %w", err)
	}
	return out, nil
}

func validateNonNegative(update WeightsUpdate) error {
	fields := []struct {
		name  string
		value *float64
	}{
		{"TCR", update.TCR},
		{"GoalProgress", update.GoalProgress},
		{"Timeliness", update.Timeliness},
		{"Quality", update.Quality},
	}
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidWeights, f.name)
		}
	}
	return nil
}
