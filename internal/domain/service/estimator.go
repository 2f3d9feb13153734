package service

import (
	"context"

	"WattWise/internal/domain/models"
)

// PointEstimator maps one feature vector to one demand estimate.
// Implementations are loaded before a run and must be safe for concurrent
// read-only use across runs.
type PointEstimator interface {
	Name() string
	// Schema lists the feature names the estimator was trained on, in order.
	Schema() []string
	Predict(ctx context.Context, v models.FeatureVector) (float64, error)
}
