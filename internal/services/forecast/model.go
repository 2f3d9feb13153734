package forecast

import (
	"context"
	"fmt"
	"math"

	"WattWise/internal/domain/models"
	"WattWise/internal/domain/service"
)

// Model is the estimator arrangement used for a whole run. It is either a
// SingleModel or an EnsembleModel.
type Model interface {
	Name() string
	Estimators() []service.PointEstimator
	Estimate(ctx context.Context, v models.FeatureVector) (float64, error)
	isModel()
}

// Combine blends two estimates: alpha*a + (1-alpha)*b. No clipping or renormalization.
func Combine(a, b, alpha float64) float64 {
	return alpha*a + (1-alpha)*b
}

// SingleModel forecasts with one estimator.
type SingleModel struct {
	Estimator service.PointEstimator
}

func (m SingleModel) Name() string { return m.Estimator.Name() }

func (m SingleModel) Estimators() []service.PointEstimator {
	return []service.PointEstimator{m.Estimator}
}

func (m SingleModel) Estimate(ctx context.Context, v models.FeatureVector) (float64, error) {
	return predict(ctx, m.Estimator, v)
}

func (SingleModel) isModel() {}

// EnsembleModel blends estimator A and estimator B with a fixed weight on A.
type EnsembleModel struct {
	A     service.PointEstimator
	B     service.PointEstimator
	Alpha float64
}

// NewEnsembleModel validates alpha and returns the ensemble.
func NewEnsembleModel(a, b service.PointEstimator, alpha float64) (EnsembleModel, error) {
	if a == nil || b == nil {
		return EnsembleModel{}, fmt.Errorf("forecast: ensemble needs two estimators")
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return EnsembleModel{}, fmt.Errorf("forecast: alpha %v outside [0, 1]", alpha)
	}
	return EnsembleModel{A: a, B: b, Alpha: alpha}, nil
}

func (m EnsembleModel) Name() string {
	return fmt.Sprintf("ensemble(%s,%s,%.2f)", m.A.Name(), m.B.Name(), m.Alpha)
}

func (m EnsembleModel) Estimators() []service.PointEstimator {
	return []service.PointEstimator{m.A, m.B}
}

func (m EnsembleModel) Estimate(ctx context.Context, v models.FeatureVector) (float64, error) {
	a, err := predict(ctx, m.A, v)
	if err != nil {
		return 0, err
	}
	b, err := predict(ctx, m.B, v)
	if err != nil {
		return 0, err
	}
	return Combine(a, b, m.Alpha), nil
}

func (EnsembleModel) isModel() {}

func predict(ctx context.Context, e service.PointEstimator, v models.FeatureVector) (float64, error) {
	y, err := e.Predict(ctx, v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", e.Name(), err)
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%s: non-finite estimate %v", e.Name(), y)
	}
	return y, nil
}
