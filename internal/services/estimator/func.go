package estimator

import (
	"context"

	"WattWise/internal/domain/models"
	domsvc "WattWise/internal/domain/service"
)

// Func adapts a plain function to a PointEstimator.
type Func struct {
	Label  string
	Fields []string
	Fn     func(ctx context.Context, v models.FeatureVector) (float64, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Schema() []string { return f.Fields }

func (f Func) Predict(ctx context.Context, v models.FeatureVector) (float64, error) {
	return f.Fn(ctx, v)
}

var _ domsvc.PointEstimator = Func{}
