package estimator

import (
	"fmt"

	"WattWise/internal/services/features"
	"WattWise/pkg/config"
)

const (
	// ANNName labels the neural estimator, the A side of the ensemble.
	ANNName = "ann"
	// LightGBMName labels the gradient-boosted estimator, the B side of the ensemble.
	LightGBMName = "lightgbm"
)

// NewANNEstimator returns the neural estimator. The network was trained on
// min-max scaled inputs, so the configured scaler bounds are applied client side.
func NewANNEstimator(cfg *config.Config, schema features.Schema, base *HTTPServiceBase) (*HTTPEstimator, error) {
	var scaler *features.MinMaxScaler
	if s := cfg.Models.ANN.Scaler; len(s.Min) > 0 {
		var err error
		scaler, err = features.NewMinMaxScaler(s.Min, s.Max)
		if err != nil {
			return nil, fmt.Errorf("ann scaler: %w", err)
		}
	}
	return NewHTTPEstimator(ANNName, cfg.Models.ANN.Path, schema, scaler, base)
}

// NewLightGBMEstimator returns the gradient-boosted estimator, fed raw features.
func NewLightGBMEstimator(cfg *config.Config, schema features.Schema, base *HTTPServiceBase) (*HTTPEstimator, error) {
	return NewHTTPEstimator(LightGBMName, cfg.Models.LightGBM.Path, schema, nil, base)
}
