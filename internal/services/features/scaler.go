package features

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// MinMaxScaler rescales each column to [0, 1] with the bounds observed at
// training time. Columns with a zero range are only shifted.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

// NewMinMaxScaler returns a scaler for the given per-column bounds.
func NewMinMaxScaler(min, max []float64) (*MinMaxScaler, error) {
	if len(min) == 0 || len(min) != len(max) {
		return nil, fmt.Errorf("features: scaler needs matching non-empty bounds, got %d/%d", len(min), len(max))
	}
	scale := make([]float64, len(max))
	floats.SubTo(scale, max, min)
	for i, r := range scale {
		if r < 0 {
			return nil, fmt.Errorf("features: scaler column %d has max < min", i)
		}
		if r == 0 {
			scale[i] = 1
		}
	}
	lo := make([]float64, len(min))
	copy(lo, min)
	return &MinMaxScaler{min: lo, scale: scale}, nil
}

// Width is the number of columns the scaler expects.
func (s *MinMaxScaler) Width() int { return len(s.min) }

// Transform returns a scaled copy of values.
func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.min) {
		return nil, fmt.Errorf("features: scaler expects %d columns, got %d", len(s.min), len(values))
	}
	out := make([]float64, len(values))
	floats.SubTo(out, values, s.min)
	floats.Div(out, s.scale)
	return out, nil
}
