package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyWindow is returned when no resolved demand precedes the current step.
var ErrEmptyWindow = errors.New("features: empty demand window")

// Missing is the value of a feature that cannot be computed yet. Estimator
// clients send it as JSON null.
var Missing = math.NaN()

// IsMissing reports whether v marks a missing feature.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// SynthesizeLagRolling derives the lag and rolling-mean fields for lag size L
// from the trailing resolved demand values (oldest first).
//
// lag is the value exactly L steps back and is Missing until L values exist.
// roll is the mean of the last min(L, len(window)) values, so a short window
// still produces one.
func SynthesizeLagRolling(window []float64, size int) (lag, roll float64, err error) {
	if size < 1 {
		return 0, 0, fmt.Errorf("features: lag size must be >= 1, got %d", size)
	}
	if len(window) == 0 {
		return 0, 0, ErrEmptyWindow
	}
	if len(window) > size {
		window = window[len(window)-size:]
	}
	lag = Missing
	if len(window) == size {
		lag = window[0]
	}
	return lag, stat.Mean(window, nil), nil
}
