package forecast

import "WattWise/internal/domain/models"

// Observer receives per-step notifications. Implementations must not block for long;
// they run on the forecasting goroutine.
type Observer interface {
	OnStep(step int, p models.ForecastPoint)
	OnAnomaly(step int, p models.ForecastPoint, reason string)
}

// Anomaly reasons.
const (
	AnomalyNegative = "negative"
	AnomalyAboveMax = "above_max"
)

// RangeCheck flags implausible estimates. A Max of zero disables the upper bound.
type RangeCheck struct {
	Max float64
}

// Check returns the anomaly reason for v, if any.
func (r RangeCheck) Check(v float64) (string, bool) {
	switch {
	case v < 0:
		return AnomalyNegative, true
	case r.Max > 0 && v > r.Max:
		return AnomalyAboveMax, true
	}
	return "", false
}

type nopObserver struct{}

func (nopObserver) OnStep(int, models.ForecastPoint)            {}
func (nopObserver) OnAnomaly(int, models.ForecastPoint, string) {}
