package summary

import (
	"time"

	"WattWise/internal/domain/models"
)

// ChartTimeLayout formats chart timestamps.
const ChartTimeLayout = "2006-01-02 15:04"

// Pair is a forecast and the observed demand for the same hour.
type Pair struct {
	Timestamp time.Time
	Actual    float64
	Predicted float64
}

// Join pairs forecast points with observed records sharing the same timestamp.
// Points without an observation are dropped. Output follows the forecast order.
func Join(points []models.ForecastPoint, observed []models.TimeSeriesRecord) []Pair {
	actual := make(map[int64]float64, len(observed))
	for _, r := range observed {
		if r.Demand != nil {
			actual[r.Timestamp.Unix()] = *r.Demand
		}
	}
	out := make([]Pair, 0, len(points))
	for _, p := range points {
		if a, ok := actual[p.Timestamp.Unix()]; ok {
			out = append(out, Pair{Timestamp: p.Timestamp, Actual: a, Predicted: p.Demand})
		}
	}
	return out
}

// Tolerance reports, for each whole tolerance t in 0..max, the percentage of
// pairs whose prediction lies within ±t% of the actual value.
func Tolerance(pairs []Pair, max int) ([]models.ToleranceAccuracy, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyWindow
	}
	out := make([]models.ToleranceAccuracy, 0, max+1)
	for t := 0; t <= max; t++ {
		frac := float64(t) / 100
		hits := 0
		for _, p := range pairs {
			lower := p.Actual * (1 - frac)
			upper := p.Actual * (1 + frac)
			if p.Predicted >= lower && p.Predicted <= upper {
				hits++
			}
		}
		out = append(out, models.ToleranceAccuracy{
			Tolerance: t,
			Accuracy:  Round2(float64(hits) / float64(len(pairs)) * 100),
		})
	}
	return out, nil
}

// Chart renders up to limit pairs as chart rows. A non-positive limit keeps all.
func Chart(pairs []Pair, limit int) []models.ChartPoint {
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]models.ChartPoint, len(pairs))
	for i, p := range pairs {
		out[i] = models.ChartPoint{
			Time:      p.Timestamp.Format(ChartTimeLayout),
			Actual:    p.Actual,
			Predicted: p.Predicted,
		}
	}
	return out
}
