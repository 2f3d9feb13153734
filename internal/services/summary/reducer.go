package summary

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"WattWise/internal/domain/models"
)

// PeakDayLayout formats the date of the peak estimate.
const PeakDayLayout = "January 02, 2006"

// ErrEmptyWindow is returned when there is nothing to reduce.
var ErrEmptyWindow = errors.New("summary: no forecast points in window")

// Filter keeps the points whose timestamp falls in the closed range [from, to].
func Filter(points []models.ForecastPoint, from, to time.Time) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Summarize reduces a forecast window to its headline figures. City, model
// and timestamp are left for the caller to fill.
func Summarize(points []models.ForecastPoint, confidence float64) (models.Summary, error) {
	if len(points) == 0 {
		return models.Summary{}, ErrEmptyWindow
	}
	values := demands(points)
	peak := points[argmax(values)]

	return models.Summary{
		ExpectedUsage: Round2(stat.Mean(values, nil)),
		PercentChange: Round2(PercentChange(values)),
		Confidence:    confidence,
		PeakDay:       peak.Timestamp.Format(PeakDayLayout),
		PeakHour:      PeakHourLabel(peak.Hour),
	}, nil
}

// PercentChange is the mean of the step-over-step relative changes, times 100.
// Steps whose previous value is zero have no defined change and are skipped.
// Fewer than two values yield 0.
//
// This is not the start-to-end change of the series. Dashboards have always
// shown this average, so it is kept as is; revisit together with the UI.
func PercentChange(values []float64) float64 {
	changes := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		changes = append(changes, (values[i]-prev)/prev)
	}
	if len(changes) == 0 {
		return 0
	}
	return stat.Mean(changes, nil) * 100
}

// PeakHourLabel renders an hour as a one-hour bucket, e.g. 18 -> "18:00-19:00".
func PeakHourLabel(h int) string {
	h = ((h % 24) + 24) % 24
	return fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func demands(points []models.ForecastPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Demand
	}
	return out
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
