package summary

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"WattWise/internal/domain/models"
)

// Consumption totals a forecast and prices it at costPerUnit.
// AverageDaily is the mean of the per-calendar-day totals.
func Consumption(points []models.ForecastPoint, costPerUnit float64) (models.ConsumptionSummary, error) {
	if len(points) == 0 {
		return models.ConsumptionSummary{}, ErrEmptyWindow
	}
	values := demands(points)
	total := floats.Sum(values)

	var (
		daily []float64
		last  string
	)
	for _, p := range points {
		day := p.Timestamp.Format("2006-01-02")
		if day != last || len(daily) == 0 {
			daily = append(daily, 0)
			last = day
		}
		daily[len(daily)-1] += p.Demand
	}

	return models.ConsumptionSummary{
		TotalConsumption: Round2(total),
		AverageDaily:     Round2(stat.Mean(daily, nil)),
		EstimatedCost:    Round2(total * costPerUnit),
	}, nil
}
