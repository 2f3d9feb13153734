package models

import "time"

// Summary is the headline reduction of a forecast window.
type Summary struct {
	City          string    `json:"city"`
	ModelType     ModelType `json:"modelType"`
	ExpectedUsage float64   `json:"expectedUsage"`
	PercentChange float64   `json:"percentChange"`
	Confidence    float64   `json:"confidence"`
	PeakDay       string    `json:"peakDay"`
	PeakHour      string    `json:"peakHour"`
	UpdatedAt     time.Time `json:"timestamp"`
}

// ConsumptionSummary aggregates forecast totals for the dashboard.
type ConsumptionSummary struct {
	TotalConsumption float64 `json:"totalConsumption"`
	AverageDaily     float64 `json:"averageDaily"`
	EstimatedCost    float64 `json:"estimatedCost"`
}

// ToleranceAccuracy is the share of predictions within ±Tolerance percent of the actual value.
type ToleranceAccuracy struct {
	Tolerance int     `json:"tolerance"`
	Accuracy  float64 `json:"accuracy"`
}

// WeekdayDemand is the average observed demand for one day of week.
type WeekdayDemand struct {
	Day    string  `json:"day"`
	Demand float64 `json:"demand"`
}

// HolidayDemand is the average observed demand on holidays or regular days.
type HolidayDemand struct {
	Type   string  `json:"type"`
	Demand float64 `json:"demand"`
}

// SeasonDemand is the average observed demand for one season.
type SeasonDemand struct {
	Season string  `json:"season"`
	Demand float64 `json:"demand"`
}

// ChartPoint pairs a forecast with the observed value for the same hour.
type ChartPoint struct {
	Time      string  `json:"time"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}
