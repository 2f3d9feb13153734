package repository

import (
	"context"
	"errors"
	"time"

	"WattWise/internal/domain/models"
)

// ErrNotFound is returned when a city has no stored data of the requested kind.
var ErrNotFound = errors.New("not found")

// FeatureStore provides read-only access to engineered hourly records.
// Every method returns records in ascending timestamp order.
type FeatureStore interface {
	// HistoryBefore returns up to n resolved records strictly before ts.
	HistoryBefore(ctx context.Context, city string, ts time.Time, n int) ([]models.TimeSeriesRecord, error)
	// FutureFeatures returns the unresolved horizon records in (after, to].
	FutureFeatures(ctx context.Context, city string, after, to time.Time) ([]models.TimeSeriesRecord, error)
	// Observed returns resolved records in [from, to]. A zero from or to leaves that side open.
	Observed(ctx context.Context, city string, from, to time.Time) ([]models.TimeSeriesRecord, error)
}
