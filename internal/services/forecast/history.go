package forecast

import (
	"fmt"

	"WattWise/internal/domain/models"
)

// HistoryBuffer is the append-only sequence of resolved records a run reads
// its lag window from. It grows by exactly one record per step.
type HistoryBuffer struct {
	records []models.TimeSeriesRecord
	demand  []float64
}

// NewHistoryBuffer seeds a buffer with a copy of the given records.
func NewHistoryBuffer(seed []models.TimeSeriesRecord) (*HistoryBuffer, error) {
	if len(seed) == 0 {
		return nil, runErr(SeedStep, ErrInsufficientHistory, fmt.Errorf("no resolved demand to seed from"))
	}
	h := &HistoryBuffer{
		records: make([]models.TimeSeriesRecord, 0, len(seed)),
		demand:  make([]float64, 0, len(seed)),
	}
	for i, r := range seed {
		if !r.Resolved() {
			return nil, runErr(SeedStep, ErrInsufficientHistory, fmt.Errorf("history record %d has no demand", i))
		}
		if err := h.Append(r); err != nil {
			return nil, runErr(SeedStep, ErrInvalidInput, fmt.Errorf("history record %d: %w", i, err))
		}
	}
	return h, nil
}

// Len returns the number of resolved records.
func (h *HistoryBuffer) Len() int { return len(h.records) }

// Last returns the most recent record.
func (h *HistoryBuffer) Last() models.TimeSeriesRecord { return h.records[len(h.records)-1] }

// Append adds a resolved record that is strictly newer than the last one.
func (h *HistoryBuffer) Append(r models.TimeSeriesRecord) error {
	if !r.Resolved() {
		return fmt.Errorf("record %s has no demand", r.Timestamp)
	}
	if n := len(h.records); n > 0 && !r.Timestamp.After(h.records[n-1].Timestamp) {
		return fmt.Errorf("timestamp %s does not follow %s", r.Timestamp, h.records[n-1].Timestamp)
	}
	h.records = append(h.records, r)
	h.demand = append(h.demand, *r.Demand)
	return nil
}

// Trailing returns a copy of the last min(n, Len) demand values, oldest first.
func (h *HistoryBuffer) Trailing(n int) []float64 {
	if n > len(h.demand) {
		n = len(h.demand)
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	copy(out, h.demand[len(h.demand)-n:])
	return out
}
