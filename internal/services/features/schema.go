package features

import (
	"fmt"
	"strings"

	"WattWise/internal/domain/models"
)

const (
	// LagField is the name of the synthesized lagged-demand feature.
	LagField = "demand_lag"
	// RollField is the name of the synthesized rolling-mean feature.
	RollField = "demand_roll"
	// HourField, when present in the static schema, labels the hour of a record.
	HourField = "hour"
)

// Schema describes the estimator input layout: static features in training
// order followed by the lag and rolling fields.
type Schema struct {
	Static []string
}

// NewSchema builds a schema and rejects empty or duplicate names.
func NewSchema(static []string) (Schema, error) {
	seen := make(map[string]struct{}, len(static)+2)
	for _, n := range append(append([]string{}, static...), LagField, RollField) {
		if strings.TrimSpace(n) == "" {
			return Schema{}, fmt.Errorf("features: empty feature name")
		}
		if _, dup := seen[n]; dup {
			return Schema{}, fmt.Errorf("features: duplicate feature %q", n)
		}
		seen[n] = struct{}{}
	}
	s := make([]string, len(static))
	copy(s, static)
	return Schema{Static: s}, nil
}

// Names returns the full ordered field list.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.Static)+2)
	out = append(out, s.Static...)
	return append(out, LagField, RollField)
}

// Width is the number of fields in an assembled vector.
func (s Schema) Width() int { return len(s.Static) + 2 }

// Index returns the position of a static feature, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s.Static {
		if n == name {
			return i
		}
	}
	return -1
}

// Matches checks that names equals the full schema, including order.
func (s Schema) Matches(names []string) error {
	want := s.Names()
	if len(names) != len(want) {
		return fmt.Errorf("expected %d features, estimator declares %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			return fmt.Errorf("feature %d: expected %q, estimator declares %q", i, want[i], names[i])
		}
	}
	return nil
}

// CheckRecord verifies that a record carries exactly one value per static feature.
func (s Schema) CheckRecord(r models.TimeSeriesRecord) error {
	if len(r.Features) != len(s.Static) {
		return fmt.Errorf("record %s has %d static features, schema has %d",
			r.Timestamp.Format("2006-01-02T15:04"), len(r.Features), len(s.Static))
	}
	return nil
}

// Assemble builds the estimator input for one step.
func (s Schema) Assemble(static []float64, lag, roll float64) (models.FeatureVector, error) {
	if len(static) != len(s.Static) {
		return models.FeatureVector{}, fmt.Errorf("got %d static features, schema has %d", len(static), len(s.Static))
	}
	values := make([]float64, 0, s.Width())
	values = append(values, static...)
	values = append(values, lag, roll)
	return models.FeatureVector{Names: s.Names(), Values: values}, nil
}

// HourOf labels a record with its hour of day, preferring the hour feature
// when the schema carries one.
func (s Schema) HourOf(r models.TimeSeriesRecord) int {
	if i := s.Index(HourField); i >= 0 && i < len(r.Features) {
		return int(r.Features[i])
	}
	return r.Timestamp.Hour()
}
