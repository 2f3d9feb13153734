package usecase

import (
	"WattWise/internal/services/features"
)

// Schema couples the feature layout with the static columns the analysis
// breakdowns read. A negative index means the column is not in the layout.
type Schema struct {
	Features   features.Schema
	WeekdayIdx int
	HolidayIdx int
	SeasonIdx  int
}

// NewSchema resolves the breakdown columns by name.
func NewSchema(fs features.Schema) Schema {
	return Schema{
		Features:   fs,
		WeekdayIdx: fs.Index("weekday"),
		HolidayIdx: fs.Index("public_holiday"),
		SeasonIdx:  fs.Index("season"),
	}
}
