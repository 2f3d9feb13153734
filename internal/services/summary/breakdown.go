package summary

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"WattWise/internal/domain/models"
)

var (
	weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	// seasonNames is indexed by season code - 1; seasonOrder is the reporting order.
	seasonNames = []string{"Winter", "Spring", "Summer", "Fall"}
	seasonOrder = []int{2, 3, 4, 1}
)

// ISOWeekday maps a time to 1 (Monday) .. 7 (Sunday).
func ISOWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// SeasonOf maps a month to 1 Winter, 2 Spring, 3 Summer, 4 Fall.
func SeasonOf(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return 1
	case time.March, time.April, time.May:
		return 2
	case time.June, time.July, time.August:
		return 3
	default:
		return 4
	}
}

// ByWeekday averages observed demand per day of week, Monday first. The day is
// read from the feature at weekdayIdx (1 = Monday) or, when weekdayIdx < 0,
// from the timestamp.
func ByWeekday(records []models.TimeSeriesRecord, weekdayIdx int) []models.WeekdayDemand {
	groups := group(records, func(r models.TimeSeriesRecord) int {
		if weekdayIdx >= 0 && weekdayIdx < len(r.Features) {
			return int(r.Features[weekdayIdx])
		}
		return ISOWeekday(r.Timestamp)
	})
	out := make([]models.WeekdayDemand, len(weekdayNames))
	for i, name := range weekdayNames {
		out[i] = models.WeekdayDemand{Day: name, Demand: Round2(mean(groups[i+1]))}
	}
	return out
}

// ByHoliday averages observed demand on regular days and public holidays.
func ByHoliday(records []models.TimeSeriesRecord, holidayIdx int) ([]models.HolidayDemand, error) {
	if holidayIdx < 0 {
		return nil, fmt.Errorf("summary: schema has no holiday feature")
	}
	groups := group(records, func(r models.TimeSeriesRecord) int {
		if holidayIdx < len(r.Features) && r.Features[holidayIdx] != 0 {
			return 1
		}
		return 0
	})
	return []models.HolidayDemand{
		{Type: "Non-Holiday", Demand: Round2(mean(groups[0]))},
		{Type: "Holiday", Demand: Round2(mean(groups[1]))},
	}, nil
}

// BySeason averages observed demand per season in Spring, Summer, Fall, Winter
// order. The season code is read from the feature at seasonIdx or, when
// seasonIdx < 0, derived from the month.
func BySeason(records []models.TimeSeriesRecord, seasonIdx int) []models.SeasonDemand {
	groups := group(records, func(r models.TimeSeriesRecord) int {
		if seasonIdx >= 0 && seasonIdx < len(r.Features) {
			return int(r.Features[seasonIdx])
		}
		return SeasonOf(r.Timestamp.Month())
	})
	out := make([]models.SeasonDemand, 0, len(seasonOrder))
	for _, code := range seasonOrder {
		out = append(out, models.SeasonDemand{Season: seasonNames[code-1], Demand: Round2(mean(groups[code]))})
	}
	return out
}

func group(records []models.TimeSeriesRecord, key func(models.TimeSeriesRecord) int) map[int][]float64 {
	out := make(map[int][]float64)
	for _, r := range records {
		if r.Demand == nil {
			continue
		}
		k := key(r)
		out[k] = append(out[k], *r.Demand)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
