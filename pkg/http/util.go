package http

import (
	"time"

	xutil "WattWise/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseDayRange turns two YYYY-MM-DD strings into an inclusive hourly window.
func ParseDayRange(start, end string) (time.Time, time.Time, error) {
	from, to, err := xutil.ParseDayRange(start, end)
	if err != nil {
		return time.Time{}, time.Time{}, BadRequestError(err.Error()).WithError(err)
	}
	return from, to, nil
}
