package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseDayRange(t *testing.T) {
	from, to, err := ParseDayRange("2024-01-01", "2024-01-02")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", from)
	}
	if !to.Equal(time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected to %v", to)
	}
}

func TestParseDayRangeSingleDay(t *testing.T) {
	from, to, err := ParseDayRange("2024-05-05", "2024-05-05")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if to.Sub(from) != 24*time.Hour-time.Second {
		t.Fatalf("unexpected span %v", to.Sub(from))
	}
}

func TestParseDayRangeReversed(t *testing.T) {
	if _, _, err := ParseDayRange("2024-01-02", "2024-01-01"); err == nil {
		t.Fatalf("expected error")
	}
}
