package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeCity trims a city name and folds it to lower case so it can be used as a key.
func NormalizeCity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
