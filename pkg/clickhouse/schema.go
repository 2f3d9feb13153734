package clickhouse

import (
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident validates a database, table or column name before it is spliced into SQL.
func Ident(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("clickhouse: invalid identifier %q", name)
	}
	return name, nil
}

// Table names under the configured database.
const (
	TableObserved = "demand_observed"
	TableFuture   = "demand_future"
	TablePoints   = "forecast_points"
	TableSpecs    = "model_specs"
)

// SchemaStatements returns the idempotent DDL for the forecasting tables.
// Static feature columns are created in schema order.
func SchemaStatements(database string, static []string) ([]string, error) {
	db, err := Ident(database)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(static))
	for _, f := range static {
		name, err := Ident(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("`%s` Float64", name))
	}
	featureCols := strings.Join(cols, ", ")

	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (city LowCardinality(String), ts DateTime, %s, demand Float64) "+
			"ENGINE=ReplacingMergeTree ORDER BY (city, ts)", db, TableObserved, featureCols),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (city LowCardinality(String), ts DateTime, %s) "+
			"ENGINE=ReplacingMergeTree ORDER BY (city, ts)", db, TableFuture, featureCols),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (run_id String, city LowCardinality(String), model LowCardinality(String), "+
			"ts DateTime, hour UInt8, demand Float64, created_at DateTime64(3)) "+
			"ENGINE=MergeTree ORDER BY (city, created_at, ts)", db, TablePoints),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (city LowCardinality(String), model_type LowCardinality(String), "+
			"expected_usage Float64, percent_change Float64, confidence Float64, peak_day String, peak_hour String, "+
			"updated_at DateTime64(3)) ENGINE=ReplacingMergeTree(updated_at) ORDER BY city", db, TableSpecs),
	}, nil
}

// FeatureColumns renders static feature names as a quoted column list.
func FeatureColumns(static []string) (string, error) {
	cols := make([]string, 0, len(static))
	for _, f := range static {
		name, err := Ident(f)
		if err != nil {
			return "", err
		}
		cols = append(cols, "`"+name+"`")
	}
	return strings.Join(cols, ", "), nil
}
