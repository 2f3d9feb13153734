package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordRun("hybrid", "ok")
	r.RecordRun("hybrid", "ok")
	r.RecordSteps("hybrid", 24)
	r.RecordAnomaly("tokyo", "negative")
	r.RecordLastForecast("tokyo", 412.5)
	r.RecordDelivered("clickhouse", "tokyo")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("hybrid", "ok")))
	assert.Equal(t, 24.0, testutil.ToFloat64(r.stepsTotal.WithLabelValues("hybrid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.anomalies.WithLabelValues("tokyo", "negative")))
	assert.Equal(t, 412.5, testutil.ToFloat64(r.lastForecast.WithLabelValues("tokyo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveredSent.WithLabelValues("clickhouse", "tokyo")))
}
