// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveReading(0.1)
	m.IncFailure("io")
	m.SetHealth(3)
	m.IncReopen(false)
	m.SetSubscribers(2)
	m.IncPublished()
	m.IncEvicted()
	m.IncSinkWrite("redis", true)
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveReading(0.15)
	m.ObserveReading(0.16)
	m.IncFailure("timeout")
	m.IncFailure("timeout")
	m.IncFailure("parse")
	m.SetHealth(2)
	m.IncSinkWrite("modbus", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.readings))
	assert.Equal(t, 0.16, testutil.ToFloat64(m.latestDoseRate))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("parse")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.healthState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkWrites.WithLabelValues("modbus", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncEvicted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fs5000_hub_evictions_total 1")
}
