package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("reports:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("reports:warmup").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reports:warmup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reports:warmup", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("reports:warmup")))
	require.Greater(t, testutil.ToFloat64(m.lastOK.WithLabelValues("reports:warmup")), 0.0)
	require.Equal(t, 0.0, testutil.ToFloat64(m.lastOK.WithLabelValues("reports:deliver")))
}

func TestNewMetricsAdoptsExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)
	second.AddReports("reports:deliver", "balance_sheet", 2)
	require.Equal(t, 2.0, testutil.ToFloat64(first.reports.WithLabelValues("reports:deliver", "balance_sheet")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddReports("job", "report", 1)
	require.NoError(t, m.Track("job").End(nil))
}
