package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerToWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "json", "debug")
	logger.Info().Str("cart", "u1").Msg("saved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "saved", entry["message"])
	require.Equal(t, "u1", entry["cart"])
	require.Equal(t, "info", entry["level"])
}

func TestCartStoreMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartStoreMetrics("test", nil, reg)
	m.Observe("save", ResultOK, 3*time.Millisecond)
	m.Observe("save", ResultOK, time.Millisecond)
	m.Observe("load", ResultMiss, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("save", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("load", ResultMiss)))

	again := NewCartStoreMetrics("test", nil, reg)
	require.Same(t, m.OpsTotal, again.OpsTotal)

	var nilMetrics *CartStoreMetrics
	nilMetrics.Observe("save", ResultOK, time.Millisecond)
}

func TestCartStoreMetricsKeepsCallerBuckets(t *testing.T) {
	buckets := []float64{50, 1, 10}
	NewCartStoreMetrics("order", buckets, prometheus.NewRegistry())
	require.Equal(t, []float64{50, 1, 10}, buckets)
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{1, 5.5}, ParseBucketsCSV("1, x, -2, 5.5"))
	require.Nil(t, ParseBucketsCSV("  "))
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
