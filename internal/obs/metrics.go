package obs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store operation outcomes used as the "result" label.
const (
	ResultOK    = "ok"
	ResultMiss  = "miss"
	ResultError = "error"
)

// CartStoreMetrics groups Prometheus collectors for cart persistence.
type CartStoreMetrics struct {
	OpsTotal *prometheus.CounterVec
	OpDur    *prometheus.HistogramVec
}

// NewCartStoreMetrics registers and returns cart store collectors. Collectors
// already registered under the same name are reused.
func NewCartStoreMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *CartStoreMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250}
	} else {
		buckets = append([]float64(nil), buckets...)
		sort.Float64s(buckets)
	}
	m := &CartStoreMetrics{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_store_operations_total",
			Help:      "Count of cart store operations by outcome.",
		}, []string{"op", "result"}),
		OpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_store_duration_ms",
			Help:      "Cart store operation latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"op"}),
	}
	mustRegister(reg, &m.OpsTotal, &m.OpDur)
	return m
}

// Observe records one operation. A nil receiver is a no-op.
func (m *CartStoreMetrics) Observe(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.OpsTotal.WithLabelValues(op, result).Inc()
	m.OpDur.WithLabelValues(op).Observe(DurationMillis(d))
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries (milliseconds) into floats.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mustRegister(reg prometheus.Registerer, counter **prometheus.CounterVec, histo **prometheus.HistogramVec) {
	if err := reg.Register(*counter); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Errorf("register counter: %w", err))
		}
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			*counter = existing
		}
	}
	if err := reg.Register(*histo); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Errorf("register histogram: %w", err))
		}
		if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
			*histo = existing
		}
	}
}
