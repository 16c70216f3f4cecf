package reports

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu          sync.Mutex
	metricsInitialized bool

	buildHistogram   *prometheus.HistogramVec
	errorCounter     *prometheus.CounterVec
	cacheHitCounter  *prometheus.CounterVec
	cacheMissCounter *prometheus.CounterVec
	unbalancedTotal  prometheus.Counter
	metricsError     error
)

// SetupMetrics registers report generation metrics. The registration is
// performed once and subsequent calls are ignored.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInitialized {
		return metricsError
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerbook_report_build_duration_seconds",
		Help:    "Duration required to generate a report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbook_report_errors_total",
		Help: "Number of failed report generations by error code.",
	}, []string{"report", "code"})
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbook_report_cache_hits_total",
		Help: "Number of report cache hits.",
	}, []string{"report"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbook_report_cache_miss_total",
		Help: "Number of report cache misses.",
	}, []string{"report"})

	unbalanced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerbook_balance_sheet_unbalanced_total",
		Help: "Balance sheets generated whose equation did not hold.",
	})

	buildHistogram = register(reg, histogram)
	errorCounter = register(reg, errorsTotal)
	cacheHitCounter = register(reg, hits)
	cacheMissCounter = register(reg, misses)
	unbalancedTotal = register[prometheus.Counter](reg, unbalanced)
	metricsInitialized = true
	return metricsError
}

// register adopts an already registered collector of the same type so that
// repeated wiring in tests does not fail. Caller holds metricsMu.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) T {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
			metricsError = fmt.Errorf("reports metrics: unexpected collector type %T", already.ExistingCollector)
			var zero T
			return zero
		}
		metricsError = err
		var zero T
		return zero
	}
	return collector
}

func observeBuild(report string, started time.Time, err error) {
	if buildHistogram != nil {
		buildHistogram.WithLabelValues(report).Observe(time.Since(started).Seconds())
	}
	if err != nil && errorCounter != nil {
		code := string(CodeOf(err))
		if code == "" {
			code = "UNKNOWN"
		}
		errorCounter.WithLabelValues(report, code).Inc()
	}
}

func recordCacheHit(report string) {
	if cacheHitCounter == nil {
		return
	}
	cacheHitCounter.WithLabelValues(report).Inc()
}

func recordCacheMiss(report string) {
	if cacheMissCounter == nil {
		return
	}
	cacheMissCounter.WithLabelValues(report).Inc()
}

func recordUnbalanced() {
	if unbalancedTotal != nil {
		unbalancedTotal.Inc()
	}
}
