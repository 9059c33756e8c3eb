// Package metrics exposes Prometheus collectors for scoring, recalculation
// and audit activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flexing"

// Metrics holds every collector the service records. A nil *Metrics is valid
// and records nothing, so components can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	scoresComputed *prometheus.CounterVec
	scoringLatency prometheus.Histogram

	recalcRuns        *prometheus.CounterVec
	recalcDuration    prometheus.Histogram
	recalcExamined    prometheus.Counter
	recalcUpdated     prometheus.Counter
	recalcErrors      prometheus.Counter
	recalcLastSuccess prometheus.Gauge

	auditFlagged  prometheus.Gauge
	auditExamined prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers collectors on reg. Tests pass their own registry.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	auto := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.scoresComputed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "scores_computed_total",
		Help:      "Scores computed by the eligibility formula, by cap applied",
	}, []string{"cap"})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "latency_seconds",
		Help:      "Time to compute one eligibility score",
		Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005},
	})

	m.recalcRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "runs_total",
		Help:      "Recalculation runs by outcome",
	}, []string{"outcome"})
	m.recalcDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "duration_seconds",
		Help:      "Wall time of a recalculation run",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	m.recalcExamined = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "records_examined_total",
		Help:      "Evaluation records examined by recalculation",
	})
	m.recalcUpdated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "records_updated_total",
		Help:      "Stored scores corrected by recalculation",
	})
	m.recalcErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "record_errors_total",
		Help:      "Per-record failures during recalculation",
	})
	m.recalcLastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "recalc",
		Name:      "last_success_unixtime",
		Help:      "Finish time of the last recalculation that read the record set",
	})

	m.auditFlagged = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "flagged_records",
		Help:      "High scorers flagged by the last audit",
	})
	m.auditExamined = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "examined_records",
		Help:      "High scorers examined by the last audit",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveScore(capApplied string, d time.Duration) {
	if m == nil {
		return
	}
	if capApplied == "" {
		capApplied = "none"
	}
	m.scoresComputed.WithLabelValues(capApplied).Inc()
	m.scoringLatency.Observe(d.Seconds())
}

// ObserveRecalc records one finished run. A fatal run passes ok=false and
// zero counts.
func (m *Metrics) ObserveRecalc(ok bool, examined, updated, errors int, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failed"
	} else if errors > 0 {
		outcome = "partial"
	}
	m.recalcRuns.WithLabelValues(outcome).Inc()
	m.recalcDuration.Observe(d.Seconds())
	m.recalcExamined.Add(float64(examined))
	m.recalcUpdated.Add(float64(updated))
	m.recalcErrors.Add(float64(errors))
	if ok {
		m.recalcLastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) SetAudit(examined, flagged int) {
	if m == nil {
		return
	}
	m.auditExamined.Set(float64(examined))
	m.auditFlagged.Set(float64(flagged))
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
