package metrics

import (
	"time"

	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SourceMetrics holds the rate source instrumentation.
type SourceMetrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	LastRefresh     *prometheus.GaugeVec

	// ingestion outcome per quote: applied, stale, rejected
	QuotesTotal *prometheus.CounterVec

	PairCacheTotal *prometheus.CounterVec
	SkippedTotal   *prometheus.CounterVec
	Ready          *prometheus.GaugeVec
}

// NewSourceMetrics registers the metrics with reg. A nil reg uses the
// default registerer.
func NewSourceMetrics(reg prometheus.Registerer) *SourceMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &SourceMetrics{
		RefreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxrate_source_refresh_total",
				Help: "Number of source refreshes by result",
			},
			[]string{"source", "result"},
		),
		RefreshDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxrate_source_refresh_duration_seconds",
				Help:    "Time spent fetching and ingesting one source snapshot",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. 25s
			},
			[]string{"source"},
		),
		LastRefresh: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxrate_source_last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful refresh",
			},
			[]string{"source"},
		),
		QuotesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxrate_source_quotes_total",
				Help: "Quotes seen during ingestion by outcome",
			},
			[]string{"source", "outcome"},
		),
		PairCacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxrate_pair_cache_requests_total",
				Help: "Pair cache lookups by result",
			},
			[]string{"source", "result"},
		),
		SkippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxrate_provider_skipped_records_total",
				Help: "Upstream records dropped by a provider adapter",
			},
			[]string{"provider", "reason"},
		),
		Ready: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxrate_source_ready",
				Help: "1 when the source has served a snapshot, 0 while pending",
			},
			[]string{"source"},
		),
	}
}

func (m *SourceMetrics) ObserveRefresh(name string, took time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	} else {
		m.LastRefresh.WithLabelValues(name).SetToCurrentTime()
	}
	m.RefreshTotal.WithLabelValues(name, result).Inc()
	m.RefreshDuration.WithLabelValues(name).Observe(took.Seconds())
}

func (m *SourceMetrics) ObserveIngest(name string, report graph.IngestReport) {
	m.QuotesTotal.WithLabelValues(name, "applied").Add(float64(report.Applied))
	m.QuotesTotal.WithLabelValues(name, "stale").Add(float64(report.Stale))
	m.QuotesTotal.WithLabelValues(name, "rejected").Add(float64(report.Rejected))
}

func (m *SourceMetrics) ObservePairCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PairCacheTotal.WithLabelValues(name, result).Inc()
}

func (m *SourceMetrics) SetStatus(name string, status core.Status) {
	v := 0.0
	if status == core.StatusReady {
		v = 1
	}
	m.Ready.WithLabelValues(name).Set(v)
}

// RecordSkip counts a dropped upstream record. It matches
// provider.HTTPOptions.OnSkip.
func (m *SourceMetrics) RecordSkip(provider, reason string) {
	m.SkippedTotal.WithLabelValues(provider, reason).Inc()
}

var _ source.Recorder = (*SourceMetrics)(nil)
