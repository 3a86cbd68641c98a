package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// batch pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,error}
	PipelineRunning prometheus.Gauge

	EventsFetched prometheus.Counter
	EventsMatched prometheus.Counter
	EventsOutside prometheus.Counter
	RegionsLoaded prometheus.Gauge

	RunDuration    prometheus.Histogram
	FetchDuration  prometheus.Histogram
	ExportDuration prometheus.Histogram

	CatalogCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_etl",
			Name:      "pipeline_running",
			Help:      "1 while a batch run is executing, 0 otherwise.",
		}),
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "events_fetched_total",
			Help:      "Total catalog events parsed from the source feed.",
		}),
		EventsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "events_matched_total",
			Help:      "Total events that fell inside a catalog region.",
		}),
		EventsOutside: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "events_outside_total",
			Help:      "Total events outside every catalog region.",
		}),
		RegionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_etl",
			Name:      "regions_loaded",
			Help:      "Regions in the boundary catalog for the latest run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-join-aggregate-export run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Catalog download and parse duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_etl",
			Name:      "export_duration_seconds",
			Help:      "Artifact export duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "catalog_cache_total",
			Help:      "Conditional-GET catalog fetches by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.PipelineRunning,
		m.EventsFetched,
		m.EventsMatched,
		m.EventsOutside,
		m.RegionsLoaded,
		m.RunDuration,
		m.FetchDuration,
		m.ExportDuration,
		m.CatalogCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_etl", Name: "runs_total"}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_etl", Name: "pipeline_running"}),
		EventsFetched:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_etl", Name: "events_fetched_total"}),
		EventsMatched:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_etl", Name: "events_matched_total"}),
		EventsOutside:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_etl", Name: "events_outside_total"}),
		RegionsLoaded:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_etl", Name: "regions_loaded"}),
		RunDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_etl", Name: "run_duration_seconds"}),
		FetchDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_etl", Name: "fetch_duration_seconds"}),
		ExportDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_etl", Name: "export_duration_seconds"}),
		CatalogCache:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_etl", Name: "catalog_cache_total"}, []string{"result"}),
	}
}
