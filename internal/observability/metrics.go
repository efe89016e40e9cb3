package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	// Archive retrieval metrics.
	ArchivesDiscovered prometheus.Gauge
	ArchiveDownloads   *prometheus.CounterVec // labels: outcome={downloaded,present,refreshed,error}
	ArchiveErrors      *prometheus.CounterVec // labels: kind={read,schema}

	// Parsing metrics.
	RecordsParsed      prometheus.Counter
	SentinelFields     prometheus.Counter
	RegionLoadDuration *prometheus.HistogramVec // labels: tier={memory,disk,source}

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: tier={memory,disk,source}, result={hit,miss,error}

	// Export metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	PipelineRunning  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ArchivesDiscovered,
		m.ArchiveDownloads,
		m.ArchiveErrors,
		m.RecordsParsed,
		m.SentinelFields,
		m.RegionLoadDuration,
		m.CacheLookups,
		m.RecordsPublished,
		m.PublishErrors,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ArchivesDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crash_etl",
			Name:      "archives_discovered",
			Help:      "Archives selected from the index page on the last discovery.",
		}),
		ArchiveDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "archive_downloads_total",
			Help:      "Archive retrievals by outcome.",
		}, []string{"outcome"}),
		ArchiveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "archive_errors_total",
			Help:      "Archives skipped for a region, by failure kind.",
		}, []string{"kind"}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "records_parsed_total",
			Help:      "Raw CSV lines parsed into typed records.",
		}),
		SentinelFields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "sentinel_fields_total",
			Help:      "Numeric fields replaced with the missing-value sentinel.",
		}),
		RegionLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crash_etl",
			Name:      "region_load_duration_seconds",
			Help:      "Time to resolve one region, by the tier that served it.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 180},
		}, []string{"tier"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "cache_lookups_total",
			Help:      "Region cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "records_published_total",
			Help:      "Records written to the export topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crash_etl",
			Name:      "publish_errors_total",
			Help:      "Failed export batch writes.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crash_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
	}
}
