// Package observability provides metrics for bitsmith runs.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters and histograms for one process. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tagsTotal         *prometheus.CounterVec
	tagFailuresTotal  *prometheus.CounterVec
	pipelineRuns      *prometheus.CounterVec
	pipelineDuration  prometheus.Histogram
	artifactsExported prometheus.Counter
	exportDuration    prometheus.Histogram
	commandDuration   *prometheus.HistogramVec
	buildInfo         *prometheus.GaugeVec
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tagsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsmith_tags_total",
				Help: "Number of component tags by kind (direct, auto) and whether they were soft.",
			},
			[]string{"kind", "soft"},
		),
		tagFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsmith_tag_failures_total",
				Help: "Number of components dropped from a tag run, by failure kind.",
			},
			[]string{"kind"},
		),
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitsmith_pipeline_runs_total",
				Help: "Number of component pipeline runs by result.",
			},
			[]string{"result"},
		),
		pipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bitsmith_pipeline_duration_seconds",
				Help:    "Time taken to run a component pipeline.",
				Buckets: prometheus.DefBuckets,
			},
		),
		artifactsExported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bitsmith_artifact_files_exported_total",
				Help: "Number of artifact files copied to an output directory.",
			},
		),
		exportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bitsmith_artifact_export_duration_seconds",
				Help:    "Time taken to export the artifacts of one component.",
				Buckets: prometheus.DefBuckets,
			},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitsmith_command_duration_seconds",
				Help:    "Time taken by CLI commands.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bitsmith_build_info",
				Help: "Build information.",
			},
			[]string{"version"},
		),
	}

	m.registry.MustRegister(
		m.tagsTotal,
		m.tagFailuresTotal,
		m.pipelineRuns,
		m.pipelineDuration,
		m.artifactsExported,
		m.exportDuration,
		m.commandDuration,
		m.buildInfo,
	)
	m.buildInfo.WithLabelValues(version).Set(1)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTags counts tags of one run.
func (m *Metrics) RecordTags(direct, auto int, soft bool) {
	if m == nil {
		return
	}
	s := strconv.FormatBool(soft)
	m.tagsTotal.WithLabelValues("direct", s).Add(float64(direct))
	m.tagsTotal.WithLabelValues("auto", s).Add(float64(auto))
}

// RecordTagFailure counts a component dropped from a run.
func (m *Metrics) RecordTagFailure(kind string) {
	if m == nil {
		return
	}
	m.tagFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordPipeline records one component pipeline run.
func (m *Metrics) RecordPipeline(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.pipelineRuns.WithLabelValues(result).Inc()
	m.pipelineDuration.Observe(duration.Seconds())
}

// RecordExport records the export of one component's artifacts.
func (m *Metrics) RecordExport(files int, duration time.Duration) {
	if m == nil {
		return
	}
	m.artifactsExported.Add(float64(files))
	m.exportDuration.Observe(duration.Seconds())
}

// RecordCommand records the duration of a CLI command.
func (m *Metrics) RecordCommand(command string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// WriteTextfile writes the metrics in the Prometheus text format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// Global returns the process metrics, created on first use.
func Global() *Metrics {
	globalOnce.Do(func() {
		if globalMetrics == nil {
			globalMetrics = NewMetrics("unknown")
		}
	})
	return globalMetrics
}

// InitGlobal sets up the process metrics with the build version. It must be
// called before Global to take effect.
func InitGlobal(version string) *Metrics {
	globalOnce.Do(func() {
		globalMetrics = NewMetrics(version)
	})
	return globalMetrics
}
