package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	FilterInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagfind",
			Name:      "filter_invocations_total",
			Help:      "Total number of filter runs on eligible records",
		},
		[]string{"filter"},
	)

	FilterTagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagfind",
			Name:      "filter_tags_total",
			Help:      "Tags appended by filters",
		},
		[]string{"filter", "tag"},
	)

	FilterRecordsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagfind",
			Name:      "filter_records_created_total",
			Help:      "Records created by filters",
		},
		[]string{"filter"},
	)

	PipelinePassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tagfind",
			Name:      "pipeline_passes_total",
			Help:      "Total number of pipeline passes over the store",
		},
	)

	PipelinePassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tagfind",
			Name:      "pipeline_pass_duration_seconds",
			Help:      "Duration of a single pipeline pass in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics registers pipeline metrics with the default
// registry. Safe to call more than once.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(
			FilterInvocationsTotal,
			FilterTagsTotal,
			FilterRecordsCreatedTotal,
			PipelinePassesTotal,
			PipelinePassDuration,
		)
	})
}
