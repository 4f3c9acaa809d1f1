package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "import_server_status_transitions_total",
	Help: "Completed lifecycle status transitions",
}, []string{"entity", "to_status"})

var StateConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "import_server_state_conflicts_total",
	Help: "Conditional updates rejected because the stored status was not eligible",
})

var GenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "import_server_generation_duration_seconds",
	Help:    "Record generation wall time per data format",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
}, []string{"format"})

var GenerationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "import_server_generation_failures_total",
	Help: "Generations that ended in generation_error",
}, []string{"format"})

var QueuePublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "import_server_queue_publish_failures_total",
	Help: "Best-effort work queue publishes that failed",
})

var EventsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "import_server_events_appended_total",
	Help: "Audit events appended to the event log",
}, []string{"kind"})

var DefaultMetrics = []prometheus.Collector{
	TransitionsTotal,
	StateConflictsTotal,
	GenerationDuration,
	GenerationFailures,
	QueuePublishFailures,
	EventsAppended,
}

func RegisterMetrics(metrics ...prometheus.Collector) error {
	if metrics == nil {
		metrics = DefaultMetrics
	}
	for _, m := range metrics {
		if err := prometheus.Register(m); err != nil {
			return err
		}
	}
	return nil
}
