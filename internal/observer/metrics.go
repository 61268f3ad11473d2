package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for inbound webhook event metrics
	eventLabels = []string{"event_type"}
	// Labels for conversation transitions
	transitionLabels = []string{"from_step", "to_step"}
	// Labels for report dispatches
	reportLabels = []string{"path", "outcome"}

	// Webhook event counters
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_events_received_total",
			Help: "Total number of inbound webhook events received, labeled by message type.",
		},
		eventLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_events_processed_total",
			Help: "Total number of inbound events successfully processed by the conversation engine.",
		},
		eventLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_events_failed_total",
			Help: "Total number of inbound events that failed processing.",
		},
		eventLabels,
	)

	// Conversation step transitions
	ConversationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_conversation_transitions_total",
			Help: "Total number of conversation step transitions.",
		},
		transitionLabels,
	)

	// Histogram for event processing duration
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "station_feedback_event_processing_duration_seconds",
			Help:    "Histogram of inbound event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventLabels,
	)

	// Report dispatch counters and durations
	ReportDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_report_dispatches_total",
			Help: "Total number of report dispatch attempts, labeled by path (scheduled/immediate) and outcome.",
		},
		reportLabels,
	)
	MailSendDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "station_feedback_mail_send_duration_seconds",
			Help:    "Histogram of mail delivery durations, labeled by outcome.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	// Histogram for database operation duration
	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "station_feedback_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Event worker pool metrics
var (
	workerTasksSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "station_feedback_worker_tasks_submitted_total",
		Help: "Total number of tasks submitted to the event worker pool.",
	})
	workerTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_feedback_worker_tasks_processed_total",
			Help: "Total number of tasks processed by the event worker pool, labeled by final status.",
		},
		[]string{"status"},
	)
	workerQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "station_feedback_worker_queue_length",
		Help: "Approximate number of tasks waiting in the event worker pool queue.",
	})
)

// InitMetrics configures whether metric collection is active. Metrics are
// auto-registered via promauto; this only flips the collection switch.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
}

// IncConversationTransition records a step transition.
func IncConversationTransition(from, to string) {
	if !metricsEnabled {
		return
	}
	ConversationTransitionsTotal.WithLabelValues(sanitizeLabel(from), sanitizeLabel(to)).Inc()
}

// ObserveEventProcessingDuration observes the duration of processing one event.
func ObserveEventProcessingDuration(eventType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(sanitizeLabel(eventType)).Observe(duration.Seconds())
}

// IncReportDispatch records a report dispatch attempt and its outcome.
func IncReportDispatch(path, outcome string) {
	if !metricsEnabled {
		return
	}
	ReportDispatchesTotal.WithLabelValues(sanitizeLabel(path), sanitizeLabel(outcome)).Inc()
}

// ObserveMailSendDuration observes the duration of one mail delivery attempt.
func ObserveMailSendDuration(duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	MailSendDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveDbOperationDuration observes the duration of a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// IncWorkerTasksSubmitted increments the worker pool submission counter.
func IncWorkerTasksSubmitted() {
	if !metricsEnabled {
		return
	}
	workerTasksSubmittedTotal.Inc()
}

// IncWorkerTasksProcessed increments the worker pool processed counter.
func IncWorkerTasksProcessed(status string) {
	if !metricsEnabled {
		return
	}
	workerTasksProcessedTotal.WithLabelValues(sanitizeLabel(status)).Inc()
}

// SetWorkerQueueLength sets the worker pool queue length gauge.
func SetWorkerQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	workerQueueLength.Set(float64(length))
}

// sanitizeLabel ensures a label value is valid or returns a default value.
func sanitizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
