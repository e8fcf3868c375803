// Package metrics holds every Prometheus collector lottied exports, from
// the HTTP edge down to the frame decoder.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every lottied metric name.
const Namespace = "lottied"

// Backpressure reasons.
const (
	// ReasonMaxAnimations: a load found every animation slot busy.
	ReasonMaxAnimations = "max_animations"
	// ReasonQueueSaturated: work was stacked on a busy queue because the
	// pool already runs max_queues queues.
	ReasonQueueSaturated = "queue_saturated"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "HTTP requests currently being served",
		},
	)

	Backpressure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backpressure_total",
			Help:      "Work refused or stacked for lack of capacity, by reason",
		},
		[]string{"reason"},
	)

	QueuesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "queuepool",
			Name:      "queues",
			Help:      "Serial worker queues by state",
		},
		[]string{"state"},
	)

	QueueTasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queuepool",
			Name:      "tasks_submitted_total",
			Help:      "Units of work submitted to the queue pool",
		},
	)

	QueuesReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queuepool",
			Name:      "queues_reaped_total",
			Help:      "Idle serial queues torn down by the reaper",
		},
	)

	TaskCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "taskcache",
			Name:      "lookups_total",
			Help:      "Resolve calls by outcome (lru_hit, joined, produced)",
		},
		[]string{"outcome"},
	)

	TaskCacheInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "taskcache",
			Name:      "inflight",
			Help:      "In-flight deduplicated operations",
		},
	)

	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Network fetches by result (cache_hit, ok, error)",
		},
		[]string{"result"},
	)

	DecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "player",
			Name:      "decode_total",
			Help:      "Frame decodes by result (ok, no_frame)",
		},
		[]string{"result"},
	)

	DecodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "player",
			Name:      "decode_duration_seconds",
			Help:      "Time spent in the renderer per frame",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	HandlesDestroyed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "player",
			Name:      "handles_destroyed_total",
			Help:      "Native animation handles released",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, HTTPInflight, Backpressure,
		QueuesActive, QueueTasksSubmitted, QueuesReaped,
		TaskCacheLookups, TaskCacheInflight,
		FetchTotal,
		DecodeTotal, DecodeDuration, HandlesDestroyed,
	)
}
