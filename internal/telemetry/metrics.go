package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publisher metrics
var (
	// EventsPublished — результаты публикации BookingCreated (ok, skipped, failed).
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpooling_booking_events_published_total",
			Help: "Booking created events by publish result",
		},
		[]string{"result"},
	)
)

// Worker metrics
var (
	// WorkerMessages — исходы обработки сообщений (acked, requeued, dead_lettered).
	WorkerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpooling_worker_messages_total",
			Help: "Messages handled by the delivery worker by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carpooling_worker_dispatch_duration_seconds",
			Help:    "Duration of booking confirmation dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DLQDepth — последнее наблюдаемое количество сообщений в booking_dlq.
	DLQDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carpooling_dlq_messages",
			Help: "Messages waiting in booking_dlq at the last check",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequests — запросы к API по шаблону маршрута и статусу.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpooling_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carpooling_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
