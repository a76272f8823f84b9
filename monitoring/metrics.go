package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	ConsultationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huntzen_consultation_transitions_total",
			Help: "Consultation status changes by resulting status",
		},
		[]string{"status"},
	)

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "huntzen_messages_sent_total",
			Help: "Messages sent between users",
		},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huntzen_notifications_created_total",
			Help: "Notifications created by type",
		},
		[]string{"type"},
	)

	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huntzen_side_effect_failures_total",
			Help: "Best-effort side effects that failed and were swallowed",
		},
		[]string{"kind"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huntzen_events_consumed_total",
			Help: "Domain events processed by the consumer",
		},
		[]string{"event", "result"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			ConsultationTransitions,
			MessagesSent,
			NotificationsCreated,
			SideEffectFailures,
			EventsConsumed,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
