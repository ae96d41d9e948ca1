package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "petique"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	bookingCreates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_create_total",
			Help:      "Booking creation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transition_total",
			Help:      "Booking status transition attempts.",
		},
		[]string{"from", "to", "outcome"},
	)

	availabilityChecks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_check_seconds",
			Help:      "Latency of single slot availability checks.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingCreates, bookingTransitions, availabilityChecks)
	})
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// IncBookingCreate counts a create attempt. outcome is "created", a conflict
// reason, or an error class such as "busy" or "error".
func IncBookingCreate(outcome string) {
	bookingCreates.WithLabelValues(outcome).Inc()
}

func IncBookingTransition(from, to, outcome string) {
	bookingTransitions.WithLabelValues(from, to, outcome).Inc()
}

func ObserveAvailabilityCheck(d time.Duration) {
	availabilityChecks.Observe(d.Seconds())
}
