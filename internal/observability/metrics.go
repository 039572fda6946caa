// Package observability holds the Prometheus collectors shared across the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	usersCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "domain",
		Name:      "users_created_total",
		Help:      "Number of users registered.",
	})
	exercisesLoggedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "domain",
		Name:      "exercises_logged_total",
		Help:      "Number of exercises persisted.",
	})
	exerciseDateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "domain",
		Name:      "last_exercise_date_timestamp_seconds",
		Help:      "Unix timestamp of the date carried by the most recently logged exercise.",
	})

	httpRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by route pattern and status code.",
	}, []string{"method", "route", "status"})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exercise_tracker",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(
		usersCreatedCounter,
		exercisesLoggedCounter,
		exerciseDateGauge,
		httpRequestsCounter,
		httpRequestDuration,
	)
}

// RecordUserCreated increments the registration counter.
func RecordUserCreated() {
	usersCreatedCounter.Inc()
}

// RecordExerciseLogged increments the exercise counter and moves the date watermark.
func RecordExerciseLogged(date time.Time) {
	exercisesLoggedCounter.Inc()
	if date.IsZero() {
		return
	}
	exerciseDateGauge.Set(float64(date.Unix()))
}

// ObserveHTTPRequest records a served request.
func ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	httpRequestsCounter.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
