// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekomurojaat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	ComplaintsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ekomurojaat_complaints_created_total",
			Help: "Complaints submitted by citizens",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_complaint_status_transitions_total",
			Help: "Complaint status changes by source and target status",
		},
		[]string{"from", "to"},
	)

	PriorityAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_priority_assignments_total",
			Help: "Priority assignments by resulting priority",
		},
		[]string{"priority"},
	)

	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_image_uploads_total",
			Help: "Complaint image uploads by result",
		},
		[]string{"result"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_emails_total",
			Help: "Outbound emails by kind and result",
		},
		[]string{"kind", "result"},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_verifications_total",
			Help: "Verification code checks by result",
		},
		[]string{"result"},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekomurojaat_rate_limit_exceeded_total",
			Help: "Requests refused by a per-IP limiter",
		},
		[]string{"limiter"},
	)
)

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}

// Middleware records request counts and latency labelled by chi route pattern,
// keeping label cardinality bounded by the route table.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
