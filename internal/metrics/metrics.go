package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's collectors on a dedicated prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AdmissionsTotal     *prometheus.CounterVec
	AdmissionDuration   prometheus.Histogram
	EventsPublished     *prometheus.CounterVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "path"},
		),
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_admissions_total",
				Help: "Attendance admission checks by outcome",
			},
			[]string{"outcome"},
		),
		AdmissionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "attendance_admission_duration_seconds",
				Help:    "Time spent evaluating an admission check",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_events_published_total",
				Help: "Queue publishes of attendance events by result",
			},
			[]string{"result"},
		),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
		r.AdmissionsTotal,
		r.AdmissionDuration,
		r.EventsPublished,
	)
	return r
}

// ObserveAdmission records one admission outcome ("admit" or an error kind).
func (r *Registry) ObserveAdmission(outcome string, d time.Duration) {
	r.AdmissionsTotal.WithLabelValues(outcome).Inc()
	r.AdmissionDuration.Observe(d.Seconds())
}

// ObservePublish records a queue publish result.
func (r *Registry) ObservePublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.EventsPublished.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// GinMiddleware counts requests by route template, not raw path.
func (r *Registry) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
