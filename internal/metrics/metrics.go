package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	PatientsGenerated prometheus.Counter
	JobsByStatus      *prometheus.CounterVec
	JobDuration       prometheus.Histogram
	DeathsByCategory  *prometheus.CounterVec
	DiagnosticRate    prometheus.Gauge
	TransportMissions *prometheus.CounterVec
	FacilityOccupancy *prometheus.GaugeVec
	HTTPRequests      *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PatientsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medgen_patients_generated_total",
			Help: "Total patients generated across all jobs.",
		}),
		JobsByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medgen_jobs_total",
			Help: "Jobs reaching each terminal status.",
		}, []string{"status"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medgen_job_duration_seconds",
			Help:    "Wall-clock duration of completed jobs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DeathsByCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medgen_deaths_total",
			Help: "Simulated deaths by category.",
		}, []string{"category"}),
		DiagnosticRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medgen_diagnostic_accuracy",
			Help: "Observed diagnostic accuracy of the last completed job.",
		}),
		TransportMissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medgen_transport_missions_total",
			Help: "Completed transport missions by vehicle kind.",
		}, []string{"vehicle"}),
		FacilityOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medgen_facility_occupancy",
			Help: "Bed occupancy at end of the last completed job.",
		}, []string{"facility"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medgen_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(
		m.PatientsGenerated, m.JobsByStatus, m.JobDuration,
		m.DeathsByCategory, m.DiagnosticRate, m.TransportMissions,
		m.FacilityOccupancy, m.HTTPRequests,
	)
	return m
}

// Middleware counts each request by method, matched route and status.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the exposition endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store")
		h.ServeHTTP(c.Writer, c.Request)
	}
}
