package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventfeed"

// Collector exposes Prometheus metrics for inbound HTTP requests and
// collection runs on a private registry.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	adapterRuns       *prometheus.CounterVec
	adapterDuration   *prometheus.HistogramVec
	candidatesFound   *prometheus.CounterVec
	candidatesAdded   *prometheus.CounterVec
	duplicatesRemoved prometheus.Counter
	runDuration       prometheus.Histogram
}

// New constructs a collector with default histograms/counters.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		adapterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_runs_total",
			Help:      "Source adapter invocations by outcome.",
		}, []string{"source", "result"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_duration_seconds",
			Help:      "Wall time spent in each source adapter.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"source"}),
		candidatesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_found_total",
			Help:      "Candidates returned by source adapters.",
		}, []string{"source"}),
		candidatesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_added_total",
			Help:      "Candidates accepted into the pool.",
		}, []string{"source"}),
		duplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Candidates folded into a canonical record by deduplication.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of orchestrated collection runs.",
			Buckets:   []float64{1, 10, 30, 60, 120, 180, 300, 600},
		}),
	}

	collectors := []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.adapterRuns, c.adapterDuration, c.candidatesFound, c.candidatesAdded,
		c.duplicatesRemoved, c.runDuration,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics. Inside a
// gorilla/mux router the route template is used as the path label.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := routePath(r)

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveAdapter records one adapter invocation.
func (c *Collector) ObserveAdapter(source, result string, duration time.Duration, found, added int) {
	c.adapterRuns.WithLabelValues(source, result).Inc()
	c.adapterDuration.WithLabelValues(source).Observe(duration.Seconds())
	c.candidatesFound.WithLabelValues(source).Add(float64(found))
	c.candidatesAdded.WithLabelValues(source).Add(float64(added))
}

// ObserveRun records a completed collection run.
func (c *Collector) ObserveRun(duration time.Duration, duplicatesRemoved int) {
	c.runDuration.Observe(duration.Seconds())
	c.duplicatesRemoved.Add(float64(duplicatesRemoved))
}

func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
