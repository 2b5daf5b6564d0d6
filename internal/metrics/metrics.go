// Package metrics exposes the simulator's own counters over prometheus
// for scraping alongside the services it drives.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trafficsim/internal/stats"
)

// Collector implements stats.Observer and mirrors every recorded
// outcome into prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	latency       prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trafficsim_requests_total",
				Help: "Total requests issued, by method, endpoint and status code",
			},
			[]string{"method", "endpoint", "status"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trafficsim_failures_total",
				Help: "Requests classified as failed (status >= 400)",
			},
			[]string{"method", "endpoint"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trafficsim_request_latency_seconds",
				Help:    "Wall-clock request latency",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	c.registry.MustRegister(c.requestsTotal, c.failuresTotal, c.latency)
	return c
}

// Observe satisfies stats.Observer.
func (c *Collector) Observe(o stats.Outcome) {
	c.requestsTotal.WithLabelValues(o.Method, o.Endpoint, strconv.Itoa(o.Status)).Inc()
	if !o.Success() {
		c.failuresTotal.WithLabelValues(o.Method, o.Endpoint).Inc()
	}
	c.latency.Observe(o.Latency.Seconds())
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts the scrape listener on addr. Errors after startup are
// reported through errFn; ListenAndServe only returns on failure.
func (c *Collector) Serve(addr string, errFn func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errFn(err)
		}
	}()
	return srv
}

var _ stats.Observer = (*Collector)(nil)
