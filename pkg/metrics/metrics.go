// Package metrics collects Prometheus metrics for a harvest run.
//
// A command-line run has no scrape endpoint, so the collected series are
// written once at the end of the run in the text exposition format, ready
// for the node_exporter textfile collector.
//
// Metrics:
//   - tweetharvest_requests_total{status} (Counter): HTTP attempts by status, "error" when no response
//   - tweetharvest_request_duration_seconds (Histogram): HTTP attempt duration
//   - tweetharvest_pages_total{kind} (Counter): pages fetched, kind is "full" or "remainder"
//   - tweetharvest_records_fetched_total (Counter): records received from the API
//   - tweetharvest_records_persisted_total (Counter): records written to both streams
//   - tweetharvest_state_transitions_total{to} (Counter): paginator state transitions
//   - tweetharvest_run_duration_seconds (Gauge): wall time of the last run
//   - tweetharvest_run_success (Gauge): 1 when the last run ended exhausted, 0 when it failed
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns a private registry with the run metrics
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	pages            *prometheus.CounterVec
	recordsFetched   prometheus.Counter
	recordsPersisted prometheus.Counter
	transitions      *prometheus.CounterVec
	runDuration      prometheus.Gauge
	runSuccess       prometheus.Gauge
}

// NewCollector registers all run metrics on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetharvest_requests_total",
				Help: "Total number of search API requests by HTTP status",
			},
			[]string{"status"},
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tweetharvest_request_duration_seconds",
				Help:    "Duration of search API requests",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		pages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetharvest_pages_total",
				Help: "Total number of result pages fetched by kind",
			},
			[]string{"kind"}, // "full", "remainder"
		),
		recordsFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tweetharvest_records_fetched_total",
				Help: "Total number of records received from the search API",
			},
		),
		recordsPersisted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tweetharvest_records_persisted_total",
				Help: "Total number of records written to both output streams",
			},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetharvest_state_transitions_total",
				Help: "Paginator state transitions by target state",
			},
			[]string{"to"},
		),
		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tweetharvest_run_duration_seconds",
				Help: "Wall time of the last harvest run",
			},
		),
		runSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tweetharvest_run_success",
				Help: "Whether the last harvest run exhausted its plan (1) or failed (0)",
			},
		),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records one HTTP attempt
func (c *Collector) ObserveRequest(status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.requests.WithLabelValues(label).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// PageFetched records a page received from the API
func (c *Collector) PageFetched(kind string, records int) {
	c.pages.WithLabelValues(kind).Inc()
	c.recordsFetched.Add(float64(records))
}

// PagePersisted records a page written to the sink
func (c *Collector) PagePersisted(records int) {
	c.recordsPersisted.Add(float64(records))
}

// StateChanged records a paginator state transition
func (c *Collector) StateChanged(_, to string) {
	c.transitions.WithLabelValues(to).Inc()
}

// RunFinished records the outcome of a run
func (c *Collector) RunFinished(success bool, duration time.Duration) {
	c.runDuration.Set(duration.Seconds())
	if success {
		c.runSuccess.Set(1)
	} else {
		c.runSuccess.Set(0)
	}
}

// WriteTextfile writes all metrics to path, creating its directory
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
