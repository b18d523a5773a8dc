// Package monitoring holds the Prometheus metrics for crosswalk lookups and
// tabular runs. A batch process writes them once at exit with WriteTextfile
// for the node-exporter textfile collector.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "crosswalk"

// Lookup operations.
const (
	OpForward  = "forward"
	OpReverse  = "reverse"
	OpCentroid = "centroid"
)

// Lookup and row outcomes.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeInvalid  = "invalid"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics holds the counters and histograms. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Lookups            *prometheus.CounterVec   // labels: op, vintage, outcome
	ReverseIndexBuilds *prometheus.CounterVec   // labels: vintage
	TableLoads         *prometheus.CounterVec   // labels: source, vintage, outcome
	TableRows          *prometheus.CounterVec   // labels: adapter, outcome
	TableDuration      *prometheus.HistogramVec // labels: adapter
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Single-record lookups by operation, vintage and outcome.",
		}, []string{"op", "vintage", "outcome"}),
		ReverseIndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverse_index_builds_total",
			Help:      "ZCTA→ZIP reverse index constructions.",
		}, []string{"vintage"}),
		TableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_loads_total",
			Help:      "Reference table loads by source and outcome.",
		}, []string{"source", "vintage", "outcome"}),
		TableRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_rows_total",
			Help:      "Rows processed by tabular adapters.",
		}, []string{"adapter", "outcome"}),
		TableDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_duration_seconds",
			Help:      "Wall time of a tabular adapter run.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"adapter"}),
	}

	m.Registry.MustRegister(
		m.Lookups,
		m.ReverseIndexBuilds,
		m.TableLoads,
		m.TableRows,
		m.TableDuration,
	)
	return m
}

// ObserveLookup counts one single-record lookup.
func (m *Metrics) ObserveLookup(op string, vintage int, outcome string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(op, strconv.Itoa(vintage), outcome).Inc()
}

// ObserveReverseBuild counts one reverse index construction.
func (m *Metrics) ObserveReverseBuild(vintage int) {
	if m == nil {
		return
	}
	m.ReverseIndexBuilds.WithLabelValues(strconv.Itoa(vintage)).Inc()
}

// ObserveTableLoad counts one reference table load.
func (m *Metrics) ObserveTableLoad(source string, vintage int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeHit
	if err != nil {
		outcome = OutcomeError
	}
	m.TableLoads.WithLabelValues(source, strconv.Itoa(vintage), outcome).Inc()
}

// ObserveRows adds n rows with the given outcome for an adapter.
func (m *Metrics) ObserveRows(adapter, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TableRows.WithLabelValues(adapter, outcome).Add(float64(n))
}

// ObserveDuration records the wall time of an adapter run.
func (m *Metrics) ObserveDuration(adapter string, d time.Duration) {
	if m == nil {
		return
	}
	m.TableDuration.WithLabelValues(adapter).Observe(d.Seconds())
}

// WriteTextfile writes every metric in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return eris.Wrapf(err, "monitoring: write %s", path)
	}
	return nil
}
