package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the write-executor and read façade with the counters
// and histograms a production deployment of this backend would export.
// Methods on a nil *Metrics are no-ops, so wiring metrics in is always
// optional at construction time (Backend.WithMetrics).
type Metrics struct {
	writesTotal   *prometheus.CounterVec
	writeDuration prometheus.Histogram
	queriesTotal  *prometheus.CounterVec
}

// NewMetrics registers the chain-storage core's collectors against reg and
// returns the handle Backend.WithMetrics expects. Pass prometheus.NewRegistry()
// for an isolated registry in tests, or prometheus.DefaultRegisterer in a
// long-running process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainstorage_writes_total",
			Help: "Total number of write-transaction batches applied, by outcome.",
		}, []string{"outcome"}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainstorage_write_duration_seconds",
			Help:    "Latency of applying one write-transaction batch.",
			Buckets: prometheus.DefBuckets,
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainstorage_queries_total",
			Help: "Total number of read-façade queries, by operation.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.writesTotal, m.writeDuration, m.queriesTotal)
	return m
}

func (m *Metrics) observeWrite(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.writesTotal.WithLabelValues(outcome).Inc()
	m.writeDuration.Observe(d.Seconds())
}

func (m *Metrics) observeQuery(operation string) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(operation).Inc()
}
