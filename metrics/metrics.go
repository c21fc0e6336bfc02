// Package metrics declares the server's Prometheus instrumentation,
// grounded on the metrics style the retrieved consensus-engine pack uses
// (gauges/counters registered against a prometheus.Registerer the caller
// owns, rather than the global default registry).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Server bundles every gauge/counter the server exposes.
type Server struct {
	QueueDepth        prometheus.Gauge
	ResultQueueDepth  prometheus.Gauge
	WorkersBusy       prometheus.Gauge
	QueriesTotal      prometheus.Counter
	QueriesFailed     prometheus.Counter
	QueriesRejected   prometheus.Counter
	ResultsEvicted    prometheus.Counter
	RegisteredKeys    prometheus.Gauge
}

// NewServer constructs the server's metrics and registers them against
// registerer.
func NewServer(registerer prometheus.Registerer) (*Server, error) {
	m := &Server{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppcnn_query_queue_depth",
			Help: "Number of queries currently queued or executing",
		}),
		ResultQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppcnn_result_queue_depth",
			Help: "Number of results currently held awaiting poll",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppcnn_workers_busy",
			Help: "Number of worker goroutines currently executing a query",
		}),
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppcnn_queries_total",
			Help: "Number of queries submitted",
		}),
		QueriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppcnn_queries_failed_total",
			Help: "Number of queries that finished with a failed compile or execute",
		}),
		QueriesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppcnn_queries_rejected_total",
			Help: "Number of queries rejected because the query queue was at capacity",
		}),
		ResultsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppcnn_results_evicted_total",
			Help: "Number of results evicted by the result lifetime sweep",
		}),
		RegisteredKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppcnn_registered_keys",
			Help: "Number of key-ids currently registered",
		}),
	}

	collectors := []prometheus.Collector{
		m.QueueDepth, m.ResultQueueDepth, m.WorkersBusy, m.QueriesTotal,
		m.QueriesFailed, m.QueriesRejected, m.ResultsEvicted, m.RegisteredKeys,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
