// Package metrics exposes the Prometheus collectors the Execution
// Engine, Queue Processor, and API Surface record against.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector this repository registers. It is
// constructed once in main and passed by reference to whichever
// component records against it — never a package-level registry.
type Metrics struct {
	ExecutionsTotal       *prometheus.CounterVec
	ExecutionDuration     *prometheus.HistogramVec
	StepExecutionsTotal   *prometheus.CounterVec
	StepExecutionDuration *prometheus.HistogramVec
	QueueDepth            prometheus.Gauge
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New constructs every collector with its name/help/labels.
func New() *Metrics {
	return &Metrics{
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_workflow_executions_total",
				Help: "Total number of workflow executions by terminal status",
			},
			[]string{"workflow_id", "status"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_workflow_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
			[]string{"workflow_id"},
		),
		StepExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_step_executions_total",
				Help: "Total number of node step executions by subtype and status",
			},
			[]string{"subtype", "status"},
		),
		StepExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_step_execution_duration_seconds",
				Help:    "Node step execution duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"subtype"},
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loom_queue_depth",
			Help: "Number of pending executions awaiting a worker",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register adds every collector to registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.StepExecutionsTotal,
		m.StepExecutionDuration,
		m.QueueDepth,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordExecution records a terminal execution outcome.
func (m *Metrics) RecordExecution(workflowID, status string, durationSeconds float64) {
	m.ExecutionsTotal.WithLabelValues(workflowID, status).Inc()
	m.ExecutionDuration.WithLabelValues(workflowID).Observe(durationSeconds)
}

// RecordStep records one node step's outcome.
func (m *Metrics) RecordStep(subtype, status string, durationSeconds float64) {
	m.StepExecutionsTotal.WithLabelValues(subtype, status).Inc()
	m.StepExecutionDuration.WithLabelValues(subtype).Observe(durationSeconds)
}

// SetQueueDepth sets the current pending-execution count.
func (m *Metrics) SetQueueDepth(depth float64) {
	m.QueueDepth.Set(depth)
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
