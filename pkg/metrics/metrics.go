// Package metrics provides Prometheus instrumentation for the format gateway
// and the cloud writer.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewCollector(reg)
//
//	timer := metrics.NewTimer()
//	df, err := gw.ReadParquet(path, opts)
//	m.ObserveOperation("read", "parquet", timer.Stop(), rowsOf(df), err)
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without nil checks at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dfio"

// Collector groups the dfio metrics registered on one registry.
type Collector struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rows        *prometheus.CounterVec
	parts       *prometheus.CounterVec
	uploadBytes prometheus.Counter
	aborts      *prometheus.CounterVec
}

// NewCollector registers the dfio metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		// Labels: operation (read/load/write/dump), format, status (success/failure)
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of gateway operations",
			},
			[]string{"operation", "format", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Gateway operation latency in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"operation", "format"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows read or written by the gateway",
			},
			[]string{"operation", "format"},
		),
		parts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_parts_total",
				Help:      "Multipart upload parts sent to the object store",
			},
			[]string{"status"},
		),
		uploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_bytes_total",
				Help:      "Bytes accepted by the object store in upload parts",
			},
		),
		aborts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_aborts_total",
				Help:      "Multipart upload abort attempts",
			},
			[]string{"status"},
		),
	}
}

// ObserveOperation records one gateway call.
func (c *Collector) ObserveOperation(operation, format string, took time.Duration, rows int64, err error) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, format, status(err)).Inc()
	c.duration.WithLabelValues(operation, format).Observe(took.Seconds())
	if err == nil && rows > 0 {
		c.rows.WithLabelValues(operation, format).Add(float64(rows))
	}
}

// PartUploaded records a part the object store accepted.
func (c *Collector) PartUploaded(size int) {
	if c == nil {
		return
	}
	c.parts.WithLabelValues("success").Inc()
	c.uploadBytes.Add(float64(size))
}

// PartFailed records a part the object store rejected.
func (c *Collector) PartFailed() {
	if c == nil {
		return
	}
	c.parts.WithLabelValues("failure").Inc()
}

// UploadAborted records an abort attempt and whether it succeeded.
func (c *Collector) UploadAborted(err error) {
	if c == nil {
		return
	}
	c.aborts.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
