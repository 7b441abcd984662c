package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ukydev/road-vision/internal/db"
)

// Metrics counts store operations by outcome. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics creates and registers the gateway metrics. Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "road_vision",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Record store operations by operation and result",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "road_vision",
			Subsystem: "gateway",
			Name:      "operation_duration_seconds",
			Help:      "Record store operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.latency)
	return m
}

func (m *Metrics) observe(op, result string, start time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
