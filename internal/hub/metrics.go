package hub

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks live listener fan-out. A nil *Metrics records nothing.
type Metrics struct {
	listeners  prometheus.Gauge
	deliveries *prometheus.CounterVec
	publishes  prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics creates and registers the hub metrics. Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "road_vision",
			Subsystem: "hub",
			Name:      "listeners",
			Help:      "Number of currently subscribed live listeners",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "road_vision",
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Record deliveries to live listeners by result",
		}, []string{"result"}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "road_vision",
			Subsystem: "hub",
			Name:      "publishes_total",
			Help:      "Total publish calls",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "road_vision",
			Subsystem: "hub",
			Name:      "publish_duration_seconds",
			Help:      "Time spent delivering one record to all listeners",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.listeners, m.deliveries, m.publishes, m.duration)
	return m
}

func (m *Metrics) listenerAdded() {
	if m != nil {
		m.listeners.Inc()
	}
}

func (m *Metrics) listenerRemoved() {
	if m != nil {
		m.listeners.Dec()
	}
}

func (m *Metrics) delivered(result string) {
	if m != nil {
		m.deliveries.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) published(seconds float64) {
	if m != nil {
		m.publishes.Inc()
		m.duration.Observe(seconds)
	}
}
