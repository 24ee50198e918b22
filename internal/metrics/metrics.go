// Package metrics exposes scheduler measurements as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/me/rangerd/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements the scheduler's Telemetry interface on top of a
// Prometheus registry.
type Collector struct {
	requestsTotal   prometheus.Counter
	retiredTotal    *prometheus.CounterVec
	rangingDuration prometheus.Histogram
	queueDepth      prometheus.Gauge
	available       prometheus.Gauge
}

// New registers the collectors on reg and returns the Collector.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rangerd_requests_total",
			Help: "Ranging requests submitted, including rejected ones.",
		}),
		retiredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rangerd_retired_total",
			Help: "Requests retired, by overall status.",
		}, []string{"status"}),
		rangingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rangerd_ranging_duration_seconds",
			Help:    "Time from dispatch to retirement of an operation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rangerd_queue_depth",
			Help: "Entries currently queued, including the dispatched one.",
		}),
		available: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rangerd_available",
			Help: "Whether ranging is currently available (1) or not (0).",
		}),
	}
}

func (c *Collector) RecordRequest() {
	c.requestsTotal.Inc()
}

func (c *Collector) RecordRetire(status model.OverallStatus) {
	c.retiredTotal.WithLabelValues(string(status)).Inc()
}

func (c *Collector) ObserveRangingDuration(d time.Duration) {
	c.rangingDuration.Observe(d.Seconds())
}

func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

func (c *Collector) SetAvailability(available bool) {
	if available {
		c.available.Set(1)
	} else {
		c.available.Set(0)
	}
}
