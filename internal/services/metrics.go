package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the custom Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Live channel
	LiveConnections prometheus.Gauge
	LiveEvents      *prometheus.CounterVec

	// Notification fan-out
	NotificationsWritten prometheus.Counter
	NotificationsFailed  prometheus.Counter
	FanOutQueueDepth     prometheus.Gauge

	// Link previews by outcome: ok, cached, blocked, failed
	LinkPreviews *prometheus.CounterVec
}

// NewMetrics registers the metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowbase_live_connections_active",
			Help: "Number of open live-channel connections",
		}),

		LiveEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowbase_live_events_total",
			Help: "Live-channel events by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "delivered" or "dropped"

		NotificationsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowbase_notifications_written_total",
			Help: "Notification rows written by fan-out",
		}),

		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowbase_notifications_failed_total",
			Help: "Notification rows that fan-out failed to write",
		}),

		FanOutQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowbase_fanout_queue_depth",
			Help: "Activities waiting for a fan-out worker",
		}),

		LinkPreviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowbase_link_previews_total",
			Help: "Link preview fetches by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) connectionOpened() {
	if m != nil {
		m.LiveConnections.Inc()
	}
}

func (m *Metrics) connectionClosed() {
	if m != nil {
		m.LiveConnections.Dec()
	}
}

func (m *Metrics) liveEvent(eventType string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	m.LiveEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) notificationWritten(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.NotificationsWritten.Inc()
	} else {
		m.NotificationsFailed.Inc()
	}
}

func (m *Metrics) queueDepth(delta float64) {
	if m != nil {
		m.FanOutQueueDepth.Add(delta)
	}
}

func (m *Metrics) linkPreview(outcome string) {
	if m != nil {
		m.LinkPreviews.WithLabelValues(outcome).Inc()
	}
}
