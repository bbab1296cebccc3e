package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges sampled from the presence registry and WebSocket server
	sessionsActive    prometheus.Gauge
	participantsTotal prometheus.Gauge
	connectionsActive prometheus.Gauge

	// Counters
	broadcastsTotal     *prometheus.CounterVec
	securityEventsTotal *prometheus.CounterVec
	lockTransitions     *prometheus.CounterVec
	droppedMessages     prometheus.Counter

	broadcastDuration prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codeshare_sessions_active_total",
			Help: "Number of collaboration sessions with at least one participant",
		}),

		participantsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codeshare_participants_total",
			Help: "Total number of participants across all sessions",
		}),

		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codeshare_websocket_connections",
			Help: "Number of active WebSocket connections",
		}),

		broadcastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "codeshare_broadcasts_total",
			Help: "Total number of messages published to session topics",
		}, []string{"concern"}),

		securityEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "codeshare_security_events_total",
			Help: "Total number of recorded security events",
		}, []string{"event_type"}),

		lockTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "codeshare_lock_transitions_total",
			Help: "Total number of editor lock and unlock operations",
		}, []string{"action"}),

		droppedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codeshare_dropped_messages_total",
			Help: "Messages dropped because a subscriber buffer was full",
		}),

		broadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeshare_broadcast_fanout_duration_seconds",
			Help:    "Time spent fanning one broadcast out to its subscribers",
			Buckets: prometheus.ExponentialBuckets(0.000001, 10, 8),
		}),
	}
}

func (p *PrometheusCollector) SetActiveSessions(n int) {
	p.sessionsActive.Set(float64(n))
}

func (p *PrometheusCollector) SetParticipants(n int) {
	p.participantsTotal.Set(float64(n))
}

func (p *PrometheusCollector) SetConnections(n int) {
	p.connectionsActive.Set(float64(n))
}

func (p *PrometheusCollector) RecordBroadcast(concern string) {
	p.broadcastsTotal.WithLabelValues(concern).Inc()
}

func (p *PrometheusCollector) RecordSecurityEvent(eventType string) {
	p.securityEventsTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) RecordLock() {
	p.lockTransitions.WithLabelValues("lock").Inc()
}

func (p *PrometheusCollector) RecordUnlock() {
	p.lockTransitions.WithLabelValues("unlock").Inc()
}

func (p *PrometheusCollector) RecordDroppedMessage() {
	p.droppedMessages.Inc()
}

func (p *PrometheusCollector) ObserveBroadcastDuration(seconds float64) {
	p.broadcastDuration.Observe(seconds)
}
