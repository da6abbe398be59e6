package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the telemetry server metrics; registered once on the
// default registry
type Collectors struct {
	ActiveConnections prometheus.Gauge
	AuthAttempts      *prometheus.CounterVec
	FramesTotal       prometheus.Counter
	ProtocolErrors    prometheus.Counter
	CongestionLevel   *prometheus.GaugeVec
	EmergencyActive   *prometheus.GaugeVec
}

// NewCollectors creates the server collectors and registers them on the
// default registry
func NewCollectors() *Collectors {
	return NewCollectorsWith(prometheus.DefaultRegisterer)
}

// NewCollectorsWith registers the collectors on the given registerer
func NewCollectorsWith(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "roadwatch",
			Name:      "active_connections",
			Help:      "Number of currently open sensor connections",
		}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by result",
		}, []string{"result"}),
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "telemetry_frames_total",
			Help:      "Telemetry frames processed",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Name:      "protocol_errors_total",
			Help:      "Protocol violations and malformed frames",
		}),
		CongestionLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roadwatch",
			Name:      "congestion_level",
			Help:      "Last reported congestion level per sensor",
		}, []string{"sensor"}),
		EmergencyActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roadwatch",
			Name:      "emergency_active",
			Help:      "1 when an emergency vehicle is present at the sensor site",
		}, []string{"sensor"}),
	}
}
