package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink is the default production Sink. Following
// adred-codev-ws_poc's metrics.go, each measurement gets its own
// promauto-registered collector against a private registry rather than
// the global default one, so a process can run more than one Client
// without label collisions.
type PrometheusSink struct {
	registry *prometheus.Registry

	connectionStateChange *prometheus.CounterVec
	subscriptionCount     prometheus.Gauge
	command               *prometheus.HistogramVec
	messageReceived       prometheus.Counter
	pushReceived          *prometheus.CounterVec
	websocketError        prometheus.Counter
}

// NewPrometheusSink builds a PrometheusSink with its own registry.
func NewPrometheusSink() *PrometheusSink {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusSink{
		registry: reg,
		connectionStateChange: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wireclient_connection_state_change_total",
			Help: "Count of connection state transitions, by resulting state.",
		}, []string{"state"}),
		subscriptionCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wireclient_subscription_count",
			Help: "Current number of entities held in the subscription registry.",
		}),
		command: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wireclient_command_duration_milliseconds",
			Help:    "Round-trip latency of commands, by method and result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "result"}),
		messageReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "wireclient_message_received_total",
			Help: "Count of raw frames received from the transport.",
		}),
		pushReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wireclient_push_received_total",
			Help: "Count of server pushes received, by push type.",
		}, []string{"push_type"}),
		websocketError: factory.NewCounter(prometheus.CounterOpts{
			Name: "wireclient_websocket_error_total",
			Help: "Count of transport-level errors.",
		}),
	}
}

// Registry returns the sink's private registry, for mounting under a
// promhttp handler (see internal/diag).
func (s *PrometheusSink) Registry() *prometheus.Registry { return s.registry }

func (s *PrometheusSink) Counter(name string, value float64, tags map[string]string) {
	switch name {
	case MetricConnectionStateChange:
		s.connectionStateChange.WithLabelValues(tags["state"]).Add(value)
	case MetricMessageReceived:
		s.messageReceived.Add(value)
	case MetricPushReceived:
		s.pushReceived.WithLabelValues(tags["push_type"]).Add(value)
	case MetricWebsocketError:
		s.websocketError.Add(value)
	}
}

func (s *PrometheusSink) Gauge(name string, value float64) {
	if name == MetricSubscriptionCount {
		s.subscriptionCount.Set(value)
	}
}

func (s *PrometheusSink) Histogram(name string, valueMs float64, tags map[string]string) {
	if name == MetricCommand {
		s.command.WithLabelValues(tags["method"], tags["result"]).Observe(valueMs)
	}
}
