package metrics

import (
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopSinkDiscardsEverything(t *testing.T) {
	// Exercising every method is the only contract a no-op sink has:
	// none of them may panic.
	s := NoopSink{}
	s.Counter(MetricMessageReceived, 1, map[string]string{"push_type": "publication"})
	s.Gauge(MetricSubscriptionCount, 3)
	s.Histogram(MetricCommand, 12.5, map[string]string{"method": "subscribe", "result": "ok"})
}

func TestPrometheusSinkCounterIncrementsByLabel(t *testing.T) {
	sink := NewPrometheusSink()
	sink.Counter(MetricConnectionStateChange, 1, map[string]string{"state": "connected"})
	sink.Counter(MetricConnectionStateChange, 1, map[string]string{"state": "connected"})
	sink.Counter(MetricConnectionStateChange, 1, map[string]string{"state": "disconnected"})

	families, err := sink.Registry().Gather()
	require.NoError(t, err)

	metric := findMetric(t, families, "wireclient_connection_state_change_total", "state", "connected")
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestPrometheusSinkGaugeSetsValue(t *testing.T) {
	sink := NewPrometheusSink()
	sink.Gauge(MetricSubscriptionCount, 4)
	sink.Gauge(MetricSubscriptionCount, 7)

	families, err := sink.Registry().Gather()
	require.NoError(t, err)

	metric := findMetricNoLabel(t, families, "wireclient_subscription_count")
	assert.Equal(t, float64(7), metric.GetGauge().GetValue())
}

func TestPrometheusSinkHistogramObservesByLabels(t *testing.T) {
	sink := NewPrometheusSink()
	sink.Histogram(MetricCommand, 42, map[string]string{"method": "subscribe", "result": "ok"})

	families, err := sink.Registry().Gather()
	require.NoError(t, err)

	metric := findMetric(t, families, "wireclient_command_duration_milliseconds", "method", "subscribe")
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}

func TestPrometheusSinkIgnoresUnknownNames(t *testing.T) {
	sink := NewPrometheusSink()
	// Unknown metric names are silently dropped rather than panicking, so a
	// caller passing a stale name degrades gracefully instead of crashing.
	sink.Counter("unknown_metric", 1, nil)
	sink.Gauge("unknown_gauge", 1)
	sink.Histogram("unknown_histogram", 1, nil)
}

func findMetric(t *testing.T, families []*io_prometheus_client.MetricFamily, name, labelName, labelValue string) *io_prometheus_client.Metric {
	t.Helper()
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == labelName && l.GetValue() == labelValue {
					return m
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%s} not found", name, labelName, labelValue)
	return nil
}

func findMetricNoLabel(t *testing.T, families []*io_prometheus_client.MetricFamily, name string) *io_prometheus_client.Metric {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0]
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}
