package telemetry

import (
	"github.com/nomnomlab/nomnom-core/internal/bridge"
)

// MetricsWriter is the subset of the influxdb client the recorder uses.
type MetricsWriter interface {
	WriteTelemetryMetric(deviceID, channel, field string, value float64)
}

// metricFields maps each channel to the numeric payload fields worth
// charting. Channels without numeric content (heartbeat) are skipped.
var metricFields = map[bridge.Channel][]string{
	bridge.ChannelLoadcell:    {"weight_g"},
	bridge.ChannelEnvironment: {"humidity", "temperature"},
	bridge.ChannelTOF:         {"distance"},
}

// boolMetricFields maps channels whose payloads carry booleans, written
// as 0/1 so they chart alongside the numeric series.
var boolMetricFields = map[bridge.Channel][]string{
	bridge.ChannelLimitSwitch: {"pressed"},
	bridge.ChannelMotorStatus: {"running"},
}

// MetricsRecorder forwards numeric telemetry readings to InfluxDB.
type MetricsRecorder struct {
	writer   MetricsWriter
	deviceID string
}

// NewMetricsRecorder creates a recorder tagging points with deviceID.
func NewMetricsRecorder(writer MetricsWriter, deviceID string) *MetricsRecorder {
	return &MetricsRecorder{
		writer:   writer,
		deviceID: deviceID,
	}
}

// Listener returns the bridge listener that records metrics.
// Undecodable or non-numeric payloads are skipped silently; the
// archiver keeps the raw record regardless.
func (m *MetricsRecorder) Listener() bridge.Listener {
	return func(msg bridge.Message) error {
		if msg.Decoded == nil {
			return nil
		}
		for _, field := range metricFields[msg.Channel] {
			if v, ok := msg.Decoded[field].(float64); ok {
				m.writer.WriteTelemetryMetric(m.deviceID, string(msg.Channel), field, v)
			}
		}
		for _, field := range boolMetricFields[msg.Channel] {
			if v, ok := msg.Decoded[field].(bool); ok {
				val := 0.0
				if v {
					val = 1.0
				}
				m.writer.WriteTelemetryMetric(m.deviceID, string(msg.Channel), field, val)
			}
		}
		return nil
	}
}
