package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetryMetric writes a single feeder sensor measurement.
//
// This is the primary method for recording feeder telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Identifier for the feeder (e.g., "NomNom-01")
//   - channel: Telemetry channel name (e.g., "loadcell", "environment")
//   - field: The metric name (e.g., "weight_g", "humidity")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteTelemetryMetric("NomNom-01", "loadcell", "weight_g", 42.5)
//	client.WriteTelemetryMetric("NomNom-01", "environment", "temperature", 27.1)
func (c *Client) WriteTelemetryMetric(deviceID, channel, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feeder_telemetry",
		map[string]string{
			"device_id": deviceID,
			"channel":   channel,
		},
		map[string]interface{}{
			field: value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFeedEvent records a dispense command for later portion analysis.
//
// Parameters:
//   - deviceID: Identifier for the feeder
//   - source: Where the command originated ("manual" or "schedule")
//   - grams: Requested portion size
func (c *Client) WriteFeedEvent(deviceID, source string, grams float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feed_events",
		map[string]string{
			"device_id": deviceID,
			"source":    source,
		},
		map[string]interface{}{
			"grams": grams,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., the message's broker
// receive time rather than the archive time).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
