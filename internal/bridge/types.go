package bridge

import (
	"time"
)

// Channel identifies a telemetry stream from the feeder firmware.
// Channel names are stable identifiers used in snapshots, the archive,
// and WebSocket broadcasts.
type Channel string

// Telemetry channels published by the feeder.
const (
	// ChannelLoadcell carries bowl weight readings ({"weight_g": 42.5}).
	ChannelLoadcell Channel = "loadcell"

	// ChannelEnvironment carries humidity/temperature readings.
	ChannelEnvironment Channel = "environment"

	// ChannelTOF carries time-of-flight hopper distance readings.
	ChannelTOF Channel = "tof"

	// ChannelLimitSwitch carries lid limit-switch state.
	ChannelLimitSwitch Channel = "limitSwitch"

	// ChannelMotorStatus carries dispense motor run state.
	ChannelMotorStatus Channel = "motorStatus"

	// ChannelHeartbeat carries firmware liveness pings.
	ChannelHeartbeat Channel = "heartbeat"
)

// Channels lists all telemetry channels in a stable order.
func Channels() []Channel {
	return []Channel{
		ChannelLoadcell,
		ChannelEnvironment,
		ChannelTOF,
		ChannelLimitSwitch,
		ChannelMotorStatus,
		ChannelHeartbeat,
	}
}

// Message is a single telemetry message routed by the bridge.
//
// Raw always holds the payload as received. Decoded is nil when the
// payload was not a JSON object.
type Message struct {
	Channel    Channel        `json:"channel"`
	Topic      string         `json:"topic"`
	Raw        string         `json:"raw"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Decoded    map[string]any `json:"decoded,omitempty"`
}

// copyDecoded returns a shallow-value copy of a decoded payload map.
// Values are JSON primitives (plus nested maps/slices which callers
// must not mutate), so copying the top level is sufficient isolation
// for well-behaved listeners.
func copyDecoded(decoded map[string]any) map[string]any {
	if decoded == nil {
		return nil
	}
	cp := make(map[string]any, len(decoded))
	for k, v := range decoded {
		cp[k] = v
	}
	return cp
}

// copyMessage returns an independent copy of a message.
func copyMessage(msg Message) Message {
	cp := msg
	cp.Decoded = copyDecoded(msg.Decoded)
	return cp
}

// Summary is the rolling last-write-wins view of the feeder's state.
//
// Pointer fields distinguish "never reported" (null in JSON) from a
// reported zero value. Field names match the dashboard contract.
type Summary struct {
	WeightGrams        *float64   `json:"weightGrams"`
	Humidity           *float64   `json:"humidity"`
	Temperature        *float64   `json:"temperature"`
	DistanceMm         *float64   `json:"distanceMm"`
	LimitSwitchPressed *bool      `json:"limitSwitchPressed"`
	BowlLikelyEmpty    *bool      `json:"bowlLikelyEmpty"`
	UpdatedAt          *time.Time `json:"updatedAt"`
}

// copySummary returns a deep copy so snapshot holders can never see
// later mutations.
func copySummary(s Summary) Summary {
	cp := Summary{}
	if s.WeightGrams != nil {
		v := *s.WeightGrams
		cp.WeightGrams = &v
	}
	if s.Humidity != nil {
		v := *s.Humidity
		cp.Humidity = &v
	}
	if s.Temperature != nil {
		v := *s.Temperature
		cp.Temperature = &v
	}
	if s.DistanceMm != nil {
		v := *s.DistanceMm
		cp.DistanceMm = &v
	}
	if s.LimitSwitchPressed != nil {
		v := *s.LimitSwitchPressed
		cp.LimitSwitchPressed = &v
	}
	if s.BowlLikelyEmpty != nil {
		v := *s.BowlLikelyEmpty
		cp.BowlLikelyEmpty = &v
	}
	if s.UpdatedAt != nil {
		v := *s.UpdatedAt
		cp.UpdatedAt = &v
	}
	return cp
}

// ConnectionState reports the bridge's broker connectivity.
type ConnectionState struct {
	Connected       bool       `json:"connected"`
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
}

// TopicState is the latest message seen on one channel.
type TopicState struct {
	Topic      string         `json:"topic"`
	Raw        string         `json:"raw"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Parsed     map[string]any `json:"parsed,omitempty"`
}

// Snapshot is a point-in-time, deep-copied view of everything the
// bridge knows. Safe to hold and serialise without further locking.
type Snapshot struct {
	Summary    Summary                `json:"summary"`
	Connection ConnectionState        `json:"connection"`
	Topics     map[Channel]TopicState `json:"topics"`
}
