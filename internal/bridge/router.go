package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// handleInbound routes one broker message: decode, fold into the
// summary, record per-channel state, and fan out to listeners.
//
// Decode failures are contained here: the raw message still updates
// timestamps and the topic table, and the returned error is logged by
// the mqtt handler wrapper without affecting acknowledgment.
func (b *Bridge) handleInbound(topic string, payload []byte) error {
	channel, ok := b.topics.ChannelFor(topic)
	if !ok {
		// Not part of the feeder's topic table. Still broker traffic,
		// so lastMessageAt advances, but nothing is routed.
		b.stateMu.Lock()
		b.lastMessageAt = b.now()
		b.stateMu.Unlock()
		return nil
	}

	now := b.now()
	msg := Message{
		Channel:    channel,
		Topic:      topic,
		Raw:        string(payload),
		ReceivedAt: now,
	}

	var decodeErr error
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		decodeErr = err
	} else {
		msg.Decoded = decoded
	}

	b.stateMu.Lock()
	b.lastMessageAt = now
	b.latest[channel] = copyMessage(msg)
	b.foldSummary(channel, decoded, now)
	b.stateMu.Unlock()

	b.notify(msg)

	if decodeErr != nil {
		return fmt.Errorf("decoding %s payload: %w", channel, decodeErr)
	}
	return nil
}

// foldSummary applies one decoded payload to the rolling summary.
// Caller holds stateMu. fields is nil for undecodable payloads; the
// summary timestamp still advances so staleness reflects broker
// activity, not decode success.
func (b *Bridge) foldSummary(channel Channel, fields map[string]any, now time.Time) {
	b.summary.UpdatedAt = &now

	switch channel {
	case ChannelLoadcell:
		if w, ok := numberField(fields, "weight_g"); ok {
			b.summary.WeightGrams = &w
			empty := w < b.cfg.Feeder.BowlEmptyThresholdGrams
			b.summary.BowlLikelyEmpty = &empty
		}

	case ChannelEnvironment:
		if h, ok := numberField(fields, "humidity"); ok {
			b.summary.Humidity = &h
		}
		if temp, ok := numberField(fields, "temperature"); ok {
			b.summary.Temperature = &temp
		}

	case ChannelTOF:
		if d, ok := numberField(fields, "distance"); ok {
			b.summary.DistanceMm = &d
		}

	case ChannelLimitSwitch:
		if pressed, ok := boolField(fields, "pressed"); ok {
			b.summary.LimitSwitchPressed = &pressed
			b.lastLimitSwitchAt = now
		}

	case ChannelMotorStatus:
		// When a dispense finishes, re-evaluate bowl emptiness from the
		// last known weight so the dashboard updates without waiting
		// for the next loadcell sample.
		if running, ok := boolField(fields, "running"); ok && !running {
			if b.summary.WeightGrams != nil {
				empty := *b.summary.WeightGrams < b.cfg.Feeder.BowlEmptyThresholdGrams
				b.summary.BowlLikelyEmpty = &empty
			}
		}

	case ChannelHeartbeat:
		// Liveness only; lastMessageAt already advanced.
	}
}

// numberField extracts a numeric field from a decoded payload.
func numberField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// boolField extracts a boolean field. Firmware builds have sent both
// true/false and 0/1, so numeric values are accepted as truthiness.
func boolField(fields map[string]any, key string) (bool, bool) {
	v, ok := fields[key]
	if !ok {
		return false, false
	}
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	default:
		return false, false
	}
}
