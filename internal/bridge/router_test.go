package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// route pushes a payload through the inbound handler for a channel.
func route(t *testing.T, b *Bridge, channel Channel, payload string) {
	t.Helper()
	topic, ok := b.Topics().TopicFor(channel)
	if !ok {
		t.Fatalf("no topic for channel %q", channel)
	}
	// Decode errors are expected for some tests; they are asserted
	// separately via the returned error.
	_ = b.handleInbound(topic, []byte(payload))
}

func TestHandleInbound_UnknownTopicIgnored(t *testing.T) {
	b, _ := newTestBridge(t)

	if err := b.handleInbound("/somebody/elses/topic", []byte(`{"weight_g": 42}`)); err != nil {
		t.Fatalf("handleInbound() error = %v", err)
	}

	snap := b.Snapshot()
	if len(snap.Topics) != 0 {
		t.Errorf("unknown topic was routed: %v", snap.Topics)
	}
	if snap.Summary.UpdatedAt != nil {
		t.Error("unknown topic updated the summary")
	}
	if snap.Connection.LastMessageAt == nil {
		t.Error("unknown topic did not advance lastMessageAt")
	}
}

func TestHandleInbound_Loadcell(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelLoadcell, `{"weight_g": 42.5}`)

	snap := b.Snapshot()
	if snap.Summary.WeightGrams == nil || *snap.Summary.WeightGrams != 42.5 {
		t.Errorf("WeightGrams = %v, want 42.5", snap.Summary.WeightGrams)
	}
	if snap.Summary.BowlLikelyEmpty == nil || *snap.Summary.BowlLikelyEmpty {
		t.Errorf("BowlLikelyEmpty = %v, want false", snap.Summary.BowlLikelyEmpty)
	}
	if snap.Summary.UpdatedAt == nil {
		t.Error("UpdatedAt not set")
	}

	state, ok := snap.Topics[ChannelLoadcell]
	if !ok {
		t.Fatal("loadcell topic state missing")
	}
	if state.Raw != `{"weight_g": 42.5}` {
		t.Errorf("Raw = %q", state.Raw)
	}
	if state.Parsed["weight_g"] != 42.5 {
		t.Errorf("Parsed[weight_g] = %v", state.Parsed["weight_g"])
	}
}

func TestHandleInbound_EnvironmentLastWriteWins(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelEnvironment, `{"humidity": 60, "temperature": 25}`)
	route(t, b, ChannelEnvironment, `{"humidity": 65}`)

	snap := b.Snapshot()
	if snap.Summary.Humidity == nil || *snap.Summary.Humidity != 65 {
		t.Errorf("Humidity = %v, want 65", snap.Summary.Humidity)
	}
	// Temperature absent from the second message keeps its last value.
	if snap.Summary.Temperature == nil || *snap.Summary.Temperature != 25 {
		t.Errorf("Temperature = %v, want 25", snap.Summary.Temperature)
	}
}

func TestHandleInbound_DecodeFailureStillRecorded(t *testing.T) {
	b, _ := newTestBridge(t)

	topic := b.Topics().Environment()
	err := b.handleInbound(topic, []byte("not json at all"))
	if err == nil {
		t.Fatal("handleInbound() expected decode error, got nil")
	}

	snap := b.Snapshot()
	if snap.Summary.UpdatedAt == nil {
		t.Error("decode failure did not bump UpdatedAt")
	}
	if snap.Connection.LastMessageAt == nil {
		t.Error("decode failure did not bump LastMessageAt")
	}
	state, ok := snap.Topics[ChannelEnvironment]
	if !ok {
		t.Fatal("environment topic state missing after decode failure")
	}
	if state.Raw != "not json at all" {
		t.Errorf("Raw = %q", state.Raw)
	}
	if state.Parsed != nil {
		t.Errorf("Parsed = %v, want nil", state.Parsed)
	}
	// The summary fields themselves are untouched.
	if snap.Summary.Humidity != nil {
		t.Errorf("Humidity = %v, want nil", snap.Summary.Humidity)
	}
}

func TestHandleInbound_TOF(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelTOF, `{"distance": 120}`)

	snap := b.Snapshot()
	if snap.Summary.DistanceMm == nil || *snap.Summary.DistanceMm != 120 {
		t.Errorf("DistanceMm = %v, want 120", snap.Summary.DistanceMm)
	}
}

func TestHandleInbound_LimitSwitchNumericTruthiness(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelLimitSwitch, `{"pressed": 1}`)

	snap := b.Snapshot()
	if snap.Summary.LimitSwitchPressed == nil || !*snap.Summary.LimitSwitchPressed {
		t.Errorf("LimitSwitchPressed = %v, want true", snap.Summary.LimitSwitchPressed)
	}
}

func TestHandleInbound_HeartbeatBumpsTimestampsOnly(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelHeartbeat, `{"status": "alive"}`)

	snap := b.Snapshot()
	if snap.Connection.LastMessageAt == nil {
		t.Error("heartbeat did not bump LastMessageAt")
	}
	if snap.Summary.WeightGrams != nil || snap.Summary.Humidity != nil {
		t.Error("heartbeat mutated summary fields")
	}
}

func TestBowlEmptyLifecycle(t *testing.T) {
	b, _ := newTestBridge(t)

	// Bowl nearly empty: 3g < 5g threshold.
	route(t, b, ChannelLoadcell, `{"weight_g": 3}`)
	snap := b.Snapshot()
	if snap.Summary.BowlLikelyEmpty == nil || !*snap.Summary.BowlLikelyEmpty {
		t.Fatalf("BowlLikelyEmpty = %v after 3g, want true", snap.Summary.BowlLikelyEmpty)
	}

	// Motor stops: weight still 3g, so still empty.
	route(t, b, ChannelMotorStatus, `{"running": false}`)
	snap = b.Snapshot()
	if snap.Summary.BowlLikelyEmpty == nil || !*snap.Summary.BowlLikelyEmpty {
		t.Fatalf("BowlLikelyEmpty = %v after motor stop at 3g, want true", snap.Summary.BowlLikelyEmpty)
	}

	// Fresh weight reading after a dispense.
	route(t, b, ChannelLoadcell, `{"weight_g": 80}`)
	snap = b.Snapshot()
	if snap.Summary.BowlLikelyEmpty == nil || *snap.Summary.BowlLikelyEmpty {
		t.Fatalf("BowlLikelyEmpty = %v after 80g, want false", snap.Summary.BowlLikelyEmpty)
	}

	// Motor stop re-evaluates against the latest weight.
	route(t, b, ChannelMotorStatus, `{"running": false}`)
	snap = b.Snapshot()
	if snap.Summary.BowlLikelyEmpty == nil || *snap.Summary.BowlLikelyEmpty {
		t.Fatalf("BowlLikelyEmpty = %v after motor stop at 80g, want false", snap.Summary.BowlLikelyEmpty)
	}
}

func TestMotorStatusWithoutWeightLeavesBowlUnknown(t *testing.T) {
	b, _ := newTestBridge(t)

	route(t, b, ChannelMotorStatus, `{"running": false}`)

	snap := b.Snapshot()
	if snap.Summary.BowlLikelyEmpty != nil {
		t.Errorf("BowlLikelyEmpty = %v with no weight seen, want nil", snap.Summary.BowlLikelyEmpty)
	}
}

func TestHandleInbound_ViaSubscribedHandler(t *testing.T) {
	b, conn := newTestBridge(t)
	if err := b.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}

	conn.mu.Lock()
	handler := conn.subs[b.Topics().Loadcell()]
	conn.mu.Unlock()
	if handler == nil {
		t.Fatal("no handler registered for loadcell topic")
	}

	if err := handler(b.Topics().Loadcell(), []byte(`{"weight_g": 10}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	snap := b.Snapshot()
	if snap.Summary.WeightGrams == nil || *snap.Summary.WeightGrams != 10 {
		t.Errorf("WeightGrams = %v, want 10", snap.Summary.WeightGrams)
	}
}

func TestNumberField(t *testing.T) {
	fields := map[string]any{"n": 1.5, "s": "nope"}

	if v, ok := numberField(fields, "n"); !ok || v != 1.5 {
		t.Errorf("numberField(n) = %v, %v", v, ok)
	}
	if _, ok := numberField(fields, "s"); ok {
		t.Error("numberField(s) accepted a string")
	}
	if _, ok := numberField(fields, "missing"); ok {
		t.Error("numberField(missing) reported ok")
	}
	if _, ok := numberField(nil, "n"); ok {
		t.Error("numberField(nil map) reported ok")
	}
}

func TestBoolField(t *testing.T) {
	tests := []struct {
		value any
		want  bool
		ok    bool
	}{
		{true, true, true},
		{false, false, true},
		{float64(1), true, true},
		{float64(0), false, true},
		{"true", false, false},
	}
	for i, tt := range tests {
		got, ok := boolField(map[string]any{"k": tt.value}, "k")
		if got != tt.want || ok != tt.ok {
			t.Errorf("case %d: boolField(%v) = %v, %v, want %v, %v", i, tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSnapshotTimestampOrdering(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	b, _ := newTestBridge(t, WithClock(clock.Now))

	route(t, b, ChannelLoadcell, `{"weight_g": 40}`)
	first := b.Snapshot()

	clock.Advance(2 * time.Second)
	route(t, b, ChannelLoadcell, `{"weight_g": 41}`)
	second := b.Snapshot()

	if !second.Summary.UpdatedAt.After(*first.Summary.UpdatedAt) {
		t.Errorf("UpdatedAt did not advance: %v then %v",
			fmt.Sprint(first.Summary.UpdatedAt), fmt.Sprint(second.Summary.UpdatedAt))
	}
}
