package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (f *fakeSender) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func feederConfig() config.FeederConfig {
	return config.FeederConfig{
		DeviceID:                "NomNom-01",
		BowlEmptyThresholdGrams: 5,
	}
}

func loadcellMessage(weight float64) bridge.Message {
	return bridge.Message{
		Channel: bridge.ChannelLoadcell,
		Decoded: map[string]any{"weight_g": weight},
	}
}

func TestNotifier_AlertsOnEmptyTransition(t *testing.T) {
	sender := &fakeSender{}
	clock := &testClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)}
	n := NewNotifier(sender, feederConfig(), 5*time.Minute, logging.Default(), WithNotifierClock(clock.Now))
	listener := n.Listener()

	// Full bowl: no alert.
	if err := listener(loadcellMessage(80)); err != nil {
		t.Fatalf("listener error = %v", err)
	}
	if sender.count() != 0 {
		t.Fatalf("alert sent for full bowl")
	}

	// Transition to empty: one alert.
	if err := listener(loadcellMessage(3)); err != nil {
		t.Fatalf("listener error = %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("alert count = %d, want 1", sender.count())
	}

	// Still empty: no repeat while already in empty state.
	if err := listener(loadcellMessage(2)); err != nil {
		t.Fatalf("listener error = %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("alert count = %d after repeat reading, want 1", sender.count())
	}
}

func TestNotifier_CooldownSuppressesFlapping(t *testing.T) {
	sender := &fakeSender{}
	clock := &testClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)}
	n := NewNotifier(sender, feederConfig(), 5*time.Minute, logging.Default(), WithNotifierClock(clock.Now))
	listener := n.Listener()

	// Empty, refill, empty again within cooldown: only one alert.
	listener(loadcellMessage(3))  //nolint:errcheck // Exercised for side effect
	listener(loadcellMessage(80)) //nolint:errcheck // Exercised for side effect
	clock.Advance(time.Minute)
	listener(loadcellMessage(2)) //nolint:errcheck // Exercised for side effect

	if sender.count() != 1 {
		t.Fatalf("alert count = %d within cooldown, want 1", sender.count())
	}

	// After the cooldown a fresh transition alerts again.
	listener(loadcellMessage(80)) //nolint:errcheck // Exercised for side effect
	clock.Advance(10 * time.Minute)
	listener(loadcellMessage(1)) //nolint:errcheck // Exercised for side effect

	if sender.count() != 2 {
		t.Fatalf("alert count = %d after cooldown, want 2", sender.count())
	}
}

func limitSwitchMessage(pressed any) bridge.Message {
	return bridge.Message{
		Channel: bridge.ChannelLimitSwitch,
		Decoded: map[string]any{"pressed": pressed},
	}
}

func TestNotifier_BeggingAlertOnRisingEdge(t *testing.T) {
	sender := &fakeSender{}
	clock := &testClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)}
	n := NewNotifier(sender, feederConfig(), 5*time.Minute, logging.Default(), WithNotifierClock(clock.Now))
	listener := n.Listener()

	// Press: one alert. Held: no repeat.
	if err := listener(limitSwitchMessage(true)); err != nil {
		t.Fatalf("listener error = %v", err)
	}
	if err := listener(limitSwitchMessage(true)); err != nil {
		t.Fatalf("listener error = %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("alert count = %d, want 1", sender.count())
	}

	// Release then press again inside the cooldown: still one alert.
	listener(limitSwitchMessage(false)) //nolint:errcheck // Exercised for side effect
	clock.Advance(time.Minute)
	listener(limitSwitchMessage(true)) //nolint:errcheck // Exercised for side effect
	if sender.count() != 1 {
		t.Fatalf("alert count = %d within cooldown, want 1", sender.count())
	}

	// Numeric truthiness (firmware sends 0/1 on some builds).
	listener(limitSwitchMessage(float64(0))) //nolint:errcheck // Exercised for side effect
	clock.Advance(10 * time.Minute)
	listener(limitSwitchMessage(float64(1))) //nolint:errcheck // Exercised for side effect
	if sender.count() != 2 {
		t.Fatalf("alert count = %d after cooldown, want 2", sender.count())
	}
}

func TestNotifier_SendFailureReturned(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("telegram unreachable")}
	n := NewNotifier(sender, feederConfig(), time.Minute, logging.Default())

	if err := n.Listener()(loadcellMessage(1)); err == nil {
		t.Error("expected error when sender fails")
	}
}

func TestNotifier_IgnoresOtherChannels(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, feederConfig(), time.Minute, logging.Default())
	listener := n.Listener()

	msgs := []bridge.Message{
		{Channel: bridge.ChannelEnvironment, Decoded: map[string]any{"humidity": 60.0}},
		{Channel: bridge.ChannelLoadcell, Decoded: nil},
		{Channel: bridge.ChannelLoadcell, Decoded: map[string]any{"weight_g": "three"}},
	}
	for _, msg := range msgs {
		if err := listener(msg); err != nil {
			t.Errorf("listener(%v) error = %v", msg.Channel, err)
		}
	}
	if sender.count() != 0 {
		t.Errorf("alert count = %d, want 0", sender.count())
	}
}
