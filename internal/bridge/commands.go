package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Feed command sources.
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
)

// ManualFeedRequest is a caller's request to dispense food now.
type ManualFeedRequest struct {
	// Grams is the portion size. Must be positive and finite.
	Grams float64 `json:"grams"`

	// Note is an optional free-text annotation carried to the firmware.
	Note string `json:"note,omitempty"`

	// Source records where the command originated. Defaults to "manual".
	Source string `json:"source,omitempty"`
}

// ManualFeedCommand is the wire payload published to the manual feed
// topic. RequestedAt is stamped server-side; client-supplied values
// are never trusted for it.
type ManualFeedCommand struct {
	Action      string  `json:"action"`
	Grams       float64 `json:"grams"`
	Note        string  `json:"note,omitempty"`
	Source      string  `json:"source"`
	RequestedAt string  `json:"requested_at"`
}

// AutoFeedRequest is a caller's request to replace the feeder's
// automatic dispensing schedule.
type AutoFeedRequest struct {
	// Enabled turns scheduled dispensing on or off.
	Enabled bool `json:"enabled"`

	// Grams is the portion size per scheduled dispense.
	Grams float64 `json:"grams"`

	// IntervalMinutes is the time between dispenses. Fractional values
	// are rounded to the nearest whole minute.
	IntervalMinutes float64 `json:"interval_minutes"`

	// FirstFeedAt optionally pins the first dispense time (RFC 3339).
	FirstFeedAt string `json:"first_feed_at,omitempty"`
}

// AutoFeedCommand is the wire payload published (retained) to the
// auto-feed config topic. Retention means a rebooting feeder picks the
// schedule straight back up from the broker.
type AutoFeedCommand struct {
	Enabled         bool    `json:"enabled"`
	Grams           float64 `json:"grams"`
	IntervalMinutes int     `json:"interval_minutes"`
	FirstFeedAt     string  `json:"first_feed_at,omitempty"`
	RequestedAt     string  `json:"requested_at"`
}

// SendManualFeed validates and publishes a one-shot dispense command.
//
// The command is published non-retained: a feeder that is offline when
// the command is sent must not dispense on reconnect.
//
// Returns:
//   - ManualFeedCommand: The payload as published (with server timestamp)
//   - error: ErrInvalidArgument, ErrConnectFailed, or ErrPublishFailed
func (b *Bridge) SendManualFeed(ctx context.Context, req ManualFeedRequest) (ManualFeedCommand, error) {
	if err := validateGrams(req.Grams); err != nil {
		return ManualFeedCommand{}, err
	}

	source := req.Source
	if source == "" {
		source = SourceManual
	}

	cmd := ManualFeedCommand{
		Action:      "feed",
		Grams:       req.Grams,
		Note:        req.Note,
		Source:      source,
		RequestedAt: b.now().UTC().Format(time.RFC3339),
	}

	if err := b.publishCommand(ctx, b.topics.ManualFeed(), cmd, false); err != nil {
		return ManualFeedCommand{}, err
	}

	b.logger.Info("manual feed command published",
		"grams", cmd.Grams,
		"source", cmd.Source,
	)
	return cmd, nil
}

// SendAutoFeedConfig validates and publishes the auto-feed schedule.
//
// The command is published retained so the firmware receives the
// current schedule immediately after any reconnect or reboot.
//
// Returns:
//   - AutoFeedCommand: The payload as published (with server timestamp)
//   - error: ErrInvalidArgument, ErrConnectFailed, or ErrPublishFailed
func (b *Bridge) SendAutoFeedConfig(ctx context.Context, req AutoFeedRequest) (AutoFeedCommand, error) {
	if err := validateGrams(req.Grams); err != nil {
		return AutoFeedCommand{}, err
	}
	if math.IsNaN(req.IntervalMinutes) || math.IsInf(req.IntervalMinutes, 0) {
		return AutoFeedCommand{}, fmt.Errorf("%w: interval_minutes must be finite", ErrInvalidArgument)
	}
	interval := int(math.Round(req.IntervalMinutes))
	if interval < 1 {
		return AutoFeedCommand{}, fmt.Errorf("%w: interval_minutes must be at least 1", ErrInvalidArgument)
	}
	if req.FirstFeedAt != "" {
		if _, err := time.Parse(time.RFC3339, req.FirstFeedAt); err != nil {
			return AutoFeedCommand{}, fmt.Errorf("%w: first_feed_at must be RFC 3339: %w", ErrInvalidArgument, err)
		}
	}

	cmd := AutoFeedCommand{
		Enabled:         req.Enabled,
		Grams:           req.Grams,
		IntervalMinutes: interval,
		FirstFeedAt:     req.FirstFeedAt,
		RequestedAt:     b.now().UTC().Format(time.RFC3339),
	}

	if err := b.publishCommand(ctx, b.topics.AutoFeedConfig(), cmd, true); err != nil {
		return AutoFeedCommand{}, err
	}

	b.logger.Info("auto feed config published",
		"enabled", cmd.Enabled,
		"grams", cmd.Grams,
		"interval_minutes", cmd.IntervalMinutes,
	)
	return cmd, nil
}

// publishCommand connects if needed and publishes a JSON command.
func (b *Bridge) publishCommand(ctx context.Context, topic string, cmd any, retained bool) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: encoding command: %w", ErrInvalidArgument, err)
	}

	if err := b.EnsureConnected(ctx); err != nil {
		return err
	}

	conn, err := b.currentConn()
	if err != nil {
		return err
	}

	if err := conn.Publish(topic, payload, byte(b.cfg.MQTT.QoS), retained); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// validateGrams rejects non-positive or non-finite portion sizes.
func validateGrams(grams float64) error {
	if math.IsNaN(grams) || math.IsInf(grams, 0) {
		return fmt.Errorf("%w: grams must be finite", ErrInvalidArgument)
	}
	if grams <= 0 {
		return fmt.Errorf("%w: grams must be positive", ErrInvalidArgument)
	}
	return nil
}
