package telemetry

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
)

// Alert keys used for per-alert cooldown tracking.
const (
	alertBowlEmpty = "bowl_empty"
	alertBegging   = "begging"
)

// Sender delivers one alert message. Satisfied by TelegramSender;
// tests use fakes.
type Sender interface {
	Send(text string) error
}

// TelegramSender sends alerts to a Telegram chat via the Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender authenticates with the Telegram Bot API.
//
// Parameters:
//   - cfg: Telegram configuration (token, chat ID)
//
// Returns:
//   - *TelegramSender: Ready to send alerts
//   - error: If the token is rejected or Telegram is unreachable
func NewTelegramSender(cfg config.TelegramConfig) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("authenticating telegram bot: %w", err)
	}
	return &TelegramSender{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

// Send delivers one plain-text message to the configured chat.
func (s *TelegramSender) Send(text string) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// Notifier raises alerts from the telemetry stream.
//
// Alerts fire on state transitions (bowl becomes empty, lid switch
// pressed), not on every matching reading, and each alert key has a
// cooldown so a noisy sensor can't flood the chat.
type Notifier struct {
	sender    Sender
	logger    *logging.Logger
	deviceID  string
	threshold float64
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	lastAlertAt map[string]time.Time
	bowlEmpty   bool
	lidPressed  bool
}

// NotifierOption configures optional Notifier behaviour.
type NotifierOption func(*Notifier)

// WithNotifierClock overrides the notifier's time source.
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

// NewNotifier creates a notifier.
//
// Parameters:
//   - sender: Alert delivery channel
//   - cfg: Feeder config (device ID, bowl threshold)
//   - cooldown: Minimum gap between repeats of the same alert
//   - logger: Structured logger
func NewNotifier(sender Sender, cfg config.FeederConfig, cooldown time.Duration, logger *logging.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:      sender,
		logger:      logger.With("component", "notifier"),
		deviceID:    cfg.DeviceID,
		threshold:   cfg.BowlEmptyThresholdGrams,
		cooldown:    cooldown,
		now:         time.Now,
		lastAlertAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Listener returns the bridge listener that evaluates alert conditions.
func (n *Notifier) Listener() bridge.Listener {
	return func(msg bridge.Message) error {
		if msg.Decoded == nil {
			return nil
		}
		switch msg.Channel {
		case bridge.ChannelLoadcell:
			weight, ok := msg.Decoded["weight_g"].(float64)
			if !ok {
				return nil
			}
			return n.handleWeight(weight)
		case bridge.ChannelLimitSwitch:
			pressed, ok := truthy(msg.Decoded["pressed"])
			if !ok {
				return nil
			}
			return n.handleLimitSwitch(pressed)
		default:
			return nil
		}
	}
}

// truthy interprets the firmware's limit-switch value, which has been
// sent both as a bool and as 0/1.
func truthy(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	default:
		return false, false
	}
}

// handleWeight tracks the empty/full transition and fires the alert on
// the falling edge.
func (n *Notifier) handleWeight(weight float64) error {
	empty := weight < n.threshold

	n.mu.Lock()
	wasEmpty := n.bowlEmpty
	n.bowlEmpty = empty

	if !empty || wasEmpty {
		n.mu.Unlock()
		return nil
	}

	now := n.now()
	if last, ok := n.lastAlertAt[alertBowlEmpty]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		n.logger.Debug("bowl empty alert suppressed by cooldown", "weight_g", weight)
		return nil
	}
	n.lastAlertAt[alertBowlEmpty] = now
	n.mu.Unlock()

	text := fmt.Sprintf("🐾 %s: bowl is likely empty (%.1fg left). Time for a refill!", n.deviceID, weight)
	if err := n.sender.Send(text); err != nil {
		return fmt.Errorf("bowl empty alert: %w", err)
	}

	n.logger.Info("bowl empty alert sent", "weight_g", weight)
	return nil
}

// handleLimitSwitch fires the begging alert when the pet presses the
// lid switch. Only the rising edge alerts; a held switch stays quiet.
func (n *Notifier) handleLimitSwitch(pressed bool) error {
	n.mu.Lock()
	wasPressed := n.lidPressed
	n.lidPressed = pressed

	if !pressed || wasPressed {
		n.mu.Unlock()
		return nil
	}

	now := n.now()
	if last, ok := n.lastAlertAt[alertBegging]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		n.logger.Debug("begging alert suppressed by cooldown")
		return nil
	}
	n.lastAlertAt[alertBegging] = now
	n.mu.Unlock()

	text := fmt.Sprintf("🐾 %s: someone is pressing the feeder lid. Begging detected!", n.deviceID)
	if err := n.sender.Send(text); err != nil {
		return fmt.Errorf("begging alert: %w", err)
	}

	n.logger.Info("begging alert sent")
	return nil
}
