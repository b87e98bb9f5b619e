package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/mqtt"
)

// Conn is the subset of the mqtt client the bridge depends on.
// *mqtt.Client satisfies it; tests substitute a fake.
type Conn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	IsConnected() bool
	Close() error
}

// DialFunc establishes a broker connection. The default dials via
// mqtt.Connect; tests inject fakes.
type DialFunc func(cfg config.MQTTConfig) (Conn, error)

// connectAttempt is a single in-flight connection attempt shared by all
// concurrent EnsureConnected callers. err is written before done closes.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Bridge owns the feeder's broker connection and telemetry state.
type Bridge struct {
	cfg    *config.Config
	topics TopicSet
	logger *logging.Logger
	dial   DialFunc
	now    func() time.Time

	// connMu guards the connection state machine.
	connMu  sync.Mutex
	conn    Conn
	attempt *connectAttempt

	// stateMu guards the folded telemetry state. Single writer: the
	// inbound handler; snapshot readers take copies.
	stateMu           sync.RWMutex
	summary           Summary
	latest            map[Channel]Message
	lastConnectedAt   time.Time
	lastMessageAt     time.Time
	lastLimitSwitchAt time.Time

	// listenerMu guards the listener registry.
	listenerMu     sync.RWMutex
	listeners      map[int]Listener
	nextListenerID int
}

// Option configures optional Bridge behaviour.
type Option func(*Bridge)

// WithDial overrides how the bridge establishes broker connections.
func WithDial(dial DialFunc) Option {
	return func(b *Bridge) { b.dial = dial }
}

// WithClock overrides the bridge's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a Bridge. No broker connection is made until the first
// EnsureConnected call.
//
// Parameters:
//   - cfg: Full application configuration (feeder + mqtt sections used)
//   - logger: Structured logger
//   - opts: Optional overrides (dial, clock)
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:       cfg,
		topics:    NewTopicSet(cfg.Feeder.BaseTopic),
		logger:    logger.With("component", "bridge"),
		now:       time.Now,
		latest:    make(map[Channel]Message),
		listeners: make(map[int]Listener),
	}
	b.dial = func(mc config.MQTTConfig) (Conn, error) {
		client, err := mqtt.Connect(mc)
		if err != nil {
			return nil, err
		}
		client.SetLogger(b.logger)
		return client, nil
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Topics returns the bridge's topic table.
func (b *Bridge) Topics() TopicSet { return b.topics }

// EnsureConnected returns once the bridge has a live broker connection.
//
// Behaviour:
//   - Already connected: returns nil immediately.
//   - Attempt in flight: blocks until that attempt resolves and returns
//     its result. No second dial is started.
//   - Otherwise: discards any dead client and dials a fresh one. On
//     success all telemetry topics are subscribed before returning.
//
// The context only bounds waiting on a shared attempt; an attempt this
// call starts runs to completion so later callers can reuse its result.
func (b *Bridge) EnsureConnected(ctx context.Context) error {
	b.connMu.Lock()
	if b.conn != nil && b.conn.IsConnected() {
		b.connMu.Unlock()
		return nil
	}
	if b.attempt != nil {
		attempt := b.attempt
		b.connMu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	attempt := &connectAttempt{done: make(chan struct{})}
	b.attempt = attempt
	stale := b.conn
	b.conn = nil
	b.connMu.Unlock()

	conn, err := b.openConn(stale)

	b.connMu.Lock()
	if err == nil {
		b.conn = conn
	}
	b.attempt = nil
	b.connMu.Unlock()

	attempt.err = err
	close(attempt.done)
	return err
}

// openConn discards a dead client, dials a fresh one, and subscribes to
// all telemetry topics.
func (b *Bridge) openConn(stale Conn) (Conn, error) {
	if stale != nil {
		b.logger.Warn("discarding dead MQTT client before reconnect")
		stale.Close() //nolint:errcheck // Best effort teardown of a dead client
	}

	conn, err := b.dial(b.cfg.MQTT)
	if err != nil {
		b.logger.Error("broker connect failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	conn.SetOnConnect(func() {
		b.stateMu.Lock()
		b.lastConnectedAt = b.now()
		b.stateMu.Unlock()
		b.logger.Info("broker connection established")
	})
	conn.SetOnDisconnect(func(err error) {
		b.logger.Warn("broker connection lost", "error", err)
	})

	qos := byte(b.cfg.MQTT.QoS)
	for _, topic := range b.topics.Subscriptions() {
		if err := conn.Subscribe(topic, qos, b.handleInbound); err != nil {
			// A failed topic degrades that channel only; the
			// connection stays usable for the rest.
			b.logger.Error("telemetry subscribe failed", "topic", topic, "error", err)
		}
	}

	b.stateMu.Lock()
	b.lastConnectedAt = b.now()
	b.stateMu.Unlock()

	b.logger.Info("connected to broker",
		"client_id", b.cfg.MQTT.Broker.ClientID,
		"base_topic", b.topics.Base(),
	)
	return conn, nil
}

// Connected reports whether the bridge currently holds a live connection.
func (b *Bridge) Connected() bool {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

// HealthCheck verifies broker connectivity for the health endpoint.
func (b *Bridge) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("bridge health check: %w", ctx.Err())
	default:
	}
	if !b.Connected() {
		return ErrNotConnected
	}
	return nil
}

// Close tears down the broker connection if one exists.
func (b *Bridge) Close() error {
	b.connMu.Lock()
	conn := b.conn
	b.conn = nil
	b.connMu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// currentConn returns the live connection or ErrNotConnected.
func (b *Bridge) currentConn() (Conn, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return nil, ErrNotConnected
	}
	return b.conn, nil
}
