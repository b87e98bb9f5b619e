package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
)

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "nomnom-test",
		},
		QoS:       1,
		KeepAlive: 90,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name   string
		broker config.MQTTBrokerConfig
		want   string
	}{
		{
			name:   "explicit url wins",
			broker: config.MQTTBrokerConfig{URL: "wss://broker.hivemq.com:8884/mqtt", Host: "ignored", Port: 1883},
			want:   "wss://broker.hivemq.com:8884/mqtt",
		},
		{
			name:   "plain tcp",
			broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883},
			want:   "tcp://localhost:1883",
		},
		{
			name:   "tls",
			broker: config.MQTTBrokerConfig{Host: "localhost", Port: 8883, TLS: true},
			want:   "ssl://localhost:8883",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := brokerURL(tt.broker); got != tt.want {
				t.Errorf("brokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	opts := buildClientOptions(cfg)

	if opts.ClientID != "nomnom-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "nomnom-test")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
	if opts.KeepAlive != int64((90 * time.Second).Seconds()) {
		t.Errorf("KeepAlive = %v, want 90s", opts.KeepAlive)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want [tcp://localhost:1883]", opts.Servers)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("{}"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("/t", []byte("{}"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("/t", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish oversized payload error = %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("/t", []byte("{}"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("/t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("/t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("/t", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe while disconnected error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", c.SubscriptionCount())
	}
}

func TestWrapHandler_PanicRecovery(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})

	// Must not panic
	wrapped(nil, &fakeMessage{topic: "/23CLC03/NomNom/loadcell", payload: []byte("{}")})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("expected 1 error log after panic, got %d", len(logger.errors))
	}
}

func TestWrapHandler_ErrorLogged(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		return errors.New("decode failed")
	})

	wrapped(nil, &fakeMessage{topic: "/23CLC03/NomNom/humid", payload: []byte("not json")})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("expected 1 warn log for handler error, got %d", len(logger.warns))
	}
}

func TestCallbacks(t *testing.T) {
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}

	var connected, disconnected bool
	c.SetOnConnect(func() { connected = true })
	c.SetOnDisconnect(func(error) { disconnected = true })

	c.callbackMu.RLock()
	onConnect, onDisconnect := c.onConnect, c.onDisconnect
	c.callbackMu.RUnlock()

	onConnect()
	onDisconnect(errors.New("gone"))

	if !connected || !disconnected {
		t.Error("callbacks were not stored correctly")
	}
}
