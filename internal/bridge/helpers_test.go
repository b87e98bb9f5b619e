package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/mqtt"
)

// publishRecord captures one Publish call on the fake connection.
type publishRecord struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeConn is an in-memory Conn for tests. It records publishes and
// stores subscription handlers so tests can inject inbound messages.
type fakeConn struct {
	mu           sync.Mutex
	connected    bool
	closed       bool
	subs         map[string]mqtt.MessageHandler
	published    []publishRecord
	publishErr   error
	subscribeErr error
	onConnect    func()
	onDisconnect func(error)
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		connected: true,
		subs:      make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeConn) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishRecord{
		topic:    topic,
		payload:  append([]byte(nil), payload...),
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (f *fakeConn) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subs[topic] = handler
	return nil
}

func (f *fakeConn) SetOnConnect(callback func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = callback
}

func (f *fakeConn) SetOnDisconnect(callback func(err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = callback
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	return nil
}

func (f *fakeConn) disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeConn) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeConn) lastPublished(t *testing.T) publishRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		t.Fatal("no messages published")
	}
	return f.published[len(f.published)-1]
}

func (f *fakeConn) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.subs))
	for topic := range f.subs {
		topics = append(topics, topic)
	}
	return topics
}

// fakeClock is a settable time source for freshness tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Feeder: config.FeederConfig{
			DeviceID:                    "NomNom-01",
			BaseTopic:                   "/23CLC03/NomNom",
			BowlEmptyThresholdGrams:     5,
			LimitSwitchFreshnessSeconds: 10,
		},
		MQTT: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nomnom-test",
			},
			QoS: 1,
		},
	}
}

// newTestBridge creates a bridge wired to a fresh fakeConn per dial.
// dialCount tracks how many times dial ran.
func newTestBridge(t *testing.T, opts ...Option) (*Bridge, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	all := append([]Option{
		WithDial(func(config.MQTTConfig) (Conn, error) {
			return conn, nil
		}),
	}, opts...)
	b := New(testConfig(), logging.Default(), all...)
	return b, conn
}
