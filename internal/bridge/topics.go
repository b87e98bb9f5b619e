package bridge

// TopicSet builds the feeder's MQTT topic names from the configured
// base topic. The suffixes mirror the firmware's publish/subscribe
// table and must not be changed independently of it.
type TopicSet struct {
	base string
}

// NewTopicSet creates a TopicSet rooted at the given base topic
// (e.g. "/23CLC03/NomNom"). The base must not end with a slash.
func NewTopicSet(base string) TopicSet {
	return TopicSet{base: base}
}

// Base returns the configured base topic.
func (t TopicSet) Base() string { return t.base }

// Loadcell is the bowl weight telemetry topic.
func (t TopicSet) Loadcell() string { return t.base + "/loadcell" }

// Environment is the humidity/temperature telemetry topic.
func (t TopicSet) Environment() string { return t.base + "/humid" }

// TOF is the hopper time-of-flight distance telemetry topic.
func (t TopicSet) TOF() string { return t.base + "/tof" }

// LimitSwitch is the lid limit-switch telemetry topic.
func (t TopicSet) LimitSwitch() string { return t.base + "/ls" }

// MotorStatus is the dispense motor state topic.
func (t TopicSet) MotorStatus() string { return t.base + "/motor/status" }

// Heartbeat is the firmware liveness topic.
func (t TopicSet) Heartbeat() string { return t.base + "/status" }

// ManualFeed is the one-shot dispense command topic.
func (t TopicSet) ManualFeed() string { return t.base + "/motor/manual_feed" }

// AutoFeedConfig is the retained auto-feed schedule topic.
func (t TopicSet) AutoFeedConfig() string { return t.base + "/motor/auto_feed_config" }

// Subscriptions returns every telemetry topic the bridge listens on.
func (t TopicSet) Subscriptions() []string {
	return []string{
		t.Loadcell(),
		t.Environment(),
		t.TOF(),
		t.LimitSwitch(),
		t.MotorStatus(),
		t.Heartbeat(),
	}
}

// TopicFor returns the telemetry topic for a channel.
func (t TopicSet) TopicFor(channel Channel) (string, bool) {
	switch channel {
	case ChannelLoadcell:
		return t.Loadcell(), true
	case ChannelEnvironment:
		return t.Environment(), true
	case ChannelTOF:
		return t.TOF(), true
	case ChannelLimitSwitch:
		return t.LimitSwitch(), true
	case ChannelMotorStatus:
		return t.MotorStatus(), true
	case ChannelHeartbeat:
		return t.Heartbeat(), true
	default:
		return "", false
	}
}

// ChannelFor maps an inbound topic to its telemetry channel.
// Unknown topics return ok=false and are not routed.
func (t TopicSet) ChannelFor(topic string) (Channel, bool) {
	switch topic {
	case t.Loadcell():
		return ChannelLoadcell, true
	case t.Environment():
		return ChannelEnvironment, true
	case t.TOF():
		return ChannelTOF, true
	case t.LimitSwitch():
		return ChannelLimitSwitch, true
	case t.MotorStatus():
		return ChannelMotorStatus, true
	case t.Heartbeat():
		return ChannelHeartbeat, true
	default:
		return "", false
	}
}
