package bridge

// Snapshot returns a deep-copied view of the current telemetry state.
//
// Freshness is applied at read time: if the summary says the limit
// switch is pressed but the last limit-switch message is older than the
// configured window, the snapshot reports it as not pressed, and a
// switch that has never reported at all is also not pressed. The stored
// summary is left untouched so a late message still folds correctly.
func (b *Bridge) Snapshot() Snapshot {
	connected := b.Connected()

	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	snap := Snapshot{
		Summary: copySummary(b.summary),
		Connection: ConnectionState{
			Connected: connected,
		},
		Topics: make(map[Channel]TopicState, len(b.latest)),
	}

	if !b.lastConnectedAt.IsZero() {
		t := b.lastConnectedAt
		snap.Connection.LastConnectedAt = &t
	}
	if !b.lastMessageAt.IsZero() {
		t := b.lastMessageAt
		snap.Connection.LastMessageAt = &t
	}

	for channel, msg := range b.latest {
		snap.Topics[channel] = TopicState{
			Topic:      msg.Topic,
			Raw:        msg.Raw,
			ReceivedAt: msg.ReceivedAt,
			Parsed:     copyDecoded(msg.Decoded),
		}
	}

	if snap.Summary.LimitSwitchPressed != nil && *snap.Summary.LimitSwitchPressed {
		age := b.now().Sub(b.lastLimitSwitchAt)
		if age > b.cfg.LimitSwitchFreshness() {
			stale := false
			snap.Summary.LimitSwitchPressed = &stale
		}
	}
	if snap.Summary.LimitSwitchPressed == nil {
		// Never reported counts as not pressed, same as stale.
		notPressed := false
		snap.Summary.LimitSwitchPressed = &notPressed
	}

	return snap
}
