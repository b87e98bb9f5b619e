package bridge

// Listener receives every routed telemetry message. Listeners run on
// their own goroutine per message; a returned error is logged and a
// panic is recovered, neither affects routing or other listeners.
type Listener func(msg Message) error

// Register adds a listener and returns a function that removes it.
// Safe to call concurrently with message routing.
func (b *Bridge) Register(listener Listener) (unregister func()) {
	b.listenerMu.Lock()
	id := b.nextListenerID
	b.nextListenerID++
	b.listeners[id] = listener
	b.listenerMu.Unlock()

	return func() {
		b.listenerMu.Lock()
		delete(b.listeners, id)
		b.listenerMu.Unlock()
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Bridge) ListenerCount() int {
	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	return len(b.listeners)
}

// notify fans a message out to all listeners, fire and forget.
// Each listener gets its own copy of the message.
func (b *Bridge) notify(msg Message) {
	b.listenerMu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.listenerMu.RUnlock()

	for _, listener := range listeners {
		go b.runListener(listener, copyMessage(msg))
	}
}

// runListener invokes one listener with panic recovery and error logging.
func (b *Bridge) runListener(listener Listener, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("telemetry listener panic recovered",
				"channel", msg.Channel,
				"panic", r,
			)
		}
	}()

	if err := listener(msg); err != nil {
		b.logger.Warn("telemetry listener returned error",
			"channel", msg.Channel,
			"error", err,
		)
	}
}
