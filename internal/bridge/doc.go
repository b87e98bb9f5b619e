// Package bridge implements the feeder telemetry and command bridge.
//
// The bridge is the single point of contact between NomNom Core and the
// feeder firmware's MQTT namespace. It maintains one lazily-established
// broker connection, folds inbound telemetry into a rolling summary,
// fans messages out to registered listeners, and publishes feed commands.
//
// # Connection Lifecycle
//
// The bridge does not connect at construction. EnsureConnected dials the
// broker on first use; concurrent callers share a single in-flight
// attempt. If the underlying client dies, the next EnsureConnected call
// discards it and dials a fresh one. Reconnects within a live client are
// handled transparently by the mqtt package.
//
// # Telemetry Folding
//
// Each inbound message updates the per-channel latest-message table and
// the summary via last-write-wins semantics. Messages whose payloads
// fail to decode still bump timestamps and raw state; decode errors are
// logged and never propagate to callers.
//
// # Freshness
//
// The limit switch only reports pressed while messages are fresh. No
// timers run: staleness is evaluated when a snapshot is taken, by
// comparing the last limit-switch message age against the configured
// window.
//
// # Listeners
//
// Listeners receive every routed telemetry message on their own
// goroutine. A panicking or failing listener is logged and never affects
// other listeners or message routing.
package bridge
