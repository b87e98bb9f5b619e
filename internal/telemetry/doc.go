// Package telemetry consumes the bridge's message stream.
//
// Everything here hangs off bridge listeners: the archiver writes every
// routed message to the SQLite archive, the metrics recorder forwards
// numeric readings to InfluxDB, and the notifier raises Telegram alerts
// on low-bowl conditions. Each consumer is independent; a failure in
// one never affects the others or message routing itself.
package telemetry
