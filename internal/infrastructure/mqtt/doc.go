// Package mqtt provides MQTT broker connectivity for NomNom Core.
//
// It wraps the eclipse/paho.mqtt.golang library with NomNom-specific
// patterns for connection management, publishing, and subscriptions.
//
// # Purpose
//
// The feeder firmware speaks plain MQTT over a public broker. This package
// is the only place that touches the paho library directly; the bridge
// package builds feeder semantics (telemetry folding, commands) on top.
//
// # Features
//
//   - Auto-reconnect with exponential backoff
//   - Automatic re-subscription after reconnect
//   - Panic recovery in message handlers
//   - Publish/subscribe acknowledgment timeouts
//   - TLS support with modern cipher requirements
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Subscribe("/23CLC03/NomNom/loadcell", 1, func(topic string, payload []byte) error {
//	    fmt.Printf("%s: %s\n", topic, payload)
//	    return nil
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Message handlers are invoked
// from paho's internal goroutines and must not block for long.
package mqtt
