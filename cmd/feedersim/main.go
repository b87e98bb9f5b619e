// NomNom feeder simulator.
//
// Publishes realistic feeder telemetry to the broker and reacts to feed
// commands the way the device firmware would: a manual feed tops the bowl
// up, dispensing runs the motor for a few seconds, and the bowl slowly
// empties as the simulated pet eats. Useful for exercising the full
// bridge pipeline without hardware on the bench.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/mqtt"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	interval   = flag.Duration("interval", 2*time.Second, "Delay between telemetry rounds")
	startGrams = flag.Float64("grams", 60, "Initial bowl weight in grams")
	eatRate    = flag.Float64("eat-rate", 0.8, "Grams eaten per telemetry round")
)

// motorRunTime is how long the simulated motor reports running after a feed.
const motorRunTime = 3 * time.Second

// feederState is the simulated device state. The eating loop and the
// command handlers run on different goroutines.
type feederState struct {
	mu          sync.Mutex
	bowlGrams   float64
	hopperMm    float64
	lidPressed  bool
	motorUntil  time.Time
	dispensed   int
	autoEnabled bool
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, "feedersim").With("component", "feedersim")

	// Simulator connects as the device, so give it its own client ID.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = cfg.MQTT.Broker.ClientID + "-sim"

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close() //nolint:errcheck // Best-effort disconnect on exit
	client.SetLogger(log)

	topics := bridge.NewTopicSet(cfg.Feeder.BaseTopic)
	log.Info("feeder simulator connected",
		"base_topic", cfg.Feeder.BaseTopic,
		"interval", interval.String(),
	)

	state := &feederState{
		bowlGrams: *startGrams,
		hopperMm:  40,
	}

	if err := subscribeCommands(client, topics, state, log); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rounds := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("simulator stopping", "rounds", rounds)
			return nil
		case <-ticker.C:
			publishRound(client, topics, state, log)
			rounds++
		}
	}
}

// subscribeCommands makes the simulator react to feed commands like the
// firmware: dispense on manual feed, acknowledge schedule updates.
func subscribeCommands(client *mqtt.Client, topics bridge.TopicSet, state *feederState, log *logging.Logger) error {
	err := client.Subscribe(topics.ManualFeed(), 1, func(_ string, payload []byte) error {
		var cmd bridge.ManualFeedCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding manual feed command: %w", err)
		}

		state.mu.Lock()
		state.bowlGrams += cmd.Grams
		state.hopperMm += cmd.Grams / 10
		state.motorUntil = time.Now().Add(motorRunTime)
		state.dispensed++
		state.mu.Unlock()

		log.Info("dispensing", "grams", cmd.Grams, "source", cmd.Source)
		return nil
	})
	if err != nil {
		return err
	}

	return client.Subscribe(topics.AutoFeedConfig(), 1, func(_ string, payload []byte) error {
		var cmd bridge.AutoFeedCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding auto feed config: %w", err)
		}

		state.mu.Lock()
		state.autoEnabled = cmd.Enabled
		state.mu.Unlock()

		log.Info("schedule updated",
			"enabled", cmd.Enabled,
			"grams", cmd.Grams,
			"interval_minutes", cmd.IntervalMinutes,
		)
		return nil
	})
}

// publishRound emits one reading on every telemetry topic.
func publishRound(client *mqtt.Client, topics bridge.TopicSet, state *feederState, log *logging.Logger) {
	state.mu.Lock()

	// The pet eats while there is food; sensors carry a little noise.
	if state.bowlGrams > 0 {
		state.bowlGrams -= *eatRate * (0.5 + rand.Float64())
		if state.bowlGrams < 0 {
			state.bowlGrams = 0
		}
	}
	// Lid gets opened for a refill roughly once in fifty rounds.
	state.lidPressed = rand.Float64() < 0.02
	motorRunning := time.Now().Before(state.motorUntil)

	weight := state.bowlGrams + (rand.Float64()-0.5)*0.4
	if weight < 0 {
		weight = 0
	}
	distance := state.hopperMm + (rand.Float64()-0.5)*2
	pressed := state.lidPressed
	state.mu.Unlock()

	readings := []struct {
		topic  string
		fields map[string]any
	}{
		{topics.Loadcell(), map[string]any{"weight_g": round1(weight)}},
		{topics.Environment(), map[string]any{
			"humidity":    round1(60 + (rand.Float64()-0.5)*10),
			"temperature": round1(27 + (rand.Float64()-0.5)*4),
		}},
		{topics.TOF(), map[string]any{"distance": round1(distance)}},
		{topics.LimitSwitch(), map[string]any{"pressed": pressed}},
		{topics.MotorStatus(), map[string]any{"running": motorRunning}},
		{topics.Heartbeat(), map[string]any{
			"status":    "alive",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}},
	}

	for _, r := range readings {
		payload, err := json.Marshal(r.fields)
		if err != nil {
			log.Error("marshalling telemetry", "topic", r.topic, "error", err)
			continue
		}
		if err := client.Publish(r.topic, payload, 0, false); err != nil {
			log.Warn("publish failed", "topic", r.topic, "error", err)
		}
	}

	log.Debug("telemetry round published", "weight_g", round1(weight))
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
