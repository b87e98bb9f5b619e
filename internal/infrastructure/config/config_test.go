package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
feeder:
  device_id: "NomNom-test"
  base_topic: "/test/NomNom"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Feeder.DeviceID != "NomNom-test" {
		t.Errorf("Feeder.DeviceID = %q, want %q", cfg.Feeder.DeviceID, "NomNom-test")
	}
	if cfg.Feeder.BaseTopic != "/test/NomNom" {
		t.Errorf("Feeder.BaseTopic = %q, want %q", cfg.Feeder.BaseTopic, "/test/NomNom")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// A minimal file keeps the firmware-aligned defaults intact.
	cfg, err := Load(writeTestConfig(t, "api:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Feeder.BaseTopic != "/23CLC03/NomNom" {
		t.Errorf("Feeder.BaseTopic = %q, want default %q", cfg.Feeder.BaseTopic, "/23CLC03/NomNom")
	}
	if cfg.Feeder.BowlEmptyThresholdGrams != 5 {
		t.Errorf("BowlEmptyThresholdGrams = %v, want 5", cfg.Feeder.BowlEmptyThresholdGrams)
	}
	if cfg.LimitSwitchFreshness() != 10*time.Second {
		t.Errorf("LimitSwitchFreshness() = %v, want 10s", cfg.LimitSwitchFreshness())
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTestConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
feeder:
  base_topic: ""
mqtt:
  broker:
    host: ""
    url: ""
`
	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "feeder.base_topic") {
		t.Errorf("Load() error = %v, want mention of feeder.base_topic", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOMNOM_MQTT_HOST", "broker.example.com")
	t.Setenv("NOMNOM_MQTT_PORT", "8883")
	t.Setenv("NOMNOM_FEEDER_BASE_TOPIC", "/env/NomNom")

	cfg, err := Load(writeTestConfig(t, "mqtt:\n  broker:\n    host: file-host\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Feeder.BaseTopic != "/env/NomNom" {
		t.Errorf("Feeder.BaseTopic = %q, want env override", cfg.Feeder.BaseTopic)
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name   string
		broker MQTTBrokerConfig
		want   string
	}{
		{
			name:   "explicit URL wins",
			broker: MQTTBrokerConfig{URL: "wss://broker.example.com:443/mqtt", Host: "ignored", Port: 1883},
			want:   "wss://broker.example.com:443/mqtt",
		},
		{
			name:   "plain tcp",
			broker: MQTTBrokerConfig{Host: "localhost", Port: 1883},
			want:   "tcp://localhost:1883",
		},
		{
			name:   "tls",
			broker: MQTTBrokerConfig{Host: "localhost", Port: 8883, TLS: true},
			want:   "ssl://localhost:8883",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.MQTT.Broker = tt.broker
			if got := cfg.BrokerURL(); got != tt.want {
				t.Errorf("BrokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate_QoSRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.QoS = 3
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for QoS 3, got nil")
	}
}

func TestValidate_TelegramRequiresToken(t *testing.T) {
	cfg := defaultConfig()
	cfg.Notifications.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for enabled telegram without token, got nil")
	}
}
