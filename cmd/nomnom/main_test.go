package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testConfig renders a minimal valid config pointing at throwaway paths.
// The broker port is unroutable so tests never depend on a live broker.
func testConfig(dbPath string) string {
	return `
feeder:
  device_id: NomNom-Test
  base_topic: "/23CLC03/NomNomTest"
  bowl_empty_threshold_grams: 5
  limit_switch_freshness_seconds: 10

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "nomnom-test"
    tls: false
  qos: 1
  keepalive: 30
  reconnect:
    initial_delay: 1
    max_delay: 5

api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120

websocket:
  path: /api/v1/ws
  max_message_size: 4096
  ping_interval: 30
  pong_timeout: 60

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

influxdb:
  enabled: false

notifications:
  telegram:
    enabled: false

logging:
  level: info
  format: text
  output: stdout
`
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("NOMNOM_CONFIG")
	defer os.Setenv("NOMNOM_CONFIG", originalEnv)

	os.Setenv("NOMNOM_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	content := testConfig("")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("NOMNOM_CONFIG")
	defer os.Setenv("NOMNOM_CONFIG", originalEnv)
	os.Setenv("NOMNOM_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("NOMNOM_CONFIG")
	defer os.Setenv("NOMNOM_CONFIG", originalEnv)

	os.Unsetenv("NOMNOM_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("NOMNOM_CONFIG")
	defer os.Setenv("NOMNOM_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("NOMNOM_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the full startup sequence against an
// unreachable broker. The lazy bridge makes broker absence non-fatal, so
// run should come up, wait for the context, and shut down cleanly.
func TestRun_StartupAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow startup test in short mode")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	if err := os.WriteFile(configPath, []byte(testConfig(dbPath)), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("NOMNOM_CONFIG")
	defer os.Setenv("NOMNOM_CONFIG", originalEnv)
	os.Setenv("NOMNOM_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want clean shutdown", err)
	}

	// The database file should exist after a successful startup.
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
