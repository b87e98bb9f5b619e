package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for NomNom Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Feeder        FeederConfig        `yaml:"feeder"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Database      DatabaseConfig      `yaml:"database"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// FeederConfig contains feeder device and telemetry-derivation settings.
type FeederConfig struct {
	// DeviceID identifies the physical feeder in archived telemetry and alerts.
	DeviceID string `yaml:"device_id"`

	// BaseTopic is the MQTT topic prefix shared with the device firmware.
	// All telemetry and command topics hang off this path.
	BaseTopic string `yaml:"base_topic"`

	// BowlEmptyThresholdGrams is the load-cell reading below which the bowl
	// is considered likely empty.
	BowlEmptyThresholdGrams float64 `yaml:"bowl_empty_threshold_grams"`

	// LimitSwitchFreshnessSeconds is the maximum age of the last limit-switch
	// message for the pressed state to still be reported. Older readings are
	// reported as not pressed.
	LimitSwitchFreshnessSeconds int `yaml:"limit_switch_freshness_seconds"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keepalive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
// If URL is set it takes precedence over Host/Port/TLS.
type MQTTBrokerConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings for the telemetry archive.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// NotificationsConfig contains outbound alert channel settings.
type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig contains Telegram bot alert settings.
type TelegramConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BotToken        string `yaml:"bot_token"`
	ChatID          int64  `yaml:"chat_id"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NOMNOM_SECTION_KEY
// For example: NOMNOM_MQTT_HOST, NOMNOM_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The feeder defaults match the NomNom firmware's topic base and the
// thresholds the device was calibrated against.
func defaultConfig() *Config {
	return &Config{
		Feeder: FeederConfig{
			DeviceID:                    "NomNom-01",
			BaseTopic:                   "/23CLC03/NomNom",
			BowlEmptyThresholdGrams:     5,
			LimitSwitchFreshnessSeconds: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "broker.hivemq.com",
				Port:     1883,
				ClientID: "nomnom-core",
			},
			QoS:       1,
			KeepAlive: 90,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/nomnom.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Notifications: NotificationsConfig{
			Telegram: TelegramConfig{
				CooldownSeconds: 300,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NOMNOM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Feeder
	if v := os.Getenv("NOMNOM_FEEDER_BASE_TOPIC"); v != "" {
		cfg.Feeder.BaseTopic = v
	}
	if v := os.Getenv("NOMNOM_FEEDER_DEVICE_ID"); v != "" {
		cfg.Feeder.DeviceID = v
	}

	// MQTT
	if v := os.Getenv("NOMNOM_MQTT_URL"); v != "" {
		cfg.MQTT.Broker.URL = v
	}
	if v := os.Getenv("NOMNOM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NOMNOM_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("NOMNOM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NOMNOM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NOMNOM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NOMNOM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("NOMNOM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("NOMNOM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Telegram
	if v := os.Getenv("NOMNOM_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("NOMNOM_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notifications.Telegram.ChatID = id
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Feeder validation
	if c.Feeder.BaseTopic == "" {
		errs = append(errs, "feeder.base_topic is required")
	}
	if strings.HasSuffix(c.Feeder.BaseTopic, "/") {
		errs = append(errs, "feeder.base_topic must not end with a slash")
	}
	if c.Feeder.BowlEmptyThresholdGrams <= 0 {
		errs = append(errs, "feeder.bowl_empty_threshold_grams must be positive")
	}
	if c.Feeder.LimitSwitchFreshnessSeconds <= 0 {
		errs = append(errs, "feeder.limit_switch_freshness_seconds must be positive")
	}

	// MQTT validation
	if c.MQTT.Broker.URL == "" && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.url or mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Telegram validation (only when enabled)
	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" {
			errs = append(errs, "notifications.telegram.bot_token is required when telegram is enabled (set NOMNOM_TELEGRAM_BOT_TOKEN)")
		}
		if c.Notifications.Telegram.ChatID == 0 {
			errs = append(errs, "notifications.telegram.chat_id is required when telegram is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerURL returns the broker URL the MQTT client should dial.
// An explicit mqtt.broker.url wins; otherwise the URL is assembled from
// the scheme (tcp or ssl), host, and port.
func (c *Config) BrokerURL() string {
	if c.MQTT.Broker.URL != "" {
		return c.MQTT.Broker.URL
	}
	scheme := "tcp"
	if c.MQTT.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// LimitSwitchFreshness returns the limit-switch freshness window as a Duration.
func (c *Config) LimitSwitchFreshness() time.Duration {
	return time.Duration(c.Feeder.LimitSwitchFreshnessSeconds) * time.Second
}

// TelegramCooldown returns the per-alert cooldown as a Duration.
func (c *Config) TelegramCooldown() time.Duration {
	return time.Duration(c.Notifications.Telegram.CooldownSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
