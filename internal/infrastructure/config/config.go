package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recognised topic roles. Any other role is subscribed but not interpreted.
const (
	RoleStatus           = "status"
	RoleRecordingControl = "recording_control"
)

// Config is the root configuration structure for the broker service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Journal   JournalConfig   `yaml:"journal"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
}

// MQTTConfig contains the broker connection settings and the named-topic mapping.
//
// The flat key layout (broker_host, broker_port, ...) matches the configuration
// dictionaries consumed by existing deployments.
type MQTTConfig struct {
	BrokerHost string `yaml:"broker_host"`
	BrokerPort int    `yaml:"broker_port"`
	ClientID   string `yaml:"client_id"`

	// Keepalive is the MQTT keepalive interval in seconds.
	Keepalive int `yaml:"keepalive"`

	// Topics maps a logical role (e.g. "status") to a concrete topic string.
	Topics map[string]string `yaml:"topics"`

	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ConnectTimeout bounds the blocking connect call, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// SubscribeQoS is the QoS requested for every subscription.
	SubscribeQoS int `yaml:"subscribe_qos"`

	// StatusInterval publishes a status snapshot every N seconds. 0 publishes only on connect.
	StatusInterval int `yaml:"status_interval"`
}

// Topic returns the topic configured for role.
func (c MQTTConfig) Topic(role string) (string, bool) {
	topic, ok := c.Topics[role]
	if !ok || topic == "" {
		return "", false
	}
	return topic, true
}

// Address returns host:port of the broker.
func (c MQTTConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.BrokerHost, c.BrokerPort)
}

// KeepaliveDuration returns the keepalive interval as a Duration.
func (c MQTTConfig) KeepaliveDuration() time.Duration {
	return time.Duration(c.Keepalive) * time.Second
}

// ConnectTimeoutDuration returns the connect timeout as a Duration.
func (c MQTTConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// StatusIntervalDuration returns the periodic status interval as a Duration.
func (c MQTTConfig) StatusIntervalDuration() time.Duration {
	return time.Duration(c.StatusInterval) * time.Second
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live message stream settings.
type WebSocketConfig struct {
	Path           string   `yaml:"path"`
	MaxMessageSize int      `yaml:"max_message_size"`
	PingInterval   int      `yaml:"ping_interval"`
	PongTimeout    int      `yaml:"pong_timeout"`
	Topics         []string `yaml:"topics"`
}

// JournalConfig contains SQLite message journal settings.
type JournalConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Path        string   `yaml:"path"`
	WALMode     bool     `yaml:"wal_mode"`
	BusyTimeout int      `yaml:"busy_timeout"`
	Topics      []string `yaml:"topics"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool     `yaml:"enabled"`
	URL           string   `yaml:"url"`
	Token         string   `yaml:"token"`
	Org           string   `yaml:"org"`
	Bucket        string   `yaml:"bucket"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval int      `yaml:"flush_interval"`
	Topics        []string `yaml:"topics"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// Environment variables take precedence over file values and follow the
// pattern FPBROKER_SECTION_KEY, for example FPBROKER_MQTT_HOST.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			BrokerHost:     "localhost",
			BrokerPort:     1883,
			ClientID:       "mqtt_client",
			Keepalive:      60,
			Topics:         map[string]string{},
			ConnectTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
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
			Path:           "/api/v1/stream",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Journal: JournalConfig{
			Path:        "./data/journal.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FPBROKER_MQTT_HOST"); v != "" {
		cfg.MQTT.BrokerHost = v
	}
	if v := os.Getenv("FPBROKER_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FPBROKER_MQTT_PORT: %w", err)
		}
		cfg.MQTT.BrokerPort = port
	}
	if v := os.Getenv("FPBROKER_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("FPBROKER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("FPBROKER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("FPBROKER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("FPBROKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent field checks
	var errs []string

	if c.MQTT.BrokerHost == "" {
		errs = append(errs, "mqtt.broker_host is required")
	}
	if c.MQTT.BrokerPort < 1 || c.MQTT.BrokerPort > 65535 {
		errs = append(errs, "mqtt.broker_port must be between 1 and 65535")
	}
	if c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required")
	}
	if c.MQTT.Keepalive < 0 {
		errs = append(errs, "mqtt.keepalive must not be negative")
	}
	if c.MQTT.ConnectTimeout < 1 {
		errs = append(errs, "mqtt.connect_timeout must be at least 1 second")
	}
	if c.MQTT.SubscribeQoS < 0 || c.MQTT.SubscribeQoS > 2 {
		errs = append(errs, "mqtt.subscribe_qos must be 0, 1, or 2")
	}
	if c.MQTT.StatusInterval < 0 {
		errs = append(errs, "mqtt.status_interval must not be negative")
	}
	for role, topic := range c.MQTT.Topics {
		if topic == "" {
			errs = append(errs, fmt.Sprintf("mqtt.topics.%s must not be empty", role))
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
