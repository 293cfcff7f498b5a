package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultOperationTimeout is the maximum time to wait for publish and subscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultQueueSize is how many undelivered messages may queue before paho blocks.
	defaultQueueSize = 256

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL builds the paho broker URL for host:port.
func brokerURL(host string, port int, useTLS bool) string {
	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// buildClientOptions creates paho MQTT options for one connection target.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and authentication credentials (if provided)
//   - Keepalive and connect timeout
//   - Clean session mode
//   - TLS configuration (if enabled)
//
// Paho's own reconnect and connect-retry loops are disabled; the broker core
// decides when to reconnect.
func buildClientOptions(cfg config.MQTTConfig, host string, port int, keepalive time.Duration) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(host, port, cfg.TLS))
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	if timeout := cfg.ConnectTimeoutDuration(); timeout > 0 {
		opts.SetConnectTimeout(timeout)
	}
	if keepalive > 0 {
		opts.SetKeepAlive(keepalive)
	}

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
