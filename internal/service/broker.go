package service

import (
	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/mqtt"
)

// NewBroker builds a paho-backed transport for cfg and a Broker on top of it.
//
// Parameters:
//   - cfg: MQTT section of the configuration
//   - logger: Shared service logger
//   - metrics: Broker collectors; may be nil
//   - handlers: Registered in order before any connection is made
//
// Returns:
//   - *broker.Broker: Ready for Connect
//   - error: If the broker cannot be constructed
func NewBroker(cfg config.MQTTConfig, logger *logging.Logger, metrics *broker.Metrics, handlers ...broker.Handler) (*broker.Broker, error) {
	return newBroker(cfg, mqtt.New(cfg, logger), logger, metrics, handlers)
}

func newBroker(cfg config.MQTTConfig, transport broker.Transport, logger *logging.Logger, metrics *broker.Metrics, handlers []broker.Handler) (*broker.Broker, error) {
	return broker.New(broker.Deps{
		Config:    cfg,
		Transport: transport,
		Handlers:  handlers,
		Logger:    logger,
		Metrics:   metrics,
	})
}
