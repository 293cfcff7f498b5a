package mqtt

import (
	"fmt"
)

// Subscribe requests delivery of messages matching topic.
//
// Messages are queued and delivered through the on-message callback by the
// delivery goroutine. Subscriptions are not tracked here: paho is run with a
// clean session and the broker core re-subscribes after every connect.
//
// Parameters:
//   - topic: The topic filter to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (t *Transport) Subscribe(topic string, qos byte) error {
	if err := validateSubscribeTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client := t.currentClient()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, qos, t.handleMessage)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}
