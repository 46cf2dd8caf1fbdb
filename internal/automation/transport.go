package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/mqtt"
)

// commandQoS is at-least-once; adapters dedupe on the command id.
const commandQoS = 1

// DeviceCommand is what a DEVICE_COMMAND step sends to a device.
type DeviceCommand struct {
	ID          string         `json:"id"`
	DeviceID    string         `json:"deviceId"`
	Command     string         `json:"command"`
	Params      map[string]any `json:"params,omitempty"`
	RoutineID   string         `json:"routineId,omitempty"`
	StepID      string         `json:"stepId,omitempty"`
	RequestedBy string         `json:"requestedBy,omitempty"`
	IssuedAt    time.Time      `json:"issuedAt"`
}

// CommandReceipt is the transport's acknowledgement of a dispatched command.
type CommandReceipt struct {
	CommandID   string    `json:"commandId"`
	Topic       string    `json:"topic"`
	PublishedAt time.Time `json:"publishedAt"`
}

// DeviceTransport delivers commands to devices. An error becomes a failed
// step carrying the error text.
type DeviceTransport interface {
	DispatchDeviceCommand(ctx context.Context, deviceID string, cmd DeviceCommand) (*CommandReceipt, error)
}

// MQTTClient is the interface for publishing to the broker. *mqtt.Client
// satisfies it.
type MQTTClient interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
}

// MQTTTransport publishes device commands on synexa/command/{deviceId}.
type MQTTTransport struct {
	client MQTTClient
	topics mqtt.Topics
	now    func() time.Time
}

// NewMQTTTransport creates a transport over client.
func NewMQTTTransport(client MQTTClient) *MQTTTransport {
	return &MQTTTransport{client: client, now: time.Now}
}

// DispatchDeviceCommand implements DeviceTransport. It returns once the
// broker acknowledged the publish or ctx is done, whichever comes first.
func (t *MQTTTransport) DispatchDeviceCommand(ctx context.Context, deviceID string, cmd DeviceCommand) (*CommandReceipt, error) {
	if t.client == nil {
		return nil, fmt.Errorf("device transport: %w", mqtt.ErrNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cmd.ID == "" {
		cmd.ID = GenerateID()
	}
	cmd.DeviceID = deviceID
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = t.now().UTC()
	}
	topic := t.topics.Command(deviceID)

	done := make(chan error, 1)
	go func() {
		done <- t.client.PublishJSON(topic, cmd, commandQoS, false)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("publishing to %q: %w", topic, err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("publishing to %q: %w", topic, ctx.Err())
	}

	return &CommandReceipt{
		CommandID:   cmd.ID,
		Topic:       topic,
		PublishedAt: t.now().UTC(),
	}, nil
}
