package automation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/mqtt"
)

type publishCall struct {
	topic    string
	payload  any
	qos      byte
	retained bool
}

type fakeMQTT struct {
	calls []publishCall
	err   error
	delay time.Duration
	mu    sync.Mutex
}

func (f *fakeMQTT) PublishJSON(topic string, v any, qos byte, retained bool) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic, v, qos, retained})
	return f.err
}

func TestMQTTTransport_Dispatch(t *testing.T) {
	client := &fakeMQTT{}
	transport := NewMQTTTransport(client)

	receipt, err := transport.DispatchDeviceCommand(context.Background(), "lamp-1", DeviceCommand{
		Command:   "turn_on",
		Params:    map[string]any{"brightness": 80},
		RoutineID: "r1",
	})
	if err != nil {
		t.Fatalf("DispatchDeviceCommand() error = %v", err)
	}

	if receipt.Topic != "synexa/command/lamp-1" {
		t.Errorf("Topic = %q", receipt.Topic)
	}
	if receipt.CommandID == "" || receipt.PublishedAt.IsZero() {
		t.Errorf("receipt = %+v, want id and timestamp", receipt)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 1 {
		t.Fatalf("publishes = %d, want 1", len(client.calls))
	}
	call := client.calls[0]
	if call.qos != 1 || call.retained {
		t.Errorf("qos = %d retained = %v, want 1/false", call.qos, call.retained)
	}
	cmd, ok := call.payload.(DeviceCommand)
	if !ok {
		t.Fatalf("payload type = %T", call.payload)
	}
	if cmd.DeviceID != "lamp-1" || cmd.ID != receipt.CommandID || cmd.IssuedAt.IsZero() {
		t.Errorf("command = %+v", cmd)
	}
}

func TestMQTTTransport_PublishError(t *testing.T) {
	transport := NewMQTTTransport(&fakeMQTT{err: mqtt.ErrNotConnected})

	_, err := transport.DispatchDeviceCommand(context.Background(), "lamp-1", DeviceCommand{Command: "turn_on"})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
	if !strings.Contains(err.Error(), "synexa/command/lamp-1") {
		t.Errorf("error %q does not name the topic", err)
	}
}

func TestMQTTTransport_NilClient(t *testing.T) {
	transport := NewMQTTTransport(nil)

	_, err := transport.DispatchDeviceCommand(context.Background(), "lamp-1", DeviceCommand{Command: "turn_on"})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestMQTTTransport_ContextDeadline(t *testing.T) {
	transport := NewMQTTTransport(&fakeMQTT{delay: 500 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := transport.DispatchDeviceCommand(ctx, "lamp-1", DeviceCommand{Command: "turn_on"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Error("dispatch waited for the slow broker")
	}
}
