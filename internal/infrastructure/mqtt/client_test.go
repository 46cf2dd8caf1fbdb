package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
)

// testConfig returns a configuration for a local Mosquitto at 127.0.0.1:1883.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping the test when none is listening.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker on 127.0.0.1:1883")
	}
	conn.Close() //nolint:errcheck // Probe only

	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// ─── Without a broker ────────────────────────────────────────────────

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Command", topics.Command("wled-192.168.1.20-80"), "synexa/command/wled-192.168.1.20-80"},
		{"DeviceState", topics.DeviceState("ble-Thermo"), "synexa/state/ble-Thermo"},
		{"Event", topics.Event("routine.executed"), "synexa/event/routine.executed"},
		{"SystemStatus", topics.SystemStatus(), "synexa/system/status"},
		{"AllDeviceStates", topics.AllDeviceStates(), "synexa/state/+"},
		{"AllEvents", topics.AllEvents(), "synexa/event/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("synexa-core")
	cfg.Auth = config.MQTTAuthConfig{Username: "core", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "synexa-core" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "synexa-core")
	}
	if opts.Username != "core" {
		t.Errorf("Username = %q, want %q", opts.Username, "core")
	}
	if !opts.WillEnabled || opts.WillTopic != "synexa/system/status" || !opts.WillRetained {
		t.Errorf("will = (%v, %q, retained=%v), want enabled on synexa/system/status retained",
			opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if !strings.HasPrefix(opts.Servers[0].String(), "ssl://") {
		t.Errorf("TLS broker = %v, want ssl:// scheme", opts.Servers[0])
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var got statusPayload
	if err := json.Unmarshal(buildStatusPayload("offline", "synexa-core", "graceful_shutdown"), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Status != "offline" || got.ClientID != "synexa-core" || got.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", got.Timestamp, err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"invalid qos", "synexa/command/x", 3, nil, ErrInvalidQoS},
		{"oversized payload", "synexa/command/x", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "synexa/command/x", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_UnencodableValue(t *testing.T) {
	client := &Client{}
	err := client.PublishJSON("synexa/command/x", map[string]any{"ch": make(chan int)}, 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("synexa/state/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("synexa/state/+", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// ─── Against a local broker ──────────────────────────────────────────

func TestPublishSubscribeRoundtrip(t *testing.T) {
	pub := connectOrSkip(t, "synexa-test-pub")
	sub := connectOrSkip(t, "synexa-test-sub")

	topic := Topics{}.DeviceState("test-roundtrip")
	received := make(chan []byte, 1)

	if err := sub.Subscribe(Topics{}.AllDeviceStates(), 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(Topics{}.AllDeviceStates()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishJSON(topic, map[string]bool{"on": true}, 1, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"on":true}` {
			t.Errorf("payload = %s, want {\"on\":true}", payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}

	if err := sub.Unsubscribe(Topics{}.AllDeviceStates()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Unsubscribe, want 0", sub.SubscriptionCount())
	}
}

func TestHandlerErrorIsLogged(t *testing.T) {
	client := connectOrSkip(t, "synexa-test-handler-err")
	logger := &mockLogger{}
	client.SetLogger(logger)

	topic := Topics{}.Event("test.handler-error")
	called := make(chan struct{}, 1)

	if err := client.Subscribe(topic, 1, func(string, []byte) error {
		called <- struct{}{}
		return errors.New("handler error")
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := client.Publish(topic, []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && logger.warnCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if logger.warnCount() == 0 {
		t.Error("handler error was not logged")
	}
}

type mockLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *mockLogger) Error(string, ...any) {}

func (l *mockLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}
