package api

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/undarez/synexa-sub001/internal/automation"
	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
	"github.com/undarez/synexa-sub001/internal/infrastructure/logging"
)

// Event channels a WebSocket session may subscribe to.
const (
	EventDeviceStateChanged = "device.state_changed"
	EventDiscoveryCompleted = "discovery.completed"
)

// eventChannels lists every channel the hub publishes on.
var eventChannels = []string{
	automation.EventRoutineExecuted,
	EventDiscoveryCompleted,
	EventDeviceStateChanged,
}

// Hub fans events out to WebSocket sessions.
//
// Events whose payload carries a "userId" reach only that user's sessions;
// other events reach every session subscribed to the channel.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	mu       sync.RWMutex
	sessions map[*wsSession]struct{}
	closed   bool
	dropped  atomic.Int64
}

// NewHub creates a hub. It satisfies automation.Broadcaster.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[*wsSession]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.sessions {
		close(s.out)
		if s.conn != nil {
			s.conn.Close()
		}
		delete(h.sessions, s)
	}
}

// join registers s. It reports false once Run has shut the hub down.
func (h *Hub) join(s *wsSession) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Debug("websocket session opened", "user_id", s.userID, "sessions", n)
	return true
}

// leave removes s. Only the caller that actually removed it closes s.out,
// so Run and the read loop never double-close.
func (h *Hub) leave(s *wsSession) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()

	if ok {
		close(s.out)
		h.logger.Debug("websocket session closed", "user_id", s.userID, "sessions", n)
	}
}

// Broadcast publishes payload on channel.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := encodeFrame(wsFrame{
		Type:    frameEvent,
		Channel: channel,
		At:      time.Now().UTC().Format(time.RFC3339),
	}, payload)
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}
	owner := payloadOwner(payload)

	h.mu.RLock()
	targets := make([]*wsSession, 0, len(h.sessions))
	for s := range h.sessions {
		if owner != "" && s.userID != owner {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if !s.subscribed(channel) {
			continue
		}
		if s.enqueue(frame) {
			delivered++
		} else {
			h.dropped.Add(1)
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event delivered", "channel", channel, "sessions", delivered)
	}
}

// ClientCount returns the number of open sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Dropped returns how many events were discarded for slow sessions.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// payloadOwner returns the "userId" of a map payload, or "" for events
// visible to every session.
func payloadOwner(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	owner, _ := m["userId"].(string) //nolint:errcheck // non-string means unscoped
	return owner
}

func knownChannel(ch string) bool {
	return slices.Contains(eventChannels, ch)
}

// encodeFrame marshals payload into f and returns the wire bytes.
func encodeFrame(f wsFrame, payload any) ([]byte, error) {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}
