package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/undarez/synexa-sub001/internal/infrastructure/mqtt"
)

// Frame types on /ws.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameEvent       = "event"
	frameAck         = "ack"
	frameError       = "error"
)

// sessionBuffer is the number of frames queued per session before events
// are dropped.
const sessionBuffer = 256

// wsFrame is every JSON frame exchanged on /ws.
type wsFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Channel string          `json:"channel,omitempty"`
	At      string          `json:"at,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// channelList is the payload of subscribe and unsubscribe frames.
type channelList struct {
	Channels []string `json:"channels"`
}

// subscriptionAck answers a subscribe or unsubscribe frame.
type subscriptionAck struct {
	Channels []string `json:"channels"`
	Rejected []string `json:"rejected,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware and the ticket.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsSession is one authenticated WebSocket connection.
type wsSession struct {
	hub    *Hub
	conn   *websocket.Conn
	out    chan []byte
	userID string

	mu       sync.RWMutex
	channels map[string]struct{}
}

// handleWebSocket upgrades a request carrying a valid ticket (from
// POST /auth/ws-ticket) into an event session for the ticket's user.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := &wsSession{
		hub:      s.hub,
		conn:     conn,
		out:      make(chan []byte, sessionBuffer),
		userID:   entry.userID,
		channels: make(map[string]struct{}),
	}
	if !s.hub.join(session) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	keepalive := time.Duration(s.wsCfg.PingInterval) * time.Second
	grace := time.Duration(s.wsCfg.PongTimeout) * time.Second
	go session.writeLoop(keepalive, grace)
	go session.readLoop(int64(s.wsCfg.MaxMessageSize), keepalive+grace)
}

// readLoop handles client frames until the connection fails. Any frame or
// pong extends the read deadline by idle.
func (ws *wsSession) readLoop(limit int64, idle time.Duration) {
	defer func() {
		ws.hub.leave(ws)
		ws.conn.Close()
	}()

	ws.conn.SetReadLimit(limit)
	extend := func() error { return ws.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	ws.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.hub.logger.Warn("websocket read failed", "user_id", ws.userID, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // see above
		ws.dispatch(data)
	}
}

// writeLoop drains the outbound queue and pings every keepalive.
func (ws *wsSession) writeLoop(keepalive, grace time.Duration) {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		ws.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		ws.conn.SetWriteDeadline(time.Now().Add(grace)) //nolint:errcheck // write reports it
		return ws.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, open := <-ws.out:
			if !open {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (ws *wsSession) dispatch(data []byte) {
	var in wsFrame
	if err := json.Unmarshal(data, &in); err != nil {
		ws.reply(wsFrame{Type: frameError}, map[string]string{"message": "invalid JSON frame"})
		return
	}

	switch in.Type {
	case frameSubscribe:
		ws.updateChannels(in, true)
	case frameUnsubscribe:
		ws.updateChannels(in, false)
	case framePing:
		ws.reply(wsFrame{Type: framePong, ID: in.ID}, nil)
	default:
		ws.reply(wsFrame{Type: frameError, ID: in.ID}, map[string]string{"message": "unknown frame type: " + in.Type})
	}
}

// updateChannels adds or removes the listed channels. Unknown channels are
// reported back as rejected.
func (ws *wsSession) updateChannels(in wsFrame, add bool) {
	var list channelList
	if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &list) != nil {
		ws.reply(wsFrame{Type: frameError, ID: in.ID}, map[string]string{"message": "payload must be {\"channels\": [...]}"})
		return
	}

	ack := subscriptionAck{Channels: []string{}}
	ws.mu.Lock()
	for _, ch := range list.Channels {
		if !knownChannel(ch) {
			ack.Rejected = append(ack.Rejected, ch)
			continue
		}
		if add {
			ws.channels[ch] = struct{}{}
		} else {
			delete(ws.channels, ch)
		}
		ack.Channels = append(ack.Channels, ch)
	}
	ws.mu.Unlock()

	ws.hub.logger.Debug("websocket subscriptions updated", "user_id", ws.userID, "subscribe", add, "channels", ack.Channels)
	ws.reply(wsFrame{Type: frameAck, ID: in.ID}, ack)
}

func (ws *wsSession) subscribed(channel string) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	_, ok := ws.channels[channel]
	return ok
}

// enqueue queues a frame without blocking. It returns false when the
// session is full or already closed.
func (ws *wsSession) enqueue(frame []byte) (queued bool) {
	defer func() {
		if recover() != nil { // out closed by leave
			queued = false
		}
	}()

	select {
	case ws.out <- frame:
		return true
	default:
		return false
	}
}

func (ws *wsSession) reply(f wsFrame, payload any) {
	f.At = time.Now().UTC().Format(time.RFC3339)
	data, err := encodeFrame(f, payload)
	if err != nil {
		return
	}
	ws.enqueue(data)
}

// subscribeStateUpdates relays device state that adapters publish on
// synexa/state/{deviceId} to the device.state_changed channel.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil
	}

	prefix := mqtt.TopicPrefix + "/state/"
	topic := mqtt.Topics{}.AllDeviceStates()
	s.logger.Info("relaying device state to websocket", "topic", topic)

	return s.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
		var state map[string]any
		if err := json.Unmarshal(payload, &state); err != nil {
			s.logger.Warn("ignoring malformed device state", "topic", t, "error", err)
			return nil
		}
		s.hub.Broadcast(EventDeviceStateChanged, map[string]any{
			"deviceId": strings.TrimPrefix(t, prefix),
			"state":    state,
		})
		return nil
	})
}
