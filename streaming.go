package sensorlog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures the WebSocket live feed.
type StreamConfig struct {
	// PollInterval is how often each subscribed sensor's log is checked
	// for a new last record.
	PollInterval Duration `yaml:"poll_interval"`
	// BufferSize is the channel buffer size per subscription
	BufferSize int `yaml:"buffer_size"`
	// PingInterval is how often to ping clients
	PingInterval Duration `yaml:"ping_interval"`
	// WriteTimeout for WebSocket writes
	WriteTimeout Duration `yaml:"write_timeout"`
}

// DefaultStreamConfig returns default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: Duration(2 * time.Second),
		BufferSize:   64,
		PingInterval: Duration(30 * time.Second),
		WriteTimeout: Duration(10 * time.Second),
	}
}

// Subscription represents an active live feed for one sensor. The hub
// polls the sensor's log and delivers each new last record exactly once,
// deduplicated by timestamp.
type Subscription struct {
	ID     string
	Sensor string
	ch     chan Record
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// C returns the channel for receiving records.
func (s *Subscription) C() <-chan Record {
	return s.ch
}

// Close closes the subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// StreamHub manages live subscriptions over the query engine. Because the
// engine holds no state between calls, polling the last record is the
// correct way to observe an externally appended log.
type StreamHub struct {
	engine *Engine
	config StreamConfig
	mu     sync.RWMutex
	subs   map[string]*Subscription
	nextID uint64
}

// NewStreamHub creates a streaming hub.
func NewStreamHub(engine *Engine, cfg StreamConfig) *StreamHub {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(2 * time.Second)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &StreamHub{
		engine: engine,
		config: cfg,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe creates a subscription for a sensor and starts its poll loop.
// An unknown sensor id is rejected.
func (h *StreamHub) Subscribe(sensor string) (*Subscription, error) {
	if _, ok := h.engine.Catalog()[sensor]; !ok {
		return nil, ErrUnknownSensor
	}

	h.mu.Lock()
	h.nextID++
	id := fmt.Sprintf("sub-%d", h.nextID)
	sub := &Subscription{
		ID:     id,
		Sensor: sensor,
		ch:     make(chan Record, h.config.BufferSize),
		done:   make(chan struct{}),
	}
	h.subs[id] = sub
	h.mu.Unlock()

	go h.poll(sub)
	return sub, nil
}

// Unsubscribe removes a subscription and stops its poll loop.
func (h *StreamHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Count returns the number of active subscriptions.
func (h *StreamHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// poll re-reads the sensor's last record on each tick and forwards it when
// its timestamp advances. A full buffer drops the record; the next tick
// will observe a fresher one anyway.
func (h *StreamHub) poll(sub *Subscription) {
	ticker := time.NewTicker(time.Duration(h.config.PollInterval))
	defer ticker.Stop()

	var lastSeen time.Time
	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
		}

		rec, ok, err := h.engine.LastRecord(sub.Sensor)
		if err != nil || !ok {
			continue
		}
		if !rec.Timestamp.After(lastSeen) {
			continue
		}
		lastSeen = rec.Timestamp

		select {
		case sub.ch <- rec:
		default:
			// Buffer full, drop the record
		}
	}
}

// WebSocket handling

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is the JSON format for WebSocket messages.
type StreamMessage struct {
	Type   string  `json:"type"`
	Sensor string  `json:"sensor,omitempty"`
	Record *Record `json:"record,omitempty"`
	SubID  string  `json:"sub_id,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// wsWriter serializes data writes to one connection. The command reader and
// every forwardRecords goroutine share it; gorilla/websocket allows only one
// concurrent writer per connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) writeMessage(timeout time.Duration, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(timeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler returns an HTTP handler for WebSocket connections.
func (h *StreamHub) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		connSubs := make(map[string]*Subscription)
		var connMu sync.Mutex
		wr := &wsWriter{conn: conn}

		// Read commands from client
		go func() {
			defer cancel()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}

				var cmd StreamMessage
				if err := json.Unmarshal(msg, &cmd); err != nil {
					h.sendError(wr, "invalid message format")
					continue
				}

				switch cmd.Type {
				case "subscribe":
					sub, err := h.Subscribe(cmd.Sensor)
					if err != nil {
						h.sendError(wr, "unknown sensor: "+cmd.Sensor)
						continue
					}
					connMu.Lock()
					connSubs[sub.ID] = sub
					connMu.Unlock()

					resp, _ := json.Marshal(StreamMessage{Type: "subscribed", SubID: sub.ID, Sensor: cmd.Sensor})
					_ = wr.writeMessage(h.writeTimeout(), resp)

					go h.forwardRecords(ctx, wr, sub)

				case "unsubscribe":
					connMu.Lock()
					if sub, ok := connSubs[cmd.SubID]; ok {
						delete(connSubs, cmd.SubID)
						h.Unsubscribe(sub.ID)
					}
					connMu.Unlock()

					resp, _ := json.Marshal(StreamMessage{Type: "unsubscribed", SubID: cmd.SubID})
					_ = wr.writeMessage(h.writeTimeout(), resp)

				default:
					h.sendError(wr, "unknown command: "+cmd.Type)
				}
			}
		}()

		// Ping loop keeps intermediaries from dropping idle connections.
		pingInterval := time.Duration(h.config.PingInterval)
		if pingInterval <= 0 {
			pingInterval = 30 * time.Second
		}
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				connMu.Lock()
				for id := range connSubs {
					h.Unsubscribe(id)
				}
				connMu.Unlock()
				return
			case <-ticker.C:
				deadline := time.Now().Add(h.writeTimeout())
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					cancel()
				}
			}
		}
	}
}

// forwardRecords copies records from a subscription to the WebSocket.
func (h *StreamHub) forwardRecords(ctx context.Context, wr *wsWriter, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case rec := <-sub.ch:
			msg, err := json.Marshal(StreamMessage{Type: "record", Sensor: sub.Sensor, SubID: sub.ID, Record: &rec})
			if err != nil {
				continue
			}
			if err := wr.writeMessage(h.writeTimeout(), msg); err != nil {
				return
			}
		}
	}
}

func (h *StreamHub) writeTimeout() time.Duration {
	if h.config.WriteTimeout > 0 {
		return time.Duration(h.config.WriteTimeout)
	}
	return 10 * time.Second
}

func (h *StreamHub) sendError(wr *wsWriter, msg string) {
	resp, _ := json.Marshal(StreamMessage{Type: "error", Error: msg})
	_ = wr.writeMessage(h.writeTimeout(), resp)
}
