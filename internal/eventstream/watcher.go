// Package eventstream watches a remote WebDriver BiDi endpoint for
// asynchronously-delivered events (log entries, navigation events) that
// arrive outside the request/response cycle session.go otherwise uses for
// everything. It keeps the connection alive with the same ping/read-deadline
// discipline used elsewhere for long-lived sockets.
package eventstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibium/webdrive/internal/wderrors"
)

const maxMessageSize = 10 * 1024 * 1024

const (
	readDeadline = 120 * time.Second
	pingInterval = 30 * time.Second
)

// Event is a single BiDi event message: its method name (e.g.
// "log.entryAdded") and raw params, left undecoded since callers only care
// about a handful of event types.
type Event struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// subscribeRequest is the BiDi "session.subscribe" command envelope.
type subscribeRequest struct {
	ID     int64    `json:"id"`
	Method string   `json:"method"`
	Params struct {
		Events []string `json:"events"`
	} `json:"params"`
}

// Watcher holds a BiDi WebSocket connection and republishes every incoming
// event on a channel until Close is called or the connection drops.
type Watcher struct {
	conn   *websocket.Conn
	events chan Event
	errs   chan error
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Connect dials the BiDi WebSocket URL a session's capabilities reported
// (e.g. caps.String("webSocketUrl")) and subscribes to the given event
// names before returning.
func Connect(url string, headers http.Header, events []string) (*Watcher, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   maxMessageSize,
		WriteBufferSize:  maxMessageSize,
		HandshakeTimeout: 30 * time.Second,
	}
	conn, _, err := dialer.Dial(url, headers)
	if err != nil {
		return nil, &wderrors.ConnectionError{URL: url, Cause: err}
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	w := &Watcher{
		conn:   conn,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	if len(events) > 0 {
		req := subscribeRequest{ID: 1, Method: "session.subscribe"}
		req.Params.Events = events
		if err := conn.WriteJSON(req); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	go w.pingLoop()
	go w.readLoop()

	return w, nil
}

// Events returns the channel events are published on. It is closed when
// the watcher stops, after which Err reports why.
func (w *Watcher) Events() <-chan Event { return w.events }

// Err returns the error that stopped the read loop, or nil if Close was
// called deliberately.
func (w *Watcher) Err() error {
	select {
	case err := <-w.errs:
		return err
	default:
		return nil
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.conn.Close()
}

func (w *Watcher) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (w *Watcher) readLoop() {
	defer close(w.events)
	for {
		var ev Event
		if err := w.conn.ReadJSON(&ev); err != nil {
			select {
			case <-w.done:
			default:
				w.errs <- err
			}
			return
		}
		select {
		case w.events <- ev:
		case <-w.done:
			return
		}
	}
}
