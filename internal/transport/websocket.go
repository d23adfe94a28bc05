// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	applog "microtools/internal/log"

	"github.com/gorilla/websocket"
)

// Message is the envelope for everything sent to websocket clients.
type Message struct {
	Type  string `json:"type"` // status, ack, error
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	writeWait      = 2 * time.Second
	maxMessageSize = 4096
)

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // one writer at a time
}

func (c *wsClient) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// WebSocketTransport serves the control surface: clients receive status
// broadcasts and may send Control messages as JSON text frames.
type WebSocketTransport struct {
	addr      string
	onControl func(Control) error

	upgrader  websocket.Upgrader
	mux       *http.ServeMux
	clients   map[*wsClient]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once

	server   *http.Server
	listener net.Listener
}

// NewWebSocketTransport creates the transport. onControl is called for
// every control message received; it may be nil for a status-only
// surface. Nothing listens until Start.
func NewWebSocketTransport(addr string, onControl func(Control) error) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:      addr,
		onControl: onControl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local control surface, any origin
			},
		},
		mux:       http.NewServeMux(),
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)

	go wst.handleBroadcasts()
	return wst
}

// Handle registers an extra handler on the same server, e.g. /metrics.
func (wst *WebSocketTransport) Handle(pattern string, h http.Handler) {
	wst.mux.Handle(pattern, h)
}

// Handler exposes the mux for tests and embedding.
func (wst *WebSocketTransport) Handler() http.Handler { return wst.mux }

// Start listens on the configured address and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Listening on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener == nil {
		return wst.addr
	}
	return wst.listener.Addr().String()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)
	client := &wsClient{conn: conn}

	wst.clientsMu.Lock()
	wst.clients[client] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", n)

	go wst.readLoop(client)
}

func (wst *WebSocketTransport) readLoop(c *wsClient) {
	defer wst.drop(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ctl Control
		if err := json.Unmarshal(data, &ctl); err != nil {
			c.write(Message{Type: "error", Error: "malformed control message: " + err.Error()})
			continue
		}
		if wst.onControl == nil {
			c.write(Message{Type: "error", Error: "control surface is read-only"})
			continue
		}
		if err := wst.onControl(ctl); err != nil {
			c.write(Message{Type: "error", Error: err.Error()})
			continue
		}
		c.write(Message{Type: "ack"})
	}
}

func (wst *WebSocketTransport) drop(c *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c]
	delete(wst.clients, c)
	n := len(wst.clients)
	wst.clientsMu.Unlock()

	c.conn.Close()
	if ok {
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", n)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case data := <-wst.broadcast:
			msg := Message{Type: "status", Data: data}

			wst.clientsMu.Lock()
			clients := make([]*wsClient, 0, len(wst.clients))
			for c := range wst.clients {
				clients = append(clients, c)
			}
			wst.clientsMu.Unlock()

			for _, c := range clients {
				if err := c.write(msg); err != nil {
					applog.Debugf("WebSocketTransport: Error sending to client: %v", err)
					wst.drop(c)
				}
			}
		case <-wst.done:
			return
		}
	}
}

// Send queues data for broadcast. When the queue is full the message is
// dropped; status is periodic, so the next one supersedes it.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close disconnects all clients and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		close(wst.done)

		wst.clientsMu.Lock()
		for c := range wst.clients {
			c.conn.Close()
		}
		wst.clients = make(map[*wsClient]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = wst.server.Shutdown(ctx)
		}
		applog.Debugf("WebSocketTransport: Closed")
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
