// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"microtools/internal/rack"

	"github.com/gorilla/websocket"
)

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	return msg
}

func waitClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients: got %d, want %d", wst.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketControl(t *testing.T) {
	var mu sync.Mutex
	var got []Control
	wst := NewWebSocketTransport("127.0.0.1:0", func(c Control) error {
		mu.Lock()
		defer mu.Unlock()
		var dst rack.Controls
		if err := c.Apply(&dst); err != nil {
			return err
		}
		got = append(got, c)
		return nil
	})
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	conn := dialTest(t, srv)

	tests := []struct {
		name     string
		payload  string
		wantType string
	}{
		{"Record", `{"record": true, "format": "pcm8"}`, "ack"},
		{"Bad Format", `{"format": "mp3"}`, "error"},
		{"Malformed", `{"record":`, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)); err != nil {
				t.Fatalf("WriteMessage error: %v", err)
			}
			msg := readMessage(t, conn)
			if msg["type"] != tt.wantType {
				t.Errorf("reply type: got %v, want %s (%v)", msg["type"], tt.wantType, msg)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("controls applied: got %d, want 1", len(got))
	}
	if got[0].Record == nil || !*got[0].Record || *got[0].Format != "pcm8" {
		t.Errorf("first control: got %+v", got[0])
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", nil)
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	a := dialTest(t, srv)
	b := dialTest(t, srv)
	waitClients(t, wst, 2)

	wst.Send(Status{Seq: 9, Recording: true, FormatName: "8 bit unsigned"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg["type"] != "status" {
			t.Fatalf("type: got %v, want status", msg["type"])
		}
		data := msg["data"].(map[string]any)
		if data["seq"] != float64(9) || data["recording"] != true || data["format"] != "8 bit unsigned" {
			t.Errorf("data: got %v", data)
		}
	}

	// Read-only surface rejects controls.
	a.WriteMessage(websocket.TextMessage, []byte(`{"record": true}`))
	if msg := readMessage(t, a); msg["type"] != "error" {
		t.Errorf("read-only reply: got %v", msg)
	}

	b.Close()
	waitClients(t, wst, 1)
}

func TestWebSocketExtraHandler(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", nil)
	defer wst.Close()
	wst.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	wst.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("/metrics: got %q", rec.Body.String())
	}
}

func TestWebSocketStartClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", nil)
	if err := wst.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if strings.HasSuffix(wst.Addr(), ":0") {
		t.Errorf("Addr not resolved: %s", wst.Addr())
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()
	waitClients(t, wst, 1)

	if err := wst.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if wst.Clients() != 0 {
		t.Errorf("Clients after Close: %d", wst.Clients())
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}
