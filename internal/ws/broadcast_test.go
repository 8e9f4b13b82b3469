package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/gorilla/websocket"
)

// wsPair creates a test HTTP server that upgrades to WebSocket and returns
// both ends of the connection. Everything is closed on test cleanup.
func wsPair(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn = <-connCh:
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ClientCount = %d, want %d", b.ClientCount(), want)
}

func TestAddClient_MaxConnections(t *testing.T) {
	const maxConns = 2
	b := NewBroadcaster(maxConns, logging.Discard())
	defer b.Stop()

	var clients []*client
	for i := 0; i < maxConns; i++ {
		conn, _ := wsPair(t)
		c, err := b.AddClient(conn)
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error: %v", i, err)
		}
		clients = append(clients, c)
	}

	if got := b.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients, got %d", maxConns, got)
	}

	conn, _ := wsPair(t)
	if _, err := b.AddClient(conn); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}

	b.RemoveClient(clients[0])

	conn2, _ := wsPair(t)
	if _, err := b.AddClient(conn2); err != nil {
		t.Fatalf("AddClient after removal: unexpected error: %v", err)
	}
	if got := b.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients after re-add, got %d", maxConns, got)
	}
}

func TestAddClient_ZeroMaxConnections_Unlimited(t *testing.T) {
	b := NewBroadcaster(0, logging.Discard())
	defer b.Stop()

	for i := 0; i < 10; i++ {
		conn, _ := wsPair(t)
		if _, err := b.AddClient(conn); err != nil {
			t.Fatalf("AddClient[%d]: unexpected error with maxConns=0: %v", i, err)
		}
	}

	if got := b.ClientCount(); got != 10 {
		t.Fatalf("expected 10 clients, got %d", got)
	}
}

func TestRemoveClientTwice(t *testing.T) {
	b := NewBroadcaster(0, logging.Discard())
	conn, _ := wsPair(t)
	c, err := b.AddClient(conn)
	if err != nil {
		t.Fatal(err)
	}
	b.RemoveClient(c)
	b.RemoveClient(c)
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount = %d, want 0", got)
	}
}

func TestWritePump_RemovesClientOnWriteError(t *testing.T) {
	serverConn, _ := wsPair(t)

	b := NewBroadcaster(0, logging.Discard())
	defer b.Stop()

	// Build a client directly so we control when writePump starts.
	c := &client{
		conn: serverConn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	serverConn.Close()
	c.send <- []byte(`{"type":"test"}`)
	go c.writePump()

	waitForClients(t, b, 0)
}

func TestBroadcastSequence(t *testing.T) {
	b := NewBroadcaster(0, logging.Discard())
	defer b.Stop()

	serverConn, clientConn := wsPair(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}

	b.PublishStep(sim.StepResult{Status: sim.StatusRunning, ActiveSessions: 3})
	b.PublishStatistics(sim.Statistics{TotalSessions: 3})
	b.PublishCompleted(sim.Statistics{TotalSessions: 3, CompletedSessions: 3})
	b.PublishError(errors.New("boom"))

	want := []MessageType{MsgUpdate, MsgStatistics, MsgCompleted, MsgError}
	var last uint64
	for i, typ := range want {
		msg := readMessage(t, clientConn)
		if msg.Type != typ {
			t.Errorf("message %d type = %q, want %q", i, msg.Type, typ)
		}
		if msg.Seq <= last {
			t.Errorf("message %d seq = %d, not greater than %d", i, msg.Seq, last)
		}
		last = msg.Seq
		if typ == MsgError {
			payload := msg.Payload.(map[string]interface{})
			if payload["message"] != "boom" {
				t.Errorf("error payload = %v", payload)
			}
		}
	}
}

func TestBroadcastDisconnectsSlowClient(t *testing.T) {
	b := NewBroadcaster(0, logging.Discard())
	defer b.Stop()

	serverConn, _ := wsPair(t)
	// Not registered through AddClient so no writePump drains the buffer.
	c := &client{conn: serverConn, b: b, send: make(chan []byte, 1)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	b.Broadcast(MsgStatistics, struct{}{})
	if got := b.ClientCount(); got != 1 {
		t.Fatalf("client dropped after first message; ClientCount = %d", got)
	}
	b.Broadcast(MsgStatistics, struct{}{})
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("slow client not disconnected; ClientCount = %d", got)
	}
}

func TestStopClosesClients(t *testing.T) {
	b := NewBroadcaster(0, logging.Discard())

	serverConn, clientConn := wsPair(t)
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	b.Stop()

	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount after Stop = %d", got)
	}
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := clientConn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}

	conn, _ := wsPair(t)
	if _, err := b.AddClient(conn); err == nil {
		t.Fatal("AddClient succeeded on a stopped broadcaster")
	}
}
