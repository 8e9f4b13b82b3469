package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// has been reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Broadcaster fans simulation events out to every connected client. It
// implements runner.Publisher.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	stopped  bool

	// sendMu keeps seq order identical to delivery order.
	sendMu sync.Mutex
	seq    uint64

	log *slog.Logger
}

// NewBroadcaster creates a broadcaster. maxConns <= 0 means unlimited.
func NewBroadcaster(maxConns int, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		log:      logging.OrDefault(logger),
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, errors.New("broadcaster stopped")
	}
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// SendTo delivers one message to a single client.
func (b *Broadcaster) SendTo(c *client, t MessageType, payload interface{}) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	data, err := b.encode(t, payload)
	if err != nil {
		return
	}

	b.mu.RLock()
	_, ok := b.clients[c]
	slow := false
	if ok {
		select {
		case c.send <- data:
		default:
			slow = true
		}
	}
	b.mu.RUnlock()

	if slow {
		b.log.Warn("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// Broadcast delivers one message to every client. Clients whose buffer is
// full are disconnected.
func (b *Broadcaster) Broadcast(t MessageType, payload interface{}) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	data, err := b.encode(t, payload)
	if err != nil {
		return
	}

	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.log.Warn("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// encode stamps the next sequence number. Caller must hold sendMu.
func (b *Broadcaster) encode(t MessageType, payload interface{}) ([]byte, error) {
	b.seq++
	data, err := json.Marshal(WSMessage{Type: t, Seq: b.seq, Payload: payload})
	if err != nil {
		b.log.Error("broadcast marshal error", "type", t, "err", err)
		return nil, err
	}
	return data, nil
}

func (b *Broadcaster) PublishStep(res sim.StepResult) {
	b.Broadcast(MsgUpdate, res)
}

func (b *Broadcaster) PublishStatistics(st sim.Statistics) {
	b.Broadcast(MsgStatistics, st)
}

func (b *Broadcaster) PublishCompleted(st sim.Statistics) {
	b.Broadcast(MsgCompleted, st)
}

func (b *Broadcaster) PublishError(err error) {
	b.Broadcast(MsgError, ErrorPayload{Message: err.Error()})
}

// Stop disconnects every client and rejects new ones.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
