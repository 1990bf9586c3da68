// Package wsbridge exposes the event bus to a browser UI over WebSocket.
package wsbridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"city-viewer/bus"
	"city-viewer/core"
	"city-viewer/editor"
)

const (
	sendQueue  = 32
	writeWait  = 5 * time.Second
	maxMessage = 64 << 20 // city models are uploaded through the socket
)

// Input receives the pointer and resize messages.
type Input interface {
	HandleClick(evt *core.PointerEvent) editor.HitResult
	NotifyResize(size core.Size)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Bridge is an http.Handler that upgrades to WebSocket, publishes inbound
// messages on the bus and fans outbound bus events out to every client.
type Bridge struct {
	bus   *bus.Bus
	input Input
	log   *zap.Logger

	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
	unsubs   []func()

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// New subscribes the bridge to the outbound kinds of b. input may be nil.
func New(b *bus.Bus, input Input, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	br := &Bridge{
		bus:     b,
		input:   input,
		log:     logger.Named("wsbridge"),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	br.ctx, br.cancel = context.WithCancel(context.Background())
	for _, k := range bus.Outbound {
		br.unsubs = append(br.unsubs, b.Subscribe(k, br.forward))
	}
	return br
}

func (br *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := br.upgrader.Upgrade(w, r, nil)
	if err != nil {
		br.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessage)

	br.log.Info("client connected", zap.String("remote", r.RemoteAddr))
	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	if !br.add(c) {
		_ = conn.Close()
		return
	}

	go br.writeLoop(c)
	br.readLoop(c)
}

// Clients returns the number of connected clients.
func (br *Bridge) Clients() int {
	br.mu.Lock()
	defer br.mu.Unlock()
	return len(br.clients)
}

// Close unsubscribes from the bus and disconnects every client.
func (br *Bridge) Close() {
	br.mu.Lock()
	if br.closed {
		br.mu.Unlock()
		return
	}
	br.closed = true
	clients := br.clients
	br.clients = make(map[*client]struct{})
	br.mu.Unlock()

	for _, unsub := range br.unsubs {
		unsub()
	}
	br.cancel()
	for c := range clients {
		close(c.send)
	}
}

func (br *Bridge) add(c *client) bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return false
	}
	br.clients[c] = struct{}{}
	return true
}

// drop removes c and closes its queue, which ends its write loop.
func (br *Bridge) drop(c *client) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if _, ok := br.clients[c]; !ok {
		return
	}
	delete(br.clients, c)
	close(c.send)
}

func (br *Bridge) forward(_ context.Context, ev bus.Event) {
	data, err := encode(ev)
	if err != nil {
		br.log.Error("encode event", zap.String("type", string(ev.Kind())), zap.Error(err))
		return
	}
	br.broadcast(data)
}

// broadcast queues data on every client. A client whose queue is full is
// disconnected.
func (br *Bridge) broadcast(data []byte) {
	br.mu.Lock()
	defer br.mu.Unlock()

	for c := range br.clients {
		select {
		case c.send <- data:
		default:
			br.log.Warn("client too slow, disconnecting")
			delete(br.clients, c)
			close(c.send)
		}
	}
}

func (br *Bridge) readLoop(c *client) {
	defer br.drop(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				br.log.Warn("read failed", zap.Error(err))
			}
			return
		}
		br.dispatch(data)
	}
}

func (br *Bridge) dispatch(data []byte) {
	ev, input, err := decode(data)
	if err != nil {
		if errors.Is(err, errUnknownType) {
			br.log.Warn("dropping message", zap.Error(err))
		} else {
			br.log.Warn("bad message", zap.Error(err))
		}
		return
	}
	if ev != nil {
		br.bus.Publish(br.ctx, ev)
		return
	}
	if br.input == nil {
		return
	}
	switch v := input.(type) {
	case core.PointerEvent:
		br.input.HandleClick(&v)
	case core.Size:
		br.input.NotifyResize(v)
	}
}

func (br *Bridge) writeLoop(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			br.log.Warn("write failed", zap.Error(err))
			br.drop(c)
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
