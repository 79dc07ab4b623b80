package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultChannel is the channel name peers join when none is configured.
const DefaultChannel = "meshaid-p2p-v1"

type hubConn struct {
	conn    *websocket.Conn
	channel string
	mu      sync.Mutex // serializes writes
}

func (c *hubConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Hub is a websocket relay. Clients name a channel with ?channel=; every
// message a client sends is forwarded to the other clients of that channel.
type Hub struct {
	conns    sync.Map // map[*hubConn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = DefaultChannel
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &hubConn{conn: conn, channel: channel}
	h.registerConn(c)
	defer h.unregisterConn(c)
	defer conn.Close()

	slog.Info("Relay client joined", "channel", channel, "remote", conn.RemoteAddr().String())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Relay read error", "error", err)
			}
			return
		}
		h.broadcastExcept(c, data)
	}
}

func (h *Hub) registerConn(c *hubConn) {
	h.conns.Store(c, struct{}{})
}

func (h *Hub) unregisterConn(c *hubConn) {
	h.conns.Delete(c)
}

// broadcastExcept forwards data to every other client on the sender's channel.
func (h *Hub) broadcastExcept(from *hubConn, data []byte) {
	h.conns.Range(func(key, _ any) bool {
		c := key.(*hubConn)
		if c == from || c.channel != from.channel {
			return true
		}
		// One slow or dead client must not stop the fan-out.
		if err := c.write(data); err != nil {
			slog.Warn("Relay write failed", "remote", c.conn.RemoteAddr().String(), "error", err)
		}
		return true
	})
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll closes all active connections.
func (h *Hub) CloseAll() {
	h.conns.Range(func(key, _ any) bool {
		key.(*hubConn).conn.Close()
		return true
	})
}

// RelayClient is a Transport backed by a Hub connection.
type RelayClient struct {
	receiver
	conn *websocket.Conn
	wmu  sync.Mutex
	done chan struct{}
}

// DialRelay connects to a hub at rawURL (ws:// or wss://) and joins channel.
func DialRelay(ctx context.Context, rawURL, channel string) (*RelayClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("channel", channel)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	c := &RelayClient{conn: conn, done: make(chan struct{})}
	go c.readLoop()
	return c, nil
}

func (c *RelayClient) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.deliver(data)
	}
}

func (c *RelayClient) Post(payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (c *RelayClient) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
