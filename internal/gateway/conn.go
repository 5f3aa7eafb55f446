package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Outbound buffer per connection.
	sendBufferSize = 64
)

var errConnClosed = errors.New("gateway: connection closed")

// clientMessage is what a connected client may send. Anything other than a
// subscribe is ignored with a logged warning.
type clientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	// Filter is an optional CEL expression; when set, only matching
	// broadcasts are delivered to this subscription.
	Filter string `json:"filter,omitempty"`
}

type connectedMessage struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId"`
	NodeID    string `json:"nodeId"`
	Timestamp string `json:"timestamp"`
}

type subscribedMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsClient is one connected websocket client. Writes go through a buffered
// send channel drained by writePump; reads are sequential per connection.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	gw     *Gateway
	logger logpkg.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSClient(id string, conn *websocket.Conn, gw *Gateway) *wsClient {
	return &wsClient{
		id:     id,
		conn:   conn,
		gw:     gw,
		logger: gw.logger.With(logpkg.Component("conn"), logpkg.Str("client_id", id)),
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues a payload for delivery. It fails when the connection has
// closed or its outbound buffer is full; the caller treats both as a
// skipped delivery.
func (c *wsClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errConnClosed
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// run services the connection until it closes, then removes the client
// from the subscription table exactly once.
func (c *wsClient) run() {
	go c.writePump()

	greeting, _ := json.Marshal(connectedMessage{
		Type:      "connected",
		ClientID:  c.id,
		NodeID:    c.gw.nodeID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	_ = c.Send(greeting)

	c.readPump()

	c.close()
	c.gw.table.RemoveClient(c.id)
	c.logger.Info("client disconnected")
}

func (c *wsClient) readPump() {
	defer c.conn.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", logpkg.Err(err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed client message", logpkg.Err(err))
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.handleSubscribe(msg)
		default:
			c.logger.Warn("ignored client message", logpkg.Str("type", msg.Type))
		}
	}
}

func (c *wsClient) handleSubscribe(msg clientMessage) {
	if err := c.gw.dir.Allowed(msg.Channel); err != nil {
		c.sendError(subscribeErrorText(err))
		return
	}
	filter, err := newMsgFilter(msg.Filter)
	if err != nil {
		c.sendError("invalid filter expression")
		return
	}
	if err := c.gw.table.Subscribe(c.id, msg.Channel, filter); err != nil {
		c.sendError("subscription failed")
		return
	}
	c.gw.agg.RecordSubscription(msg.Channel)

	reply, _ := json.Marshal(subscribedMessage{
		Type:      "subscribed",
		Channel:   msg.Channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	_ = c.Send(reply)
	c.logger.Info("client subscribed", logpkg.Str("channel", msg.Channel))
}

func subscribeErrorText(err error) string {
	if errors.Is(err, ErrChannelsNotLoaded) {
		return "channel list not loaded"
	}
	return "invalid channel"
}

func (c *wsClient) sendError(text string) {
	reply, _ := json.Marshal(errorMessage{Type: "error", Message: text})
	_ = c.Send(reply)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
