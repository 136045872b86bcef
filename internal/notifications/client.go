package notifications

import (
	"log"
	"time"

	"kinship/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Deadline for a single outbound write.
	writeWait = 10 * time.Second

	// pongWait bounds peer silence; pings go out well inside it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. Clients only send small control
	// messages, so anything large is misbehaving.
	maxMessageSize = 16384

	sendBufferSize = 256
)

// WSHub is the subset of hub behavior a client needs.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client pairs one websocket connection with its outbound buffer. Writes go
// through Send so the write pump is the only goroutine touching the socket
// for output.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	// IncomingHandler, when set, receives each inbound message.
	IncomingHandler func(*Client, []byte)

	// OnActivity fires on any sign of life from the peer, inbound message or
	// pong, and feeds presence touches.
	OnActivity func(userID uint)
}

func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump consumes inbound frames until the connection dies, then detaches
// the client from its hub. Runs on the connection's handler goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.OnActivity != nil {
			c.OnActivity(c.UserID)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read failed for user %d: %v", c.UserID, err)
			}
			return
		}

		if c.OnActivity != nil {
			c.OnActivity(c.UserID)
		}
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump drains Send onto the socket and keeps the connection alive with
// periodic pings. Runs on its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking. When the buffer is full the
// message is dropped and a gap notice is queued instead, so the client knows
// to re-fetch rather than trust its event stream.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if recover() != nil {
			observability.NotificationDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.NotificationDrops.WithLabelValues("full").Inc()
		log.Printf("send buffer full for user %d (%s), message dropped", c.UserID, c.Hub.Name())

		notice := []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)
		select {
		case c.Send <- notice:
		default:
		}
	}
}
