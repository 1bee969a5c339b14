package websocket

import (
	"errors"
	"sync"
	"time"

	"auctionhouse/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

var errConnectionClosed = errors.New("connection closed")

// Connection wraps a gorilla conn with a buffered send queue. Send never
// blocks the caller: a full buffer or closed connection returns an error and
// the registry prunes the connection.
type Connection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

func NewConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *Connection {
	return &Connection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		log:       log,
	}
}

func (c *Connection) UserID() string    { return c.userID }
func (c *Connection) AuctionID() string { return c.auctionID }

func (c *Connection) Send(message []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	case c.send <- message:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs in its own goroutine per connection.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadPump consumes inbound frames to drive the pong handler and detect a
// dropped peer. Clients do not send application messages over this channel.
func (c *Connection) ReadPump(onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection read error", "user_id", c.userID, "auction_id", c.auctionID, "error", err)
			}
			return
		}
	}
}
