package ws

import (
	"encoding/json"
	"time"

	"nxfs_api/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer     = 64
	maxMessageSize = 16 << 10
)

type Client struct {
	UserID int64
	Staff  bool
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	// chat rooms joined on this connection, guarded by Hub.mu
	rooms map[uuid.UUID]struct{}
}

func NewClient(userID int64, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
		rooms:  make(map[uuid.UUID]struct{}),
	}
}

// Run registers the client, starts the writer and blocks in the reader
// until the connection drops.
func (c *Client) Run() {
	c.Hub.register(c)
	go c.writePump()

	// explicit ready handshake so clients know events will flow
	c.Hub.reply(c, MsgReady, nil)

	c.readPump()
}

//read
func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		var in inbound
		if json.Unmarshal(msg, &in) != nil {
			continue
		}
		switch in.Type {
		case MsgPing:
			c.Hub.reply(c, MsgPong, nil)
		case MsgJoin, MsgLeave, MsgTyping, MsgMessage, MsgRead:
			c.Hub.HandleMessage(c, in)
		}
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "user_id", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

//disconnect
func (c *Client) disconnect() {
	c.Hub.unregister(c)
	_ = c.Conn.Close()
}
