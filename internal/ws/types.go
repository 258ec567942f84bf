package ws

import (
	"time"

	"github.com/google/uuid"
)

const (
	// client - server
	MsgPing    = "ping"
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgTyping  = "typing"
	MsgMessage = "message"
	MsgRead    = "read"

	// server - client
	MsgReady      = "ready"
	MsgPong       = "pong"
	MsgUserJoined = "user_joined"
	MsgUserLeft   = "user_left"
	MsgError      = "error"
)

// Event is the envelope of every server push.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type inbound struct {
	Type      string     `json:"type"`
	RoomID    string     `json:"room_id"`
	Content   string     `json:"content"`
	ReplyTo   *uuid.UUID `json:"reply_to"`
	IsTyping  bool       `json:"is_typing"`
	MessageID string     `json:"message_id"`
}
