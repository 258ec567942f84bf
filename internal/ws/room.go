package ws

import (
	"context"
	"errors"
	"sort"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/service"

	"github.com/google/uuid"
)

// ChatBackend persists chat actions that arrive over the socket. Resulting
// events reach participants through the hub's Publisher side.
type ChatBackend interface {
	CanJoin(ctx context.Context, userID int64, roomID uuid.UUID) error
	SendMessage(ctx context.Context, userID int64, roomID uuid.UUID, in service.MessageInput) (*domain.ChatMessage, error)
	SetTyping(ctx context.Context, userID int64, roomID uuid.UUID, typing bool) error
	MarkMessageRead(ctx context.Context, userID int64, roomID, msgID uuid.UUID) (bool, error)
}

const chatCallTimeout = 5 * time.Second

// Room is the set of connections currently viewing a chat room.
type Room struct {
	ID      uuid.UUID
	Clients map[*Client]struct{}
}

func NewRoom(id uuid.UUID) *Room {
	return &Room{ID: id, Clients: make(map[*Client]struct{})}
}

// userIDs returns the distinct users present, ascending.
func (r *Room) userIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.Clients))
	out := make([]int64, 0, len(r.Clients))
	for c := range r.Clients {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type presence struct {
	Room   uuid.UUID `json:"room"`
	UserID int64     `json:"user_id"`
	Online []int64   `json:"online"`
}

// SetChat wires the chat backend. Without one, chat frames get an error reply.
func (h *Hub) SetChat(b ChatBackend) {
	h.mu.Lock()
	h.chat = b
	h.mu.Unlock()
}

// RoomMembers lists users with at least one connection joined to roomID.
func (h *Hub) RoomMembers(roomID uuid.UUID) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return []int64{}
	}
	return r.userIDs()
}

func (h *Hub) joined(c *Client, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (h *Hub) handleRegister(c *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.UserID][c]; !ok {
		return
	}
	r, ok := h.rooms[roomID]
	if !ok {
		r = NewRoom(roomID)
		h.rooms[roomID] = r
	}
	r.Clients[c] = struct{}{}
	c.rooms[roomID] = struct{}{}

	msg := h.encode(MsgUserJoined, presence{Room: roomID, UserID: c.UserID, Online: r.userIDs()})
	for rc := range r.Clients {
		h.deliver(rc, msg)
	}
}

// handleDisconnect must be called with h.mu held for writing.
func (h *Hub) handleDisconnect(c *Client, roomID uuid.UUID) {
	delete(c.rooms, roomID)
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(r.Clients, c)
	if len(r.Clients) == 0 {
		delete(h.rooms, roomID)
		return
	}
	msg := h.encode(MsgUserLeft, presence{Room: roomID, UserID: c.UserID, Online: r.userIDs()})
	for rc := range r.Clients {
		h.deliver(rc, msg)
	}
}

func (h *Hub) leaveRoom(c *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handleDisconnect(c, roomID)
}

func (h *Hub) reply(c *Client, eventType string, data any) {
	msg := h.encode(eventType, data)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.UserID][c]; ok {
		h.deliver(c, msg)
	}
}

func (h *Hub) replyError(c *Client, in inbound, message string) {
	h.reply(c, MsgError, map[string]string{"request": in.Type, "message": message})
}

// HandleMessage runs one chat frame from c. Backend calls happen without
// the hub lock held since they publish back through the hub.
func (h *Hub) HandleMessage(c *Client, in inbound) {
	h.mu.RLock()
	chat := h.chat
	h.mu.RUnlock()
	if chat == nil {
		h.replyError(c, in, "Chat is not available.")
		return
	}

	roomID, err := uuid.Parse(in.RoomID)
	if err != nil {
		h.replyError(c, in, "A valid room_id is required.")
		return
	}
	if in.Type == MsgLeave {
		h.leaveRoom(c, roomID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), chatCallTimeout)
	defer cancel()

	if in.Type == MsgJoin {
		if err := chat.CanJoin(ctx, c.UserID, roomID); err != nil {
			h.replyError(c, in, chatErrorMessage(err))
			return
		}
		h.handleRegister(c, roomID)
		return
	}

	if !h.joined(c, roomID) {
		h.replyError(c, in, "Join the room first.")
		return
	}

	switch in.Type {
	case MsgTyping:
		err = chat.SetTyping(ctx, c.UserID, roomID, in.IsTyping)
	case MsgMessage:
		_, err = chat.SendMessage(ctx, c.UserID, roomID, service.MessageInput{Content: in.Content, ReplyTo: in.ReplyTo})
	case MsgRead:
		msgID, perr := uuid.Parse(in.MessageID)
		if perr != nil {
			h.replyError(c, in, "A valid message_id is required.")
			return
		}
		_, err = chat.MarkMessageRead(ctx, c.UserID, roomID, msgID)
	}
	if err != nil {
		h.replyError(c, in, chatErrorMessage(err))
	}
}

func chatErrorMessage(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "Room or message not found."
	case errors.Is(err, domain.ErrForbidden):
		return "You do not have permission to perform this action."
	}
	logger.Error("ws chat request failed", "error", err)
	return "An internal error occurred."
}
