package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	RoomDirect  = "direct"
	RoomGroup   = "group"
	RoomProject = "project"
	RoomPublic  = "public"
)

func ValidRoomType(t string) bool {
	switch t {
	case RoomDirect, RoomGroup, RoomProject, RoomPublic:
		return true
	}
	return false
}

const (
	MessageText   = "text"
	MessageSystem = "system"
)

// TypingTTL is how long a typing indicator stays visible without a refresh.
const TypingTTL = 30 * time.Second

type ChatParticipant struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type ChatRoom struct {
	ID        uuid.UUID `json:"id"`
	Name      *string   `json:"name"`
	RoomType  string    `json:"room_type"`
	CreatedBy *int64    `json:"created_by"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DirectUser1 < DirectUser2 for direct rooms, nil otherwise.
	DirectUser1 *int64 `json:"-"`
	DirectUser2 *int64 `json:"-"`

	Participants []ChatParticipant `json:"participants"`
	LastMessage  *ChatMessage      `json:"last_message"`
	UnreadCount  int               `json:"unread_count"`
	OtherUser    *ChatParticipant  `json:"other_user"`
}

// DirectPair orders two user ids so a direct room has a single canonical key.
func DirectPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// OtherUserID returns the other side of a direct room, or 0.
func (r *ChatRoom) OtherUserID(userID int64) int64 {
	if r.RoomType != RoomDirect || r.DirectUser1 == nil || r.DirectUser2 == nil {
		return 0
	}
	switch userID {
	case *r.DirectUser1:
		return *r.DirectUser2
	case *r.DirectUser2:
		return *r.DirectUser1
	}
	return 0
}

// Reactions maps an emoji to the ids of users that reacted with it.
type Reactions map[string][]int64

// Apply adds or removes userID under emoji. Emojis left without users are dropped.
func (r Reactions) Apply(emoji string, userID int64, add bool) Reactions {
	out := make(Reactions, len(r)+1)
	for k, v := range r {
		out[k] = append([]int64(nil), v...)
	}

	users := out[emoji]
	idx := -1
	for i, id := range users {
		if id == userID {
			idx = i
			break
		}
	}
	switch {
	case add && idx < 0:
		users = append(users, userID)
		sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	case !add && idx >= 0:
		users = append(users[:idx], users[idx+1:]...)
	}
	if len(users) == 0 {
		delete(out, emoji)
	} else {
		out[emoji] = users
	}
	return out
}

type ChatMessage struct {
	ID          uuid.UUID        `json:"id"`
	RoomID      uuid.UUID        `json:"room"`
	SenderID    int64            `json:"-"`
	Sender      *ChatParticipant `json:"sender"`
	Content     string           `json:"content"`
	MessageType string           `json:"message_type"`
	ReplyTo     *uuid.UUID       `json:"reply_to"`
	Reactions   Reactions        `json:"reactions"`
	ReadBy      []int64          `json:"read_by"`
	Timestamp   time.Time        `json:"timestamp"`
	EditedAt    *time.Time       `json:"edited_at"`
	IsEdited    bool             `json:"is_edited"`
	IsDeleted   bool             `json:"-"`
}

type TypingUser struct {
	RoomID   uuid.UUID `json:"room"`
	UserID   int64     `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
	LastSeen time.Time `json:"last_seen"`
}
