package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"

	"github.com/google/uuid"
)

type ChatStore interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom, participants []int64) error
	DirectRoom(ctx context.Context, viewer, user1, user2 int64) (*domain.ChatRoom, error)
	GetRoom(ctx context.Context, userID int64, roomID uuid.UUID) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context, userID int64) ([]*domain.ChatRoom, error)
	SearchRooms(ctx context.Context, userID int64, q string) ([]*domain.ChatRoom, error)
	Participants(ctx context.Context, roomID uuid.UUID) ([]domain.ChatParticipant, error)
	IsParticipant(ctx context.Context, roomID uuid.UUID, userID int64) (bool, error)
	RemoveParticipant(ctx context.Context, roomID uuid.UUID, userID int64) error
	CreateMessage(ctx context.Context, m *domain.ChatMessage) error
	GetMessage(ctx context.Context, roomID, id uuid.UUID) (*domain.ChatMessage, error)
	LastMessage(ctx context.Context, roomID uuid.UUID) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	SearchMessages(ctx context.Context, userID int64, q string, limit int) ([]*domain.ChatMessage, error)
	UpdateMessage(ctx context.Context, m *domain.ChatMessage) error
	MarkRoomRead(ctx context.Context, roomID uuid.UUID, userID int64) (int64, error)
	MarkMessageRead(ctx context.Context, messageID uuid.UUID, userID int64) (bool, error)
}

// UserGetter resolves users referenced by id in requests.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

const (
	chatMessageLimit = 200
	chatSearchLimit  = 50
	maxRoomName      = 100
	maxEmojiLength   = 50
)

// ChatService manages rooms and messages. Every change is pushed to the
// room's participants through the Publisher.
type ChatService struct {
	store  ChatStore
	users  UserGetter
	typing *TypingTracker
	events Publisher
	now    func() time.Time
}

func NewChatService(store ChatStore, users UserGetter, typing *TypingTracker, events Publisher) *ChatService {
	if typing == nil {
		typing = NewTypingTracker(nil)
	}
	return &ChatService{store: store, users: users, typing: typing, events: publisherOrNop(events), now: time.Now}
}

type RoomInput struct {
	Name           *string `json:"name"`
	RoomType       string  `json:"room_type"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

type MessageInput struct {
	Content     string     `json:"content"`
	MessageType string     `json:"message_type"`
	ReplyTo     *uuid.UUID `json:"reply_to"`
}

type MessageUpdate struct {
	Content   *string `json:"content"`
	IsDeleted *bool   `json:"is_deleted"`
}

type ReactionInput struct {
	Emoji  string `json:"emoji" binding:"required"`
	Action string `json:"action" binding:"required,oneof=add remove"`
}

func (s *ChatService) ListRooms(ctx context.Context, userID int64) ([]*domain.ChatRoom, error) {
	rooms, err := s.store.ListRooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rooms, s.decorateAll(ctx, userID, rooms)
}

func (s *ChatService) GetRoom(ctx context.Context, userID int64, roomID uuid.UUID) (*domain.ChatRoom, error) {
	room, err := s.store.GetRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	return room, s.decorate(ctx, userID, room)
}

func (s *ChatService) CreateRoom(ctx context.Context, userID int64, in RoomInput) (*domain.ChatRoom, error) {
	verr := &domain.ValidationError{Message: "Invalid input data"}

	roomType := in.RoomType
	if roomType == "" {
		roomType = domain.RoomGroup
	}
	switch {
	case !domain.ValidRoomType(roomType):
		verr.Add("room_type", fmt.Sprintf("%q is not a valid choice.", roomType))
	case roomType == domain.RoomDirect:
		verr.Add("room_type", "Use the direct message endpoint for direct rooms.")
	}

	var name *string
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if utf8.RuneCountInString(n) > maxRoomName {
			verr.Add("name", "Ensure this field has no more than 100 characters.")
		}
		if n != "" {
			name = &n
		}
	}

	others := uniqueIDs(in.ParticipantIDs, userID)
	if (roomType == domain.RoomGroup || roomType == domain.RoomProject) && len(others) == 0 {
		verr.Add("participant_ids", "Group and project rooms must have participants")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	room := &domain.ChatRoom{ID: uuid.New(), Name: name, RoomType: roomType, CreatedBy: &userID}
	members := append([]int64{userID}, others...)
	if err := s.store.CreateRoom(ctx, room, members); err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, userID, room); err != nil {
		return nil, err
	}
	for _, uid := range members {
		s.events.PublishToUser(uid, EventChatRoomCreated, room)
	}
	return room, nil
}

// DirectRoom returns the direct room between userID and otherID, creating it
// on first use. created reports whether a new room was made.
func (s *ChatService) DirectRoom(ctx context.Context, userID, otherID int64) (room *domain.ChatRoom, created bool, err error) {
	if otherID == userID {
		return nil, false, domain.NewValidationError("user_id", "Cannot start a direct message with yourself")
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.NewValidationError("user_id", "User not found")
		}
		return nil, false, err
	}

	a, b := domain.DirectPair(userID, otherID)
	room, err = s.store.DirectRoom(ctx, userID, a, b)
	if errors.Is(err, domain.ErrNotFound) {
		room = &domain.ChatRoom{ID: uuid.New(), RoomType: domain.RoomDirect, CreatedBy: &userID, DirectUser1: &a, DirectUser2: &b}
		err = s.store.CreateRoom(ctx, room, []int64{a, b})
		if errors.Is(err, domain.ErrConflict) {
			// lost a race with the other side creating the same room
			room, err = s.store.DirectRoom(ctx, userID, a, b)
		} else if err == nil {
			created = true
		}
	}
	if err != nil {
		return nil, false, err
	}
	if err := s.decorate(ctx, userID, room); err != nil {
		return nil, false, err
	}
	if created {
		s.events.PublishToUser(otherID, EventChatRoomCreated, room)
	}
	return room, created, nil
}

func (s *ChatService) LeaveRoom(ctx context.Context, userID int64, roomID uuid.UUID) error {
	room, err := s.store.GetRoom(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if room.RoomType == domain.RoomDirect {
		return domain.NewValidationError("non_field_errors", "Cannot leave direct message rooms")
	}
	if err := s.store.RemoveParticipant(ctx, roomID, userID); err != nil {
		return err
	}
	s.typing.Set(ctx, roomID, userID, false)
	s.publishRoom(ctx, roomID, 0, EventChatLeft, map[string]any{"room": roomID, "user_id": userID})
	return nil
}

// CanJoin returns ErrNotFound unless userID participates in the room.
func (s *ChatService) CanJoin(ctx context.Context, userID int64, roomID uuid.UUID) error {
	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ChatService) SetTyping(ctx context.Context, userID int64, roomID uuid.UUID, typing bool) error {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return err
	}
	s.typing.Set(ctx, roomID, userID, typing)
	s.publishRoom(ctx, roomID, userID, EventChatTyping, map[string]any{
		"room":      roomID,
		"user_id":   userID,
		"is_typing": typing,
	})
	return nil
}

func (s *ChatService) TypingUsers(ctx context.Context, userID int64, roomID uuid.UUID) ([]domain.TypingUser, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.typing.Active(ctx, roomID), nil
}

func (s *ChatService) MarkRoomRead(ctx context.Context, userID int64, roomID uuid.UUID) (int64, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkRoomRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publishRoom(ctx, roomID, userID, EventChatRead, map[string]any{"room": roomID, "user_id": userID, "count": n})
	}
	return n, nil
}

func (s *ChatService) ListMessages(ctx context.Context, userID int64, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, roomID, chatMessageLimit)
}

func (s *ChatService) SendMessage(ctx context.Context, userID int64, roomID uuid.UUID, in MessageInput) (*domain.ChatMessage, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}

	verr := &domain.ValidationError{Message: "Invalid input data"}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		verr.Add("content", "Message content cannot be empty")
	}
	msgType := in.MessageType
	if msgType == "" {
		msgType = domain.MessageText
	}
	if msgType != domain.MessageText {
		verr.Add("message_type", fmt.Sprintf("%q is not a valid choice.", msgType))
	}
	if in.ReplyTo != nil {
		if _, err := s.store.GetMessage(ctx, roomID, *in.ReplyTo); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			verr.Add("reply_to", "Cannot reply to a deleted message")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	m := &domain.ChatMessage{
		ID:          uuid.New(),
		RoomID:      roomID,
		SenderID:    userID,
		Content:     content,
		MessageType: msgType,
		ReplyTo:     in.ReplyTo,
		Reactions:   domain.Reactions{},
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	stored, err := s.store.GetMessage(ctx, roomID, m.ID)
	if err != nil {
		return nil, err
	}
	s.typing.Set(ctx, roomID, userID, false)
	s.publishRoom(ctx, roomID, 0, EventChatMessage, stored)
	return stored, nil
}

// ownMessage loads a message the caller sent; other senders get ErrForbidden.
func (s *ChatService) ownMessage(ctx context.Context, userID int64, roomID, msgID uuid.UUID) (*domain.ChatMessage, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	m, err := s.store.GetMessage(ctx, roomID, msgID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, domain.ErrForbidden
	}
	return m, nil
}

func (s *ChatService) EditMessage(ctx context.Context, userID int64, roomID, msgID uuid.UUID, in MessageUpdate) (*domain.ChatMessage, error) {
	m, err := s.ownMessage(ctx, userID, roomID, msgID)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, domain.NewValidationError("content", "Message content cannot be empty")
		}
		now := s.now()
		m.Content = content
		m.EditedAt = &now
		m.IsEdited = true
	}
	if in.IsDeleted != nil && *in.IsDeleted {
		m.IsDeleted = true
	}
	if err := s.store.UpdateMessage(ctx, m); err != nil {
		return nil, err
	}
	if m.IsDeleted {
		s.publishRoom(ctx, roomID, 0, EventChatMessageDeleted, map[string]any{"room": roomID, "id": m.ID})
	} else {
		s.publishRoom(ctx, roomID, 0, EventChatMessageUpdated, m)
	}
	return m, nil
}

// DeleteMessage soft-deletes a message of the caller.
func (s *ChatService) DeleteMessage(ctx context.Context, userID int64, roomID, msgID uuid.UUID) error {
	deleted := true
	_, err := s.EditMessage(ctx, userID, roomID, msgID, MessageUpdate{IsDeleted: &deleted})
	return err
}

func (s *ChatService) React(ctx context.Context, userID int64, roomID, msgID uuid.UUID, in ReactionInput) (domain.Reactions, error) {
	emoji := strings.TrimSpace(in.Emoji)
	if emoji == "" {
		return nil, domain.NewValidationError("emoji", "This field may not be blank.")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLength {
		return nil, domain.NewValidationError("emoji", "Emoji too long")
	}
	if in.Action != "add" && in.Action != "remove" {
		return nil, domain.NewValidationError("action", fmt.Sprintf("%q is not a valid choice.", in.Action))
	}
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	m, err := s.store.GetMessage(ctx, roomID, msgID)
	if err != nil {
		return nil, err
	}
	m.Reactions = m.Reactions.Apply(emoji, userID, in.Action == "add")
	if err := s.store.UpdateMessage(ctx, m); err != nil {
		return nil, err
	}
	s.publishRoom(ctx, roomID, 0, EventChatReaction, map[string]any{"room": roomID, "id": m.ID, "reactions": m.Reactions})
	return m.Reactions, nil
}

// MarkMessageRead reports whether the message had already been read.
func (s *ChatService) MarkMessageRead(ctx context.Context, userID int64, roomID, msgID uuid.UUID) (bool, error) {
	if err := s.CanJoin(ctx, userID, roomID); err != nil {
		return false, err
	}
	m, err := s.store.GetMessage(ctx, roomID, msgID)
	if err != nil {
		return false, err
	}
	created, err := s.store.MarkMessageRead(ctx, m.ID, userID)
	if err != nil {
		return false, err
	}
	if created && m.SenderID != userID {
		s.events.PublishToUser(m.SenderID, EventChatRead, map[string]any{"room": roomID, "id": m.ID, "user_id": userID})
	}
	return !created, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, userID int64, q string) ([]*domain.ChatMessage, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewValidationError("q", "Search query is required")
	}
	return s.store.SearchMessages(ctx, userID, q, chatSearchLimit)
}

func (s *ChatService) SearchRooms(ctx context.Context, userID int64, q string) ([]*domain.ChatRoom, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewValidationError("q", "Search query is required")
	}
	rooms, err := s.store.SearchRooms(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return rooms, s.decorateAll(ctx, userID, rooms)
}

func (s *ChatService) decorateAll(ctx context.Context, userID int64, rooms []*domain.ChatRoom) error {
	for _, r := range rooms {
		if err := s.decorate(ctx, userID, r); err != nil {
			return err
		}
	}
	return nil
}

// decorate fills participants, the last message and the other side of a direct room.
func (s *ChatService) decorate(ctx context.Context, userID int64, room *domain.ChatRoom) error {
	participants, err := s.store.Participants(ctx, room.ID)
	if err != nil {
		return err
	}
	room.Participants = participants

	last, err := s.store.LastMessage(ctx, room.ID)
	switch {
	case err == nil:
		room.LastMessage = last
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if other := room.OtherUserID(userID); other != 0 {
		for i := range participants {
			if participants[i].ID == other {
				room.OtherUser = &participants[i]
			}
		}
	}
	return nil
}

// publishRoom sends an event to every participant except skip.
func (s *ChatService) publishRoom(ctx context.Context, roomID uuid.UUID, skip int64, eventType string, data any) {
	participants, err := s.store.Participants(ctx, roomID)
	if err != nil {
		logger.WithContext(ctx).Warn("chat event not published", "room", roomID, "type", eventType, "error", err)
		return
	}
	for _, p := range participants {
		if p.ID != skip {
			s.events.PublishToUser(p.ID, eventType, data)
		}
	}
}

// uniqueIDs drops duplicates, non-positive ids and self.
func uniqueIDs(ids []int64, self int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
