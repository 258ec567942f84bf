package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"nxfs_api/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// fakeChatStore keeps rooms and messages in memory.
type fakeChatStore struct {
	users    map[int64]domain.ChatParticipant
	rooms    map[uuid.UUID]*domain.ChatRoom
	members  map[uuid.UUID][]int64
	messages map[uuid.UUID]*domain.ChatMessage
	order    []uuid.UUID
	reads    map[readKey]bool
}

type readKey struct {
	message uuid.UUID
	user    int64
}

func newFakeChatStore(userIDs ...int64) *fakeChatStore {
	f := &fakeChatStore{
		users:    map[int64]domain.ChatParticipant{},
		rooms:    map[uuid.UUID]*domain.ChatRoom{},
		members:  map[uuid.UUID][]int64{},
		messages: map[uuid.UUID]*domain.ChatMessage{},
		reads:    map[readKey]bool{},
	}
	for _, id := range userIDs {
		f.users[id] = domain.ChatParticipant{ID: id, Email: "u@example.com"}
	}
	return f
}

func (f *fakeChatStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if _, ok := f.users[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: id, IsActive: true}, nil
}

func (f *fakeChatStore) isMember(roomID uuid.UUID, userID int64) bool {
	for _, id := range f.members[roomID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (f *fakeChatStore) CreateRoom(_ context.Context, room *domain.ChatRoom, participants []int64) error {
	if room.RoomType == domain.RoomDirect {
		for _, r := range f.rooms {
			if r.RoomType == domain.RoomDirect && *r.DirectUser1 == *room.DirectUser1 && *r.DirectUser2 == *room.DirectUser2 {
				return &domain.ConflictError{Field: "user_id"}
			}
		}
	}
	for _, id := range participants {
		if _, ok := f.users[id]; !ok {
			return domain.NewValidationError("participant_ids", "Invalid pk - object does not exist.")
		}
	}
	room.IsActive = true
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	cp := *room
	f.rooms[room.ID] = &cp
	f.members[room.ID] = append([]int64(nil), participants...)
	return nil
}

func (f *fakeChatStore) DirectRoom(_ context.Context, _ int64, user1, user2 int64) (*domain.ChatRoom, error) {
	for _, r := range f.rooms {
		if r.RoomType == domain.RoomDirect && *r.DirectUser1 == user1 && *r.DirectUser2 == user2 {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeChatStore) GetRoom(_ context.Context, userID int64, roomID uuid.UUID) (*domain.ChatRoom, error) {
	r, ok := f.rooms[roomID]
	if !ok || !f.isMember(roomID, userID) {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeChatStore) ListRooms(_ context.Context, userID int64) ([]*domain.ChatRoom, error) {
	out := []*domain.ChatRoom{}
	for id, r := range f.rooms {
		if f.isMember(id, userID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeChatStore) SearchRooms(ctx context.Context, userID int64, _ string) ([]*domain.ChatRoom, error) {
	return f.ListRooms(ctx, userID)
}

func (f *fakeChatStore) Participants(_ context.Context, roomID uuid.UUID) ([]domain.ChatParticipant, error) {
	out := []domain.ChatParticipant{}
	for _, id := range f.members[roomID] {
		out = append(out, f.users[id])
	}
	return out, nil
}

func (f *fakeChatStore) IsParticipant(_ context.Context, roomID uuid.UUID, userID int64) (bool, error) {
	return f.isMember(roomID, userID), nil
}

func (f *fakeChatStore) RemoveParticipant(_ context.Context, roomID uuid.UUID, userID int64) error {
	ids := f.members[roomID]
	for i, id := range ids {
		if id == userID {
			f.members[roomID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeChatStore) CreateMessage(_ context.Context, m *domain.ChatMessage) error {
	m.Timestamp = time.Now()
	cp := *m
	f.messages[m.ID] = &cp
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeChatStore) GetMessage(_ context.Context, roomID, id uuid.UUID) (*domain.ChatMessage, error) {
	m, ok := f.messages[id]
	if !ok || m.RoomID != roomID || m.IsDeleted {
		return nil, domain.ErrNotFound
	}
	cp := *m
	sender := f.users[m.SenderID]
	cp.Sender = &sender
	return &cp, nil
}

func (f *fakeChatStore) LastMessage(ctx context.Context, roomID uuid.UUID) (*domain.ChatMessage, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		if m, err := f.GetMessage(ctx, roomID, f.order[i]); err == nil {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeChatStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	out := []*domain.ChatMessage{}
	for _, id := range f.order {
		if m, err := f.GetMessage(ctx, roomID, id); err == nil {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeChatStore) SearchMessages(context.Context, int64, string, int) ([]*domain.ChatMessage, error) {
	return []*domain.ChatMessage{}, nil
}

func (f *fakeChatStore) UpdateMessage(_ context.Context, m *domain.ChatMessage) error {
	if _, ok := f.messages[m.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *m
	f.messages[m.ID] = &cp
	return nil
}

func (f *fakeChatStore) MarkRoomRead(_ context.Context, roomID uuid.UUID, userID int64) (int64, error) {
	var n int64
	for _, m := range f.messages {
		key := readKey{m.ID, userID}
		if m.RoomID == roomID && m.SenderID != userID && !m.IsDeleted && !f.reads[key] {
			f.reads[key] = true
			n++
		}
	}
	return n, nil
}

func (f *fakeChatStore) MarkMessageRead(_ context.Context, messageID uuid.UUID, userID int64) (bool, error) {
	key := readKey{messageID, userID}
	if f.reads[key] {
		return false, nil
	}
	f.reads[key] = true
	return true, nil
}

func newChatService(users ...int64) (*ChatService, *fakeChatStore, *recordingPublisher) {
	store := newFakeChatStore(users...)
	pub := &recordingPublisher{}
	return NewChatService(store, store, nil, pub), store, pub
}

func fieldErr(t *testing.T, err error, field string) {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields[field]) == 0 {
		t.Fatalf("expected %s field error, got %v", field, err)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	svc, _, _ := newChatService(1, 2)
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, 1, RoomInput{RoomType: domain.RoomDirect, ParticipantIDs: []int64{2}})
	fieldErr(t, err, "room_type")

	_, err = svc.CreateRoom(ctx, 1, RoomInput{RoomType: domain.RoomGroup, ParticipantIDs: []int64{1}})
	fieldErr(t, err, "participant_ids")

	_, err = svc.CreateRoom(ctx, 1, RoomInput{RoomType: "lobby"})
	fieldErr(t, err, "room_type")

	_, err = svc.CreateRoom(ctx, 1, RoomInput{RoomType: domain.RoomGroup, ParticipantIDs: []int64{99}})
	fieldErr(t, err, "participant_ids")
}

func TestCreateRoomAddsCreatorAndNotifiesMembers(t *testing.T) {
	svc, _, pub := newChatService(1, 2, 3)
	name := "  Site crew  "
	room, err := svc.CreateRoom(context.Background(), 1, RoomInput{Name: &name, ParticipantIDs: []int64{2, 3, 2}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.RoomType != domain.RoomGroup || room.Name == nil || *room.Name != "Site crew" {
		t.Fatalf("unexpected room %+v", room)
	}
	if len(room.Participants) != 3 {
		t.Fatalf("participants = %+v", room.Participants)
	}
	if got := pub.sentTo(EventChatRoomCreated); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("room_created recipients = %v", got)
	}
}

func TestDirectRoomIsCanonical(t *testing.T) {
	svc, _, _ := newChatService(1, 2)
	ctx := context.Background()

	_, _, err := svc.DirectRoom(ctx, 1, 1)
	fieldErr(t, err, "user_id")
	_, _, err = svc.DirectRoom(ctx, 1, 42)
	fieldErr(t, err, "user_id")

	first, created, err := svc.DirectRoom(ctx, 2, 1)
	if err != nil || !created {
		t.Fatalf("first direct room: created=%v err=%v", created, err)
	}
	if first.OtherUser == nil || first.OtherUser.ID != 1 {
		t.Fatalf("other_user = %+v", first.OtherUser)
	}
	again, created, err := svc.DirectRoom(ctx, 1, 2)
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("expected the same room, got %v created=%v err=%v", again.ID, created, err)
	}
	if again.OtherUser == nil || again.OtherUser.ID != 2 {
		t.Fatalf("other_user from user 1 = %+v", again.OtherUser)
	}
	if err := svc.LeaveRoom(ctx, 1, first.ID); err == nil {
		t.Fatalf("leaving a direct room must fail")
	}
}

func TestSendMessage(t *testing.T) {
	svc, _, pub := newChatService(1, 2, 3)
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SendMessage(ctx, 3, room.ID, MessageInput{Content: "hi"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("outsider must not post, got %v", err)
	}
	_, err = svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "   "})
	fieldErr(t, err, "content")
	missing := uuid.New()
	_, err = svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "re", ReplyTo: &missing})
	fieldErr(t, err, "reply_to")
	_, err = svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "x", MessageType: "image"})
	fieldErr(t, err, "message_type")

	m, err := svc.SendMessage(ctx, 2, room.ID, MessageInput{Content: "  on my way "})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Content != "on my way" || m.MessageType != domain.MessageText || m.Sender == nil || m.Sender.ID != 2 {
		t.Fatalf("unexpected message %+v", m)
	}
	if got := pub.sentTo(EventChatMessage); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("chat_message recipients = %v", got)
	}

	reply, err := svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "ok", ReplyTo: &m.ID})
	if err != nil || reply.ReplyTo == nil || *reply.ReplyTo != m.ID {
		t.Fatalf("reply: %+v %v", reply, err)
	}

	got, err := svc.GetRoom(ctx, 2, room.ID)
	if err != nil || got.LastMessage == nil || got.LastMessage.ID != reply.ID {
		t.Fatalf("last message not set: %+v %v", got, err)
	}
}

func TestEditAndDeleteOnlyBySender(t *testing.T) {
	svc, store, pub := newChatService(1, 2)
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2}})
	m, _ := svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "draft"})

	edit := "final"
	if _, err := svc.EditMessage(ctx, 2, room.ID, m.ID, MessageUpdate{Content: &edit}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, 2, room.ID, m.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	edited, err := svc.EditMessage(ctx, 1, room.ID, m.ID, MessageUpdate{Content: &edit})
	if err != nil || edited.Content != "final" || !edited.IsEdited || edited.EditedAt == nil {
		t.Fatalf("edit: %+v %v", edited, err)
	}

	if err := svc.DeleteMessage(ctx, 1, room.ID, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !store.messages[m.ID].IsDeleted {
		t.Fatalf("message must be soft deleted")
	}
	if _, err := store.GetMessage(ctx, room.ID, m.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted message still visible")
	}
	if got := pub.sentTo(EventChatMessageDeleted); len(got) != 2 {
		t.Fatalf("delete event recipients = %v", got)
	}
}

func TestReactAddsAndRemoves(t *testing.T) {
	svc, _, _ := newChatService(1, 2)
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2}})
	m, _ := svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "done"})

	if _, err := svc.React(ctx, 2, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "toggle"}); err == nil {
		t.Fatalf("invalid action accepted")
	}
	r, err := svc.React(ctx, 2, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "add"})
	if err != nil || len(r["👍"]) != 1 || r["👍"][0] != 2 {
		t.Fatalf("add: %v %v", r, err)
	}
	svc.React(ctx, 1, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "add"})
	r, _ = svc.React(ctx, 1, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "add"})
	if got := r["👍"]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("repeated add must not duplicate: %v", got)
	}
	svc.React(ctx, 1, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "remove"})
	r, _ = svc.React(ctx, 2, room.ID, m.ID, ReactionInput{Emoji: "👍", Action: "remove"})
	if _, ok := r["👍"]; ok {
		t.Fatalf("emoji without users must be dropped: %v", r)
	}
}

func TestLeaveGroupRoom(t *testing.T) {
	svc, _, pub := newChatService(1, 2, 3)
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2, 3}})

	if err := svc.LeaveRoom(ctx, 3, room.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := svc.GetRoom(ctx, 3, room.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("left user still sees the room: %v", err)
	}
	if got := pub.sentTo(EventChatLeft); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("chat_left recipients = %v", got)
	}
}

func TestReadReceipts(t *testing.T) {
	svc, _, pub := newChatService(1, 2)
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2}})
	m, _ := svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "a"})
	svc.SendMessage(ctx, 1, room.ID, MessageInput{Content: "b"})

	already, err := svc.MarkMessageRead(ctx, 2, room.ID, m.ID)
	if err != nil || already {
		t.Fatalf("first read: already=%v err=%v", already, err)
	}
	already, _ = svc.MarkMessageRead(ctx, 2, room.ID, m.ID)
	if !already {
		t.Fatalf("second read must report already read")
	}
	if got := pub.sentTo(EventChatRead); len(got) != 1 || got[0] != 1 {
		t.Fatalf("sender should get one read receipt, got %v", got)
	}

	n, err := svc.MarkRoomRead(ctx, 2, room.ID)
	if err != nil || n != 1 {
		t.Fatalf("mark room read: n=%d err=%v", n, err)
	}
}

func TestTypingIndicators(t *testing.T) {
	svc, _, pub := newChatService(1, 2)
	ctx := context.Background()
	room, _ := svc.CreateRoom(ctx, 1, RoomInput{ParticipantIDs: []int64{2}})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.typing.now = func() time.Time { return now }

	if err := svc.SetTyping(ctx, 2, room.ID, true); err != nil {
		t.Fatal(err)
	}
	if got := pub.sentTo(EventChatTyping); len(got) != 1 || got[0] != 1 {
		t.Fatalf("typing must reach the other participant only, got %v", got)
	}
	users, _ := svc.TypingUsers(ctx, 1, room.ID)
	if len(users) != 1 || users[0].UserID != 2 {
		t.Fatalf("typing users = %+v", users)
	}

	now = now.Add(domain.TypingTTL + time.Second)
	if users, _ := svc.TypingUsers(ctx, 1, room.ID); len(users) != 0 {
		t.Fatalf("stale typing indicator kept: %+v", users)
	}

	svc.SetTyping(ctx, 2, room.ID, true)
	svc.SendMessage(ctx, 2, room.ID, MessageInput{Content: "sent"})
	if users, _ := svc.TypingUsers(ctx, 1, room.ID); len(users) != 0 {
		t.Fatalf("sending must clear typing: %+v", users)
	}
}

func TestTypingTrackerRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tracker := NewTypingTracker(rdb)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	ctx := context.Background()
	roomID := uuid.New()

	tracker.Set(ctx, roomID, 5, true)
	now = now.Add(10 * time.Second)
	tracker.Set(ctx, roomID, 7, true)

	users := tracker.Active(ctx, roomID)
	ids := []int64{}
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 7 {
		t.Fatalf("active = %v", ids)
	}
	if !mr.Exists(typingKey(roomID)) {
		t.Fatalf("typing state not stored in redis")
	}

	now = now.Add(25 * time.Second)
	if users := tracker.Active(ctx, roomID); len(users) != 1 || users[0].UserID != 7 {
		t.Fatalf("expired entry kept: %+v", users)
	}

	tracker.Set(ctx, roomID, 7, false)
	if users := tracker.Active(ctx, roomID); len(users) != 0 {
		t.Fatalf("stopped typing still listed: %+v", users)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	svc, _, _ := newChatService(1)
	_, err := svc.SearchMessages(context.Background(), 1, "  ")
	fieldErr(t, err, "q")
	_, err = svc.SearchRooms(context.Background(), 1, "")
	fieldErr(t, err, "q")
}
