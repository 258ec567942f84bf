package repository

import (
	"context"
	"encoding/json"

	"nxfs_api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// roomSelect expects the viewing user id as $1 for the unread count.
const roomSelect = `
	SELECT r.id, r.name, r.room_type, r.created_by, r.direct_user1, r.direct_user2,
	       r.is_active, r.created_at, r.updated_at,
	       (SELECT COUNT(*) FROM chat_messages m
	        WHERE m.room_id = r.id AND NOT m.is_deleted AND m.sender_id <> $1
	          AND NOT EXISTS (SELECT 1 FROM chat_message_reads mr
	                          WHERE mr.message_id = m.id AND mr.user_id = $1))
	FROM chat_rooms r`

func scanRoom(row pgx.Row) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	err := row.Scan(&r.ID, &r.Name, &r.RoomType, &r.CreatedBy, &r.DirectUser1, &r.DirectUser2,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.UnreadCount)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRooms(rows pgx.Rows) ([]*domain.ChatRoom, error) {
	defer rows.Close()
	rooms := []*domain.ChatRoom{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

const messageSelect = `
	SELECT m.id, m.room_id, m.sender_id, u.email, u.display_name, m.content, m.message_type,
	       m.reply_to, m.reactions, m.sent_at, m.edited_at, m.is_deleted,
	       COALESCE((SELECT array_agg(mr.user_id ORDER BY mr.user_id)
	                 FROM chat_message_reads mr WHERE mr.message_id = m.id), '{}'::bigint[])
	FROM chat_messages m
	JOIN users u ON u.id = m.sender_id`

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var (
		m         domain.ChatMessage
		sender    domain.ChatParticipant
		reactions []byte
	)
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &sender.Email, &sender.DisplayName, &m.Content,
		&m.MessageType, &m.ReplyTo, &reactions, &m.Timestamp, &m.EditedAt, &m.IsDeleted, &m.ReadBy)
	if err != nil {
		return nil, err
	}
	sender.ID = m.SenderID
	m.Sender = &sender
	m.IsEdited = m.EditedAt != nil
	m.Reactions = domain.Reactions{}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &m.Reactions); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]*domain.ChatMessage, error) {
	defer rows.Close()
	msgs := []*domain.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CreateRoom inserts the room and its participants in one transaction.
func (r *ChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom, participants []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (id, name, room_type, created_by, direct_user1, direct_user2, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		 RETURNING is_active, created_at, updated_at`,
		room.ID, room.Name, room.RoomType, room.CreatedBy, room.DirectUser1, room.DirectUser2,
	).Scan(&room.IsActive, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	for _, uid := range participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_room_participants (room_id, user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, room.ID, uid); err != nil {
			return mapError(err)
		}
	}
	return tx.Commit(ctx)
}

// DirectRoom finds the direct room of an ordered user pair.
func (r *ChatRepository) DirectRoom(ctx context.Context, viewer, user1, user2 int64) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, roomSelect+`
		WHERE r.room_type = 'direct' AND r.direct_user1 = $2 AND r.direct_user2 = $3`,
		viewer, user1, user2))
	if err != nil {
		return nil, mapError(err)
	}
	return room, nil
}

// GetRoom returns an active room only when userID participates in it.
func (r *ChatRepository) GetRoom(ctx context.Context, userID int64, roomID uuid.UUID) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, roomSelect+`
		WHERE r.id = $2 AND r.is_active
		  AND EXISTS (SELECT 1 FROM chat_room_participants p WHERE p.room_id = r.id AND p.user_id = $1)`,
		userID, roomID))
	if err != nil {
		return nil, mapError(err)
	}
	return room, nil
}

func (r *ChatRepository) ListRooms(ctx context.Context, userID int64) ([]*domain.ChatRoom, error) {
	rows, err := r.db.Query(ctx, roomSelect+`
		JOIN chat_room_participants p ON p.room_id = r.id AND p.user_id = $1
		WHERE r.is_active
		ORDER BY r.updated_at DESC
		LIMIT 200`, userID)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// SearchRooms matches the room name or any participant's email or display name.
func (r *ChatRepository) SearchRooms(ctx context.Context, userID int64, q string) ([]*domain.ChatRoom, error) {
	rows, err := r.db.Query(ctx, roomSelect+`
		JOIN chat_room_participants p ON p.room_id = r.id AND p.user_id = $1
		WHERE r.is_active
		  AND (r.name ILIKE '%' || $2 || '%'
		       OR EXISTS (SELECT 1 FROM chat_room_participants op
		                  JOIN users u ON u.id = op.user_id
		                  WHERE op.room_id = r.id
		                    AND (u.email ILIKE '%' || $2 || '%' OR u.display_name ILIKE '%' || $2 || '%')))
		ORDER BY r.updated_at DESC
		LIMIT 50`, userID, q)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

func (r *ChatRepository) Participants(ctx context.Context, roomID uuid.UUID) ([]domain.ChatParticipant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.email, u.display_name
		 FROM chat_room_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.room_id = $1
		 ORDER BY p.joined_at, u.id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ChatParticipant{}
	for rows.Next() {
		var p domain.ChatParticipant
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ChatRepository) IsParticipant(ctx context.Context, roomID uuid.UUID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_room_participants p
		                JOIN chat_rooms r ON r.id = p.room_id
		                WHERE p.room_id = $1 AND p.user_id = $2 AND r.is_active)`,
		roomID, userID).Scan(&ok)
	return ok, err
}

func (r *ChatRepository) RemoveParticipant(ctx context.Context, roomID uuid.UUID, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chat_room_participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateMessage stores m and bumps the room's updated_at.
func (r *ChatRepository) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	reactions, _ := json.Marshal(m.Reactions)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, content, message_type, reply_to, reactions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING sent_at`,
		m.ID, m.RoomID, m.SenderID, m.Content, m.MessageType, m.ReplyTo, reactions,
	).Scan(&m.Timestamp)
	if err != nil {
		return mapError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE chat_rooms SET updated_at = NOW() WHERE id = $1`, m.RoomID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetMessage returns a non-deleted message of roomID.
func (r *ChatRepository) GetMessage(ctx context.Context, roomID, id uuid.UUID) (*domain.ChatMessage, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, messageSelect+`
		WHERE m.id = $1 AND m.room_id = $2 AND NOT m.is_deleted`, id, roomID))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (r *ChatRepository) LastMessage(ctx context.Context, roomID uuid.UUID) (*domain.ChatMessage, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, messageSelect+`
		WHERE m.room_id = $1 AND NOT m.is_deleted
		ORDER BY m.sent_at DESC
		LIMIT 1`, roomID))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

// ListMessages returns the newest limit messages in chronological order.
func (r *ChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM (`+messageSelect+`
		WHERE m.room_id = $1 AND NOT m.is_deleted
		ORDER BY m.sent_at DESC
		LIMIT $2) recent ORDER BY sent_at`, roomID, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *ChatRepository) SearchMessages(ctx context.Context, userID int64, q string, limit int) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, messageSelect+`
		JOIN chat_room_participants p ON p.room_id = m.room_id AND p.user_id = $1
		WHERE NOT m.is_deleted AND m.content ILIKE '%' || $2 || '%'
		ORDER BY m.sent_at DESC
		LIMIT $3`, userID, q, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// UpdateMessage writes content, edit time, deletion flag and reactions.
func (r *ChatRepository) UpdateMessage(ctx context.Context, m *domain.ChatMessage) error {
	reactions, _ := json.Marshal(m.Reactions)
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_messages
		 SET content = $2, edited_at = $3, is_deleted = $4, reactions = $5
		 WHERE id = $1`,
		m.ID, m.Content, m.EditedAt, m.IsDeleted, reactions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkRoomRead records a read for every unread message in the room and returns how many.
func (r *ChatRepository) MarkRoomRead(ctx context.Context, roomID uuid.UUID, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO chat_message_reads (message_id, user_id)
		 SELECT m.id, $2 FROM chat_messages m
		 WHERE m.room_id = $1 AND NOT m.is_deleted
		 ON CONFLICT DO NOTHING`, roomID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkMessageRead reports whether a new read receipt was created.
func (r *ChatRepository) MarkMessageRead(ctx context.Context, messageID uuid.UUID, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO chat_message_reads (message_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, messageID, userID)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}
