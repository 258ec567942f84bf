package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// TypingTracker remembers who is typing in a room for domain.TypingTTL.
// State lives in a Redis sorted set per room (score = last seen, unix ms),
// or in process memory when Redis is absent or failing.
type TypingTracker struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	local map[uuid.UUID]map[int64]time.Time
}

func NewTypingTracker(rdb *redis.Client) *TypingTracker {
	return &TypingTracker{
		rdb:   rdb,
		ttl:   domain.TypingTTL,
		now:   time.Now,
		local: make(map[uuid.UUID]map[int64]time.Time),
	}
}

func typingKey(roomID uuid.UUID) string {
	return "chat:typing:" + roomID.String()
}

func (t *TypingTracker) Set(ctx context.Context, roomID uuid.UUID, userID int64, typing bool) {
	now := t.now()
	if t.rdb != nil {
		err := t.setRedis(ctx, roomID, userID, typing, now)
		if err == nil {
			return
		}
		logger.WithContext(ctx).Warn("typing state write failed, using local state", "error", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.local[roomID]
	if !typing {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.local, roomID)
		}
		return
	}
	if users == nil {
		users = make(map[int64]time.Time)
		t.local[roomID] = users
	}
	users[userID] = now
}

func (t *TypingTracker) setRedis(ctx context.Context, roomID uuid.UUID, userID int64, typing bool, now time.Time) error {
	key := typingKey(roomID)
	member := strconv.FormatInt(userID, 10)
	if !typing {
		return t.rdb.ZRem(ctx, key, member).Err()
	}
	pipe := t.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, 2*t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Active lists users seen typing within the TTL, oldest first.
func (t *TypingTracker) Active(ctx context.Context, roomID uuid.UUID) []domain.TypingUser {
	cutoff := t.now().Add(-t.ttl)
	if t.rdb != nil {
		out, err := t.activeRedis(ctx, roomID, cutoff)
		if err == nil {
			return out
		}
		logger.WithContext(ctx).Warn("typing state read failed, using local state", "error", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := []domain.TypingUser{}
	for uid, seen := range t.local[roomID] {
		if seen.Before(cutoff) {
			delete(t.local[roomID], uid)
			continue
		}
		out = append(out, domain.TypingUser{RoomID: roomID, UserID: uid, IsTyping: true, LastSeen: seen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.Before(out[j].LastSeen) })
	return out
}

func (t *TypingTracker) activeRedis(ctx context.Context, roomID uuid.UUID, cutoff time.Time) ([]domain.TypingUser, error) {
	key := typingKey(roomID)
	floor := strconv.FormatInt(cutoff.UnixMilli(), 10)
	if err := t.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+floor).Err(); err != nil {
		return nil, err
	}
	entries, err := t.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.TypingUser, 0, len(entries))
	for _, z := range entries {
		member, _ := z.Member.(string)
		uid, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.TypingUser{
			RoomID:   roomID,
			UserID:   uid,
			IsTyping: true,
			LastSeen: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}
