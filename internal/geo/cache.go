package geo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nxfs_api/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a successful lookup is reused.
const DefaultCacheTTL = 30 * 24 * time.Hour

// CachedGeocoder keeps successful lookups in Redis. A nil client or a Redis
// error falls through to the wrapped geocoder.
type CachedGeocoder struct {
	next Geocoder
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedGeocoder(next Geocoder, rdb *redis.Client, ttl time.Duration) *CachedGeocoder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGeocoder{next: next, rdb: rdb, ttl: ttl}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, addr Address) (*Result, error) {
	if addr.Empty() {
		return nil, ErrEmptyAddress
	}
	key := addr.CacheKey()

	if g.rdb != nil {
		raw, err := g.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var res Result
			if jerr := json.Unmarshal(raw, &res); jerr == nil {
				CacheLookups.WithLabelValues("hit").Inc()
				return &res, nil
			}
			CacheLookups.WithLabelValues("error").Inc()
		case errors.Is(err, redis.Nil):
			CacheLookups.WithLabelValues("miss").Inc()
		default:
			CacheLookups.WithLabelValues("error").Inc()
			logger.Warn("geocode cache read failed", "key", key, "error", err)
		}
	}

	res, err := g.next.Geocode(ctx, addr)
	if err != nil {
		return nil, err
	}

	if g.rdb != nil {
		if raw, jerr := json.Marshal(res); jerr == nil {
			if serr := g.rdb.Set(ctx, key, raw, g.ttl).Err(); serr != nil {
				logger.Warn("geocode cache write failed", "key", key, "error", serr)
			}
		}
	}
	return res, nil
}
