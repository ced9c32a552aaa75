package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
)

// ClaimLimiter throttles pull calls per buyer with a fixed one-minute
// window in Redis. A nil limiter (no Redis configured) allows everything.
type ClaimLimiter struct {
	client *redis.Client
	limit  int
}

func NewClaimLimiter(client *redis.Client, perMinute int) *ClaimLimiter {
	if client == nil || perMinute <= 0 {
		return nil
	}
	return &ClaimLimiter{client: client, limit: perMinute}
}

func (l *ClaimLimiter) Allow(ctx context.Context, buyerID snowflake.ID) (bool, error) {
	if l == nil {
		return true, nil
	}

	window := time.Now().UTC().Unix() / 60
	key := fmt.Sprintf("packetpool:claims:%d:%d", buyerID, window)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open: the DB row locks are the correctness boundary, the
		// limiter only sheds load.
		return true, err
	}
	if count == 1 {
		l.client.Expire(ctx, key, time.Minute)
	}
	return count <= int64(l.limit), nil
}
