package acceptance

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetclaim/internal/types"
)

// Guard suppresses duplicate claim submissions from the same operator for the same order
// while one is in flight. It does not arbitrate between operators; the authority does.
type Guard interface {
	Acquire(ctx context.Context, orderID, operatorID types.ID) (bool, error)
	Release(ctx context.Context, orderID, operatorID types.ID) error
}

type RedisGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisGuard(rdb redis.Cmdable, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func guardKey(orderID, operatorID types.ID) string {
	return "claim:" + orderID.String() + ":" + operatorID.String()
}

func (g *RedisGuard) Acquire(ctx context.Context, orderID, operatorID types.ID) (bool, error) {
	return g.rdb.SetNX(ctx, guardKey(orderID, operatorID), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, orderID, operatorID types.ID) error {
	return g.rdb.Del(ctx, guardKey(orderID, operatorID)).Err()
}

// NoopGuard always grants.
type NoopGuard struct{}

func (NoopGuard) Acquire(context.Context, types.ID, types.ID) (bool, error) { return true, nil }
func (NoopGuard) Release(context.Context, types.ID, types.ID) error         { return nil }
