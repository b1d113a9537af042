package acceptance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetclaim/internal/types"
)

func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("FLEETCLAIM_TEST_REDIS")
	if addr == "" {
		t.Skip("FLEETCLAIM_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	g := NewRedisGuard(rdb, time.Minute)
	order := types.ID(uuid.NewString())

	ok, err := g.Acquire(ctx, order, "op1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, order, "op1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire by the same operator must be refused")

	ok, err = g.Acquire(ctx, order, "op2")
	require.NoError(t, err)
	assert.True(t, ok, "other operators are not blocked locally")

	require.NoError(t, g.Release(ctx, order, "op1"))
	ok, err = g.Acquire(ctx, order, "op1")
	require.NoError(t, err)
	assert.True(t, ok)
}
