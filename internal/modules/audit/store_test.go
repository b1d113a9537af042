package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetclaim/internal/infra"
	"fleetclaim/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FLEETCLAIM_TEST_DSN")
	if dsn == "" {
		t.Skip("FLEETCLAIM_TEST_DSN not set")
	}
	require.NoError(t, infra.Migrate(dsn, Migrations, "migrations"))
	ctx := context.Background()
	pool, err := infra.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewStore(pool)
}

func TestStore_AppendAndByOrder(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orderID := types.ID("order-" + uuid.NewString())

	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	require.NoError(t, store.Append(ctx, Entry{
		OccurredAt: first,
		Operation:  OpAccept,
		OrderID:    orderID,
		OperatorID: "op1",
		Outcome:    "conflict",
		Detail:     "already taken",
	}))
	require.NoError(t, store.Append(ctx, Entry{
		Operation:    OpBind,
		OrderID:      orderID,
		AssignmentID: "a1",
		OperatorID:   "op2",
		DriverID:     "d1",
		CarID:        "c1",
		Outcome:      "ok",
	}))

	got, err := store.ByOrder(ctx, orderID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, OpAccept, got[0].Operation)
	assert.True(t, got[0].OccurredAt.Equal(first))
	assert.Equal(t, types.ID("d1"), got[1].DriverID)
	assert.NotEqual(t, uuid.Nil, got[1].ID)
}
