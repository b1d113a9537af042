package acceptance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetclaim/internal/modules/assignment"
)

type captureWriter struct {
	msgs []kafka.Message
	ctx  context.Context
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.ctx = ctx
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, Event{
		Type:         EventClaimed,
		OccurredAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		OrderID:      "42",
		AssignmentID: "a1",
		OperatorID:   "op1",
		Status:       assignment.StatusPending,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, "assignment.claimed", string(w.msgs[0].Headers[0].Value))
	// The caller's cancellation does not abort publishing.
	assert.NoError(t, w.ctx.Err())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "PENDING", body["assignment_status"])
	assert.Equal(t, "a1", body["assignment_id"])
}

func TestGuardKey(t *testing.T) {
	assert.Equal(t, "claim:42:op1", guardKey("42", "op1"))
}
