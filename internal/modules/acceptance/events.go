package acceptance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/types"
)

type EventType string

const (
	EventClaimed      EventType = "assignment.claimed"
	EventBound        EventType = "assignment.bound"
	EventTransitioned EventType = "assignment.transitioned"
)

// Event is published after a successful mutation at the authority.
type Event struct {
	Type         EventType         `json:"type"`
	OccurredAt   time.Time         `json:"occurred_at"`
	OrderID      types.ID          `json:"order_id"`
	AssignmentID types.ID          `json:"assignment_id"`
	OperatorID   types.ID          `json:"operator_id"`
	DriverID     types.ID          `json:"driver_id,omitempty"`
	CarID        types.ID          `json:"car_id,omitempty"`
	Status       assignment.Status `json:"assignment_status"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher keys messages by order id so one order's events stay ordered.
type KafkaPublisher struct {
	w       MessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, timeout: 2 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
