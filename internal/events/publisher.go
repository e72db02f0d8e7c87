package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"agrivoltaic-dashboard/internal/models"
)

// PlaybackEvent is published after every playback step
type PlaybackEvent struct {
	SessionID  string                                    `json:"session_id"`
	Cursor     int                                       `json:"cursor"`
	TotalRows  int                                       `json:"total_rows"`
	Completed  bool                                      `json:"completed"`
	ObservedAt time.Time                                 `json:"observed_at"`
	Values     map[models.Site]map[models.Field]*float64 `json:"values"`
	EmittedAt  time.Time                                 `json:"emitted_at"`
}

// Publisher delivers playback events
type Publisher interface {
	PublishPlayback(ctx context.Context, event PlaybackEvent) error
	Close() error
}

// messageWriter is the part of kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes playback events to a Kafka topic keyed by session,
// so one session's steps stay ordered within a partition
type KafkaPublisher struct {
	writer messageWriter
}

// publishBatchTimeout bounds how long a synchronous write waits for more
// messages before flushing
const publishBatchTimeout = 5 * time.Millisecond

// NewKafkaPublisher creates a new Kafka producer. Each playback step is
// flushed on its own so an advance request is not held for a batch.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchSize:    1,
			BatchTimeout: publishBatchTimeout,
			Async:        false,
		},
	}
}

// PublishPlayback sends one event
func (p *KafkaPublisher) PublishPlayback(ctx context.Context, event PlaybackEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal playback event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishPlayback(context.Context, PlaybackEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
