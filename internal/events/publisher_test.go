package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishPlayback(t *testing.T) {
	writer := &recordingWriter{}
	p := &KafkaPublisher{writer: writer}

	ghi := 512.5
	event := PlaybackEvent{
		SessionID:  "s-1",
		Cursor:     3,
		TotalRows:  10,
		ObservedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Values: map[models.Site]map[models.Field]*float64{
			models.SiteOpenField: {models.FieldIrradiance: &ghi, models.FieldTemperature: nil},
		},
	}
	require.NoError(t, p.PublishPlayback(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "s-1", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, float64(3), decoded["cursor"])
	values := decoded["values"].(map[string]any)["open_field"].(map[string]any)
	assert.Equal(t, 512.5, values["irradiance"])
	assert.Nil(t, values["temperature"])

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaPublisher_FlushesEachEvent(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "playback")
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "playback", w.Topic)
	assert.Equal(t, 1, w.BatchSize)
	assert.Equal(t, publishBatchTimeout, w.BatchTimeout)
	assert.False(t, w.Async)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}
	err := p.PublishPlayback(context.Background(), PlaybackEvent{SessionID: "s"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishPlayback(context.Background(), PlaybackEvent{}))
	assert.NoError(t, p.Close())
}
