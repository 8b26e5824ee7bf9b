package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProcessorCommitsMessages(t *testing.T) {
	payload := json.RawMessage(`{"exercise_id":"x"}`)
	msg := kafka.Message{
		Topic:     "vitalia.exercise_events",
		Partition: 0,
		Offset:    12,
		Value:     payload,
		Time:      time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("exercise.visibility_changed")},
		},
	}

	reader := &stubReader{msgs: []kafka.Message{msg}, errAfter: context.Canceled}
	handler := &recordingHandler{}
	proc := NewProcessor(reader, handler, nil)

	err := proc.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.count)
	require.Equal(t, 1, reader.commitCount)
	require.Equal(t, "exercise.visibility_changed", handler.last.EventType())
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorCommitsAfterHandlerFailure(t *testing.T) {
	reader := &stubReader{msgs: []kafka.Message{{Topic: "t"}, {Topic: "t", Offset: 1}}, errAfter: context.Canceled}
	handler := &recordingHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, nil).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, handler.count)
	require.Equal(t, 2, reader.commitCount)
}

func TestProcessorStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &stubReader{msgs: []kafka.Message{{Topic: "t"}}}
	handler := &recordingHandler{}

	err := NewProcessor(reader, handler, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.count)
}

type stubReader struct {
	msgs        []kafka.Message
	idx         int
	commitCount int
	errAfter    error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.idx >= len(r.msgs) {
		return kafka.Message{}, r.errAfter
	}
	msg := r.msgs[r.idx]
	r.idx++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCount++
	return nil
}

func (r *stubReader) Close() error { return nil }

type recordingHandler struct {
	count int
	last  Message
	err   error
}

var _ Handler = (*recordingHandler)(nil)

func (h *recordingHandler) Handle(_ context.Context, msg Message) error {
	h.count++
	h.last = msg
	return h.err
}
