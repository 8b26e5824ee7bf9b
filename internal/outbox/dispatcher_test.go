package outbox

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestMessageRecordCarriesRoutingHeaders(t *testing.T) {
	at := time.Date(2025, time.May, 14, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	msg := Message{
		EventID:       42,
		TenantID:      "0b8f6c1e-3c55-4c1e-9d55-1d0f1c7c2a10",
		AggregateType: "workout",
		AggregateID:   "w-1",
		EventType:     "workout.logged",
		Topic:         "vitalia.workout_events",
		PartitionKey:  "0b8f6c1e-3c55-4c1e-9d55-1d0f1c7c2a10",
		Payload:       []byte(`{"workout_id":"w-1"}`),
		DedupeKey:     "w-1:workout.logged",
		CreatedAt:     at,
	}

	record := msg.Record()
	require.Equal(t, []byte(msg.PartitionKey), record.Key)
	require.JSONEq(t, `{"workout_id":"w-1"}`, string(record.Value))
	require.Equal(t, at.UTC(), record.Time)
	require.Equal(t, map[string]string{
		HeaderEventType:     "workout.logged",
		HeaderTenantID:      msg.TenantID,
		HeaderAggregateType: "workout",
		HeaderAggregateID:   "w-1",
		HeaderEventID:       "42",
		HeaderDedupeKey:     "w-1:workout.logged",
	}, headerMap(record))
}

func TestMessageRecordOmitsEmptyDedupeKey(t *testing.T) {
	record := Message{EventID: 1, Topic: "t"}.Record()
	_, ok := headerMap(record)[HeaderDedupeKey]
	require.False(t, ok)
	require.False(t, record.Time.IsZero())
}

func TestGroupByTopicKeepsOutboxOrder(t *testing.T) {
	messages := []Message{
		{EventID: 1, Topic: "b"},
		{EventID: 2, Topic: "a"},
		{EventID: 3, Topic: "b"},
		{EventID: 4, Topic: "a"},
		{EventID: 5, Topic: "c"},
	}

	topics, batches := groupByTopic(messages)
	require.Equal(t, []string{"b", "a", "c"}, topics)

	ids := func(records []kafka.Message) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, headerMap(r)[HeaderEventID])
		}
		return out
	}
	require.Equal(t, []string{"1", "3"}, ids(batches["b"]))
	require.Equal(t, []string{"2", "4"}, ids(batches["a"]))
	require.Equal(t, []string{"5"}, ids(batches["c"]))
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(nil, nil, 0, 0, nil)
	require.Equal(t, time.Second, d.pollInterval)
	require.Equal(t, 100, d.batchSize)
	require.Equal(t, defaultClaimTTL, d.claimTTL)
	require.NotNil(t, d.logger)
}
