package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SrSebald/Vitalia/internal/events"
)

type recordingInvalidator struct {
	ids []string
	err error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

func visibilityMessage(t *testing.T, exerciseID string) Message {
	t.Helper()
	payload, err := json.Marshal(events.ExerciseVisibilityChangedPayload{ExerciseID: exerciseID, IsPublic: false, ChangedAt: time.Now().UTC()})
	require.NoError(t, err)
	return Message{
		Topic:   "vitalia.exercise_events",
		Payload: payload,
		Headers: map[string]string{"event_type": events.ExerciseVisibilityChanged},
	}
}

func TestInvalidationHandlerPurgesExercise(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewInvalidationHandler(inv, nil)
	id := uuid.NewString()

	require.NoError(t, h.Handle(context.Background(), visibilityMessage(t, id)))
	require.Equal(t, []string{id}, inv.ids)
	require.Equal(t, []string{"vitalia.exercise_events"}, h.Topics())
}

func TestInvalidationHandlerIgnoresOtherEvents(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewInvalidationHandler(inv, nil)

	msg := Message{Payload: json.RawMessage(`{}`), Headers: map[string]string{"event_type": events.WorkoutLogged}}
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Empty(t, inv.ids)
}

func TestInvalidationHandlerErrors(t *testing.T) {
	h := NewInvalidationHandler(&recordingInvalidator{}, nil)
	require.Error(t, h.Handle(context.Background(), visibilityMessage(t, "not-a-uuid")))

	bad := Message{Payload: json.RawMessage(`{`), Headers: map[string]string{"event_type": events.ExerciseVisibilityChanged}}
	require.Error(t, h.Handle(context.Background(), bad))

	failing := NewInvalidationHandler(&recordingInvalidator{err: errors.New("edge down")}, nil)
	require.ErrorContains(t, failing.Handle(context.Background(), visibilityMessage(t, uuid.NewString())), "edge down")
}
