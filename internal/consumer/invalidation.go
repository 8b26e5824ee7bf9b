package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/cache"
	"github.com/SrSebald/Vitalia/internal/events"
)

// InvalidationHandler purges the edge cache for every exercise visibility change.
// The API purges inline on a best-effort basis; this handler is the durable path
// driven by the outbox.
type InvalidationHandler struct {
	invalidator cache.Invalidator
	logger      *zap.Logger
}

// NewInvalidationHandler constructs an InvalidationHandler.
func NewInvalidationHandler(invalidator cache.Invalidator, logger *zap.Logger) *InvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationHandler{invalidator: invalidator, logger: logger}
}

// Topics lists the topics the handler needs to subscribe to.
func (h *InvalidationHandler) Topics() []string {
	route, _ := events.RouteFor(events.ExerciseVisibilityChanged)
	return []string{route.Topic}
}

// Handle implements Handler. Other event types on the topic are ignored.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType() != events.ExerciseVisibilityChanged {
		return nil
	}

	var payload events.ExerciseVisibilityChangedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode visibility payload: %w", err)
	}
	if _, err := uuid.Parse(payload.ExerciseID); err != nil {
		return fmt.Errorf("visibility payload: invalid exercise id %q", payload.ExerciseID)
	}

	if err := h.invalidator.Invalidate(ctx, payload.ExerciseID); err != nil {
		return fmt.Errorf("invalidate exercise %s: %w", payload.ExerciseID, err)
	}
	h.logger.Debug("exercise cache purged",
		zap.String("exercise_id", payload.ExerciseID),
		zap.Bool("is_public", payload.IsPublic))
	return nil
}
