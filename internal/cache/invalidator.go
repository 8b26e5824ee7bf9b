// Package cache purges edge-cached public exercise pages.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var invalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "vitalia_cache_invalidations_total",
	Help: "Edge cache purge requests by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(invalidations)
}

// Invalidator purges cached representations of an exercise.
type Invalidator interface {
	Invalidate(ctx context.Context, exerciseID string) error
}

// NoopInvalidator is used when no edge cache is configured.
type NoopInvalidator struct{}

// Invalidate performs no action.
func (NoopInvalidator) Invalidate(context.Context, string) error { return nil }

// HTTPInvalidator posts purge requests to an edge cache endpoint.
type HTTPInvalidator struct {
	client *http.Client
	url    string
	token  string
	logger *zap.Logger
}

// NewHTTPInvalidator constructs an HTTPInvalidator.
func NewHTTPInvalidator(endpoint, token string, timeout time.Duration, logger *zap.Logger) *HTTPInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPInvalidator{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		token:  token,
		logger: logger,
	}
}

type purgeRequest struct {
	Paths []string `json:"paths"`
}

// Paths lists the public URLs that render an exercise.
func Paths(exerciseID string) []string {
	return []string{
		"/v1/exercises",
		"/v1/exercises/" + exerciseID,
	}
}

// Invalidate asks the edge cache to drop every path that renders the exercise.
func (h *HTTPInvalidator) Invalidate(ctx context.Context, exerciseID string) error {
	body, err := json.Marshal(purgeRequest{Paths: Paths(exerciseID)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		invalidations.WithLabelValues("error").Inc()
		return fmt.Errorf("purge exercise %s: %w", exerciseID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		invalidations.WithLabelValues("rejected").Inc()
		h.logger.Warn("edge cache rejected purge", zap.String("exercise_id", exerciseID), zap.Int("status", resp.StatusCode))
		return &InvalidationError{Status: resp.StatusCode}
	}
	invalidations.WithLabelValues("ok").Inc()
	return nil
}

// InvalidationError represents a non-successful purge response.
type InvalidationError struct {
	Status int
}

func (e *InvalidationError) Error() string {
	return "cache invalidation failed with status " + http.StatusText(e.Status)
}
