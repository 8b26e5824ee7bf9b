// Package domain holds Vitalia's business workflows. Every workflow runs inside
// exactly one tenant-bound unit of work obtained from a Store.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/cache"
	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/planner"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

// Principal is the verified caller. Email and FullName only seed a profile
// created on first use.
type Principal struct {
	Identity tenant.Identity
	Email    string
	FullName string
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithPlanner sets the plan generator.
func WithPlanner(g planner.Generator) Option {
	return func(s *Service) { s.planner = g }
}

// WithInvalidator sets the edge cache invalidator for public exercises.
func WithInvalidator(inv cache.Invalidator) Option {
	return func(s *Service) {
		if inv != nil {
			s.cache = inv
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates Vitalia workflows.
type Service struct {
	store   Store
	planner planner.Generator
	cache   cache.Invalidator
	logger  *zap.Logger
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  cache.NoopInvalidator{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// requireOne turns a zero-row write into ErrNotFound. Rows hidden by policy and
// rows that do not exist are indistinguishable on purpose.
func requireOne(affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func record(ctx context.Context, tx Tx, eventType, aggregateID string, payload any) error {
	env, err := events.New(eventType, tx.Identity().String(), aggregateID, payload)
	if err != nil {
		return err
	}
	if err := tx.Outbox().Record(ctx, env); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

func newID() uuid.UUID {
	return uuid.New()
}
