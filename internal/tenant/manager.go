package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SettingName is the transaction-local setting read by every row-level security policy.
const SettingName = "app.current_user_id"

const defaultCleanupTimeout = 5 * time.Second

// UnitOfWork is an arbitrary sequence of reads and writes issued through one Session.
type UnitOfWork func(ctx context.Context, s *Session) error

// Option configures optional behaviour for the Manager.
type Option func(*Manager)

// WithAppRole makes every unit of work assume the given database role before the
// identity is bound. The role comes from deployment configuration, never from a request.
func WithAppRole(role string) Option {
	return func(m *Manager) {
		m.role = role
	}
}

// WithLogger overrides the logger used to report cleanup problems.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCleanupTimeout bounds the rollback issued when a unit of work fails or is cancelled.
func WithCleanupTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cleanupTimeout = d
		}
	}
}

// Manager runs units of work on fresh pooled connections, each bound to one identity.
type Manager struct {
	pool           *pgxpool.Pool
	role           string
	logger         *zap.Logger
	cleanupTimeout time.Duration
}

// NewManager constructs a Manager. The pool should come from NewPool so that
// connections released mid-transaction are discarded.
func NewManager(pool *pgxpool.Pool, opts ...Option) *Manager {
	m := &Manager{
		pool:           pool,
		logger:         zap.NewNop(),
		cleanupTimeout: defaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes fn with the ambient identity set. The identity is cleared on every
// exit path: commit, error, panic and cancellation. Errors from fn are returned as-is.
func (m *Manager) Run(ctx context.Context, identity Identity, fn UnitOfWork) error {
	return m.run(ctx, identity, pgx.TxOptions{}, fn)
}

// RunReadOnly is Run inside a read-only transaction.
func (m *Manager) RunReadOnly(ctx context.Context, identity Identity, fn UnitOfWork) error {
	return m.run(ctx, identity, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (m *Manager) run(ctx context.Context, identity Identity, opts pgx.TxOptions, fn UnitOfWork) (err error) {
	if identity.IsZero() {
		observeUnit(outcomeRejected, 0)
		return ErrIdentityInvalid
	}
	if fn == nil {
		return errors.New("tenant: nil unit of work")
	}

	start := time.Now()
	committed := false
	defer func() {
		outcome := outcomeRolledBack
		if committed {
			outcome = outcomeCommitted
		}
		observeUnit(outcome, time.Since(start))
	}()

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	session := &Session{identity: identity, tx: tx}
	defer func() {
		session.close()
		if !committed {
			m.discard(ctx, conn, tx, identity)
		}
	}()

	if err = m.bind(ctx, tx, identity); err != nil {
		return err
	}

	if err = fn(ctx, session); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	committed = true
	return nil
}

func (m *Manager) bind(ctx context.Context, tx pgx.Tx, identity Identity) error {
	if m.role != "" {
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{m.role}.Sanitize()); err != nil {
			return fmt.Errorf("assume application role: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", SettingName, identity.String()); err != nil {
		return fmt.Errorf("bind tenant context: %w", err)
	}
	return nil
}

// discard rolls the transaction back on a context detached from the caller's
// cancellation. When the rollback cannot be confirmed the physical connection is
// closed so the pool destroys it on release.
func (m *Manager) discard(ctx context.Context, conn *pgxpool.Conn, tx pgx.Tx, identity Identity) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cleanupTimeout)
	defer cancel()

	err := tx.Rollback(cleanupCtx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return
	}

	cleanupFailures.Inc()
	m.logger.Warn("tenant rollback failed, closing connection",
		zap.String("tenant", identity.String()),
		zap.Error(err),
	)
	if closeErr := conn.Conn().Close(cleanupCtx); closeErr != nil {
		m.logger.Warn("closing connection after failed rollback", zap.Error(closeErr))
	}
}
