package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes the connection pool shared by all units of work.
type PoolConfig struct {
	URL      string
	MaxConns int32
}

// NewPool builds a pgx pool that refuses to keep connections released with an
// open or failed transaction, so no connection re-enters the pool with a live
// tenant setting.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.AfterRelease = releaseIdle

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}

// releaseIdle keeps a connection only when it is outside any transaction.
func releaseIdle(conn *pgx.Conn) bool {
	if conn.PgConn().TxStatus() != 'I' {
		dirtyReleases.Inc()
		return false
	}
	return true
}
