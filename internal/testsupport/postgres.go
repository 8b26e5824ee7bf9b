//go:build integration

// Package testsupport starts the backing services integration tests run against.
package testsupport

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/SrSebald/Vitalia/internal/persistence/postgres/migrations"
)

const (
	// AppRole is the role units of work assume in integration tests.
	AppRole = "vitalia_app"
	// OwnerRole owns the schema. It is neither a superuser nor BYPASSRLS, so
	// forced row policies apply to it as they do in production.
	OwnerRole = "vitalia_owner"

	ownerPassword = "vitalia"
)

// StartPostgres launches PostgreSQL, waits until it accepts connections, applies the
// schema and row policies for AppRole as OwnerRole, and returns the OwnerRole
// connection string.
func StartPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("vitalia"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	superStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, superStr))

	super, err := pgxpool.New(ctx, superStr)
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE ROLE " + OwnerRole + " LOGIN PASSWORD '" + ownerPassword + "' NOSUPERUSER NOBYPASSRLS CREATEROLE",
		"ALTER DATABASE vitalia OWNER TO " + OwnerRole,
		"ALTER SCHEMA public OWNER TO " + OwnerRole,
	} {
		_, err = super.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	super.Close()

	connStr := ownerURL(t, superStr)
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	var bypass bool
	require.NoError(t, pool.QueryRow(ctx, "SELECT rolsuper OR rolbypassrls FROM pg_roles WHERE rolname = current_user").Scan(&bypass))
	require.False(t, bypass, "schema owner must be subject to row policies")

	require.NoError(t, migrations.Migrate(ctx, pool, AppRole))
	return connStr
}

func ownerURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	u.User = url.UserPassword(OwnerRole, ownerPassword)
	return u.String()
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
