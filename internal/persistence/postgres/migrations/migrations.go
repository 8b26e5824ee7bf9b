// Package migrations applies the Vitalia schema and its row-level security policies.
package migrations

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SrSebald/Vitalia/internal/policy"
)

//go:embed schema.sql
var schema string

// advisoryLock serialises concurrent migrators.
const advisoryLock = 0x76697461

// Schema returns the base schema script.
func Schema() string { return schema }

// Statements returns the rendered policy statements for role.
func Statements(role string) ([]string, error) {
	return policy.Render(role, policy.Catalog)
}

// Migrate applies the base schema and then every policy for role inside one
// transaction. It must run as the table owner, never as role.
func Migrate(ctx context.Context, pool *pgxpool.Pool, role string) error {
	stmts, err := Statements(role)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLock); err != nil {
			return fmt.Errorf("lock migrations: %w", err)
		}
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply policy statement %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
}

// TableStatus is the row-level security state of one table.
type TableStatus struct {
	Table       string
	Enabled     bool
	Forced      bool
	PolicyCount int
	Expected    policy.Kind
}

// Status reports row-level security state for every catalogued table.
func Status(ctx context.Context, pool *pgxpool.Pool) ([]TableStatus, error) {
	const query = `SELECT c.relname, c.relrowsecurity, c.relforcerowsecurity,
        (SELECT COUNT(*) FROM pg_policies p WHERE p.schemaname = 'public' AND p.tablename = c.relname)
        FROM pg_class c
        JOIN pg_namespace n ON n.oid = c.relnamespace
        WHERE n.nspname = 'public' AND c.relkind = 'r' AND c.relname = ANY($1)
        ORDER BY c.relname`

	tables := make([]string, 0, len(policy.Catalog))
	for _, rule := range policy.Catalog {
		tables = append(tables, rule.Table)
	}

	rows, err := pool.Query(ctx, query, tables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TableStatus, 0, len(tables))
	for rows.Next() {
		var st TableStatus
		if err := rows.Scan(&st.Table, &st.Enabled, &st.Forced, &st.PolicyCount); err != nil {
			return nil, err
		}
		st.Expected = policy.MustLookup(st.Table).Kind
		out = append(out, st)
	}
	return out, rows.Err()
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
