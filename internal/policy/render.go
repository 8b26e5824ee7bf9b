package policy

import (
	"fmt"
	"strings"
)

// SQL helpers the rendered policies call. Both read the transaction-local
// app.current_user_id setting; an unset or empty setting yields NULL, which no
// predicate matches.
const (
	IdentityFunc  = "vitalia_current_identity()"
	ProfileIDFunc = "vitalia_current_profile_id()"
)

var helperStatements = []string{
	`CREATE OR REPLACE FUNCTION vitalia_current_identity() RETURNS uuid
    LANGUAGE sql STABLE
    AS $$ SELECT NULLIF(current_setting('app.current_user_id', true), '')::uuid $$`,
	`CREATE OR REPLACE FUNCTION vitalia_current_profile_id() RETURNS uuid
    LANGUAGE sql STABLE
    AS $$ SELECT id FROM profiles WHERE auth_user_id = vitalia_current_identity() $$`,
}

// Render produces the statements that create the application role, the helper
// functions and every rule's policies. Statements are idempotent.
func Render(role string, rules []Rule) ([]string, error) {
	if !validName(role) {
		return nil, fmt.Errorf("policy: invalid role name %q", role)
	}
	out := []string{
		fmt.Sprintf(`DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
        CREATE ROLE %s NOLOGIN;
    END IF;
END
$$`, role, role),
		// SET LOCAL ROLE requires membership; since PostgreSQL 16 creating a role does not grant it.
		fmt.Sprintf("GRANT %s TO CURRENT_USER", role),
		fmt.Sprintf("GRANT USAGE ON SCHEMA public TO %s", role),
	}
	out = append(out, helperStatements...)
	for _, rule := range rules {
		stmts, err := rule.Statements(role)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	out = append(out, fmt.Sprintf("GRANT USAGE ON ALL SEQUENCES IN SCHEMA public TO %s", role))
	return out, nil
}

// Statements renders the row-level security policies of a single rule.
func (r Rule) Statements(role string) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !validName(role) {
		return nil, fmt.Errorf("policy: invalid role name %q", role)
	}

	t := r.Table
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", t)}

	if r.Kind == Journal {
		// The table owner drains journals, so policies bind tenants only.
		stmts = append(stmts, dropPolicies(t, "insert")...)
		stmts = append(stmts,
			fmt.Sprintf("CREATE POLICY %s_insert ON %s FOR INSERT WITH CHECK (%s = %s)", t, t, r.Column, IdentityFunc),
			fmt.Sprintf("GRANT INSERT ON %s TO %s", t, role),
		)
		return stmts, nil
	}

	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", t))
	stmts = append(stmts, dropPolicies(t, "select", "insert", "update", "delete")...)

	read, write := r.predicates()
	stmts = append(stmts,
		fmt.Sprintf("CREATE POLICY %s_select ON %s FOR SELECT USING (%s)", t, t, read),
		fmt.Sprintf("CREATE POLICY %s_insert ON %s FOR INSERT WITH CHECK (%s)", t, t, write),
		fmt.Sprintf("CREATE POLICY %s_update ON %s FOR UPDATE USING (%s) WITH CHECK (%s)", t, t, write, write),
		fmt.Sprintf("CREATE POLICY %s_delete ON %s FOR DELETE USING (%s)", t, t, write),
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON %s TO %s", t, role),
	)
	return stmts, nil
}

func (r Rule) predicates() (read, write string) {
	switch r.Kind {
	case OwnerRecord:
		p := fmt.Sprintf("%s = %s", r.Column, IdentityFunc)
		return p, p
	case Owned:
		p := fmt.Sprintf("%s = %s", r.Column, ProfileIDFunc)
		return p, p
	case OwnedVia:
		p := fmt.Sprintf("%s IN (SELECT id FROM %s)", r.Column, r.Parent)
		return p, p
	case Shared:
		owner := fmt.Sprintf("%s = %s", r.Column, ProfileIDFunc)
		return fmt.Sprintf("(%s AND %s IS NOT NULL) OR %s", r.VisibilityColumn, IdentityFunc, owner), owner
	}
	return "false", "false"
}

func dropPolicies(table string, commands ...string) []string {
	out := make([]string, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, fmt.Sprintf("DROP POLICY IF EXISTS %s_%s ON %s", table, cmd, table))
	}
	return out
}

// Script joins rendered statements into one SQL script.
func Script(stmts []string) string {
	var b strings.Builder
	for _, stmt := range stmts {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String()
}
