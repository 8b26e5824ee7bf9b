package policy

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCatalogRulesAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, rule := range Catalog {
		require.NoError(t, rule.Validate(), rule.Table)
		if rule.Kind == OwnedVia {
			require.True(t, seen[rule.Parent], "parent %s must precede %s", rule.Parent, rule.Table)
		}
		seen[rule.Table] = true
	}
}

func TestOwnedRuleIsolatesTenants(t *testing.T) {
	rule := MustLookup(TableWorkouts)
	a := Actor{Identity: uuid.New(), ProfileID: uuid.New()}
	b := Actor{Identity: uuid.New(), ProfileID: uuid.New()}
	row := Row{Owner: a.ProfileID}

	require.True(t, rule.Visible(a, row))
	require.True(t, rule.Writable(a, row))
	require.False(t, rule.Visible(b, row))
	require.False(t, rule.Writable(b, row))
	require.False(t, rule.Visible(Actor{}, row))
}

func TestOwnedRuleRequiresProfile(t *testing.T) {
	rule := MustLookup(TableMoodLogs)
	actor := Actor{Identity: uuid.New()}

	require.False(t, rule.Visible(actor, Row{Owner: uuid.Nil}))
	require.False(t, rule.Writable(actor, Row{Owner: uuid.Nil}))
}

func TestSharedRuleVisibility(t *testing.T) {
	rule := MustLookup(TableExercises)
	owner := Actor{Identity: uuid.New(), ProfileID: uuid.New()}
	other := Actor{Identity: uuid.New(), ProfileID: uuid.New()}

	private := Row{Owner: owner.ProfileID, Public: false}
	public := Row{Owner: owner.ProfileID, Public: true}

	require.True(t, rule.Visible(owner, private))
	require.False(t, rule.Visible(other, private))
	require.True(t, rule.Visible(other, public))
	require.False(t, rule.Writable(other, public))
	require.True(t, rule.Writable(owner, public))
	require.False(t, rule.Visible(Actor{}, public))
}

func TestOwnerRecordMatchesIdentity(t *testing.T) {
	rule := MustLookup(TableProfiles)
	actor := Actor{Identity: uuid.New()}

	require.True(t, rule.Writable(actor, Row{Identity: actor.Identity}))
	require.False(t, rule.Visible(actor, Row{Identity: uuid.New()}))
}

func TestJournalAcceptsOnlyOwnAppends(t *testing.T) {
	rule := MustLookup(TableOutbox)
	actor := Actor{Identity: uuid.New(), ProfileID: uuid.New()}

	require.True(t, rule.Writable(actor, Row{Identity: actor.Identity}))
	require.False(t, rule.Writable(actor, Row{Identity: uuid.New()}))
	require.False(t, rule.Visible(actor, Row{Identity: actor.Identity}))
}

func TestRenderSharedRule(t *testing.T) {
	stmts, err := MustLookup(TableExercises).Statements("vitalia_app")
	require.NoError(t, err)

	script := Script(stmts)
	require.Contains(t, script, "ALTER TABLE exercises FORCE ROW LEVEL SECURITY")
	require.Contains(t, script, "CREATE POLICY exercises_select ON exercises FOR SELECT USING ((is_public AND vitalia_current_identity() IS NOT NULL) OR created_by = vitalia_current_profile_id())")
	require.Contains(t, script, "CREATE POLICY exercises_update ON exercises FOR UPDATE USING (created_by = vitalia_current_profile_id())")
	require.Contains(t, script, "GRANT SELECT, INSERT, UPDATE, DELETE ON exercises TO vitalia_app")
}

func TestRenderOwnedViaRule(t *testing.T) {
	stmts, err := MustLookup(TableSets).Statements("vitalia_app")
	require.NoError(t, err)
	require.Contains(t, Script(stmts), "FOR DELETE USING (workout_id IN (SELECT id FROM workouts))")
}

func TestRenderJournalIsNotForced(t *testing.T) {
	stmts, err := MustLookup(TableOutbox).Statements("vitalia_app")
	require.NoError(t, err)

	script := Script(stmts)
	require.NotContains(t, script, "FORCE ROW LEVEL SECURITY")
	require.NotContains(t, script, "FOR SELECT")
	require.Contains(t, script, "GRANT INSERT ON outbox TO vitalia_app")
}

func TestRenderRejectsUnsafeNames(t *testing.T) {
	_, err := Render("app; DROP TABLE profiles", Catalog)
	require.Error(t, err)

	_, err = Rule{Table: "workouts", Kind: Owned, Column: "user_id = user_id --"}.Statements("vitalia_app")
	require.Error(t, err)
}

func TestRenderIncludesHelpersBeforePolicies(t *testing.T) {
	stmts, err := Render("vitalia_app", Catalog)
	require.NoError(t, err)

	script := Script(stmts)
	helper := strings.Index(script, "FUNCTION vitalia_current_profile_id()")
	firstPolicy := strings.Index(script, "CREATE POLICY")
	require.Greater(t, helper, 0)
	require.Greater(t, firstPolicy, helper)
}

func TestRenderGrantsRoleMembershipToMigrator(t *testing.T) {
	stmts, err := Render("vitalia_app", Catalog)
	require.NoError(t, err)

	script := Script(stmts)
	grant := strings.Index(script, "GRANT vitalia_app TO CURRENT_USER")
	require.Greater(t, grant, strings.Index(script, "CREATE ROLE vitalia_app NOLOGIN"))
	require.Less(t, grant, strings.Index(script, "CREATE POLICY"))
}
