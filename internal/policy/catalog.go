package policy

// Table names shared by the stores.
const (
	TableProfiles          = "profiles"
	TableExercises         = "exercises"
	TableWorkouts          = "workouts"
	TableSets              = "sets"
	TableNutritionLogs     = "nutrition_logs"
	TableMoodLogs          = "mood_logs"
	TableProgressPhotos    = "progress_photos"
	TableGeneratedWorkouts = "ai_generated_workouts"
	TableOutbox            = "outbox"
)

// Catalog lists every tenant-scoped table. Parents come before the tables that
// reference them.
var Catalog = []Rule{
	{Table: TableProfiles, Kind: OwnerRecord, Column: "auth_user_id"},
	{Table: TableExercises, Kind: Shared, Column: "created_by", VisibilityColumn: "is_public"},
	{Table: TableWorkouts, Kind: Owned, Column: "user_id"},
	{Table: TableSets, Kind: OwnedVia, Column: "workout_id", Parent: TableWorkouts},
	{Table: TableNutritionLogs, Kind: Owned, Column: "user_id"},
	{Table: TableMoodLogs, Kind: Owned, Column: "user_id"},
	{Table: TableProgressPhotos, Kind: Owned, Column: "user_id"},
	{Table: TableGeneratedWorkouts, Kind: Owned, Column: "user_id"},
	{Table: TableOutbox, Kind: Journal, Column: "tenant_id"},
}

// Lookup returns the rule for a table.
func Lookup(table string) (Rule, bool) {
	for _, rule := range Catalog {
		if rule.Table == table {
			return rule, true
		}
	}
	return Rule{}, false
}

// MustLookup is Lookup for tables known at compile time.
func MustLookup(table string) Rule {
	rule, ok := Lookup(table)
	if !ok {
		panic("policy: no rule for table " + table)
	}
	return rule
}
