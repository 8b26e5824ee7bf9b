package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SrSebald/Vitalia/internal/persistence/postgres/migrations"
	"github.com/SrSebald/Vitalia/internal/policy"
)

var rlsCmd = &cobra.Command{
	Use:   "rls",
	Short: "Inspect row-level security",
}

var rlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether every tenant table has row-level security in force",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		statuses, err := migrations.Status(cmd.Context(), pool)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tKIND\tENABLED\tFORCED\tPOLICIES\tOK")
		var problems int
		for _, st := range statuses {
			ok := rlsHealthy(st)
			if !ok {
				problems++
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d\t%t\n", st.Table, st.Expected, st.Enabled, st.Forced, st.PolicyCount, ok)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if missing := len(policy.Catalog) - len(statuses); missing > 0 {
			return fmt.Errorf("%d catalogued tables are missing; run migrate", missing)
		}
		if problems > 0 {
			return fmt.Errorf("%d tables are not protected as declared", problems)
		}
		return nil
	},
}

var rlsPoliciesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Print the SQL that installs the row-level security policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		stmts, err := migrations.Statements(cfg.PostgresAppRole)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), policy.Script(stmts))
		return err
	},
}

// rlsHealthy reports whether a table matches its declared protection. Journal
// tables are read by the owner-role dispatcher and are not forced.
func rlsHealthy(st migrations.TableStatus) bool {
	if !st.Enabled || st.PolicyCount == 0 {
		return false
	}
	return st.Forced || st.Expected == policy.Journal
}

func init() {
	rlsCmd.AddCommand(rlsStatusCmd, rlsPoliciesCmd)
	rootCmd.AddCommand(rlsCmd)
}
