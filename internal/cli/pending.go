package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "pending",
	Short: "List migrations that have not been applied",
	Long: `List the migrations that have no schema history entry, in the order
migrate would apply them.`,
	RunE: runPending,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, _ []string) error {
	mgr, db, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best-effort close on return

	pending, err := mgr.PendingMigrations(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")

		return nil
	}

	fmt.Fprintf(out, "%d pending migration(s):\n", len(pending))

	for _, m := range pending {
		fmt.Fprintf(out, "  V%s  %s  (%s)\n", m.Version, m.Description, m.Source)
	}

	return nil
}
