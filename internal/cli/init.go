package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "init",
	Short: "Create the schema history table",
	Long: `Create the schema history table if it does not exist yet. Running it
again is harmless; every other command also creates the table on demand.`,
	RunE: runInit,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	mgr, db, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best-effort close on return

	if err := mgr.EnableMigrations(commandContext(cmd)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema history table %s is ready.\n", AppConfig.Table)

	return nil
}
