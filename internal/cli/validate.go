package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errValidationFailed makes validate exit non-zero when the history is inconsistent.
var errValidationFailed = errors.New("schema history does not match the migration files")

var validateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "validate",
	Short: "Check the schema history against the migration files",
	Long: `Succeed only when every migration file has been applied and the schema
history holds no version without a file. Run status for the details.`,
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	mgr, db, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best-effort close on return

	ok, err := mgr.Validate(commandContext(cmd))
	if err != nil {
		return err
	}

	if !ok {
		return errValidationFailed
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Schema history is valid.")

	return nil
}
