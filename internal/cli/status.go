package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaver/internal/manager"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display every resolved migration with its applied timestamp or pending
state, plus schema history entries no migration file accounts for.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "", "output format (text, json); defaults to the configured format")
	rootCmd.AddCommand(statusCmd)
}

// Migration states shown by status.
const (
	stateApplied = "applied"
	statePending = "pending"
	stateGap     = "pending (gap)"
	stateUnknown = "unknown"
)

type statusOutput struct {
	Consistent bool              `json:"consistent"`
	Migrations []migrationOutput `json:"migrations"`
	Unknown    []migrationOutput `json:"unknown,omitempty"`
}

type migrationOutput struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Source      string     `json:"source,omitempty"`
	State       string     `json:"state"`
	Modified    bool       `json:"modified,omitempty"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	DurationMs  int        `json:"duration_ms,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format := AppConfig.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}

	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}

	mgr, db, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best-effort close on return

	report, err := mgr.Status(commandContext(cmd))
	if err != nil {
		return err
	}

	status := buildStatusOutput(report)

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(status)
	}

	return printStatusText(cmd.OutOrStdout(), status)
}

func buildStatusOutput(report *manager.Report) statusOutput {
	gaps := make(map[string]struct{}, len(report.Gaps))
	for _, m := range report.Gaps {
		gaps[m.Version.String()] = struct{}{}
	}

	modified := make(map[string]struct{}, len(report.Modified))
	for _, m := range report.Modified {
		modified[m.Version.String()] = struct{}{}
	}

	out := statusOutput{
		Consistent: report.Consistent(),
		Migrations: make([]migrationOutput, 0, len(report.Migrations)),
	}

	for _, ms := range report.Migrations {
		v := ms.Migration.Version.String()
		row := migrationOutput{
			Version:     v,
			Description: ms.Migration.Description,
			Source:      ms.Migration.Source,
			State:       statePending,
		}

		if _, ok := gaps[v]; ok {
			row.State = stateGap
		}

		if ms.Applied != nil {
			appliedAt := ms.Applied.AppliedAt
			row.State = stateApplied
			row.AppliedAt = &appliedAt
			row.DurationMs = ms.Applied.DurationMs
			_, row.Modified = modified[v]
		}

		out.Migrations = append(out.Migrations, row)
	}

	for _, e := range report.Unknown {
		appliedAt := e.AppliedAt
		out.Unknown = append(out.Unknown, migrationOutput{
			Version:     e.Version,
			Description: e.Description,
			Source:      e.Script,
			State:       stateUnknown,
			AppliedAt:   &appliedAt,
			DurationMs:  e.DurationMs,
		})
	}

	return out
}

func printStatusText(w io.Writer, status statusOutput) error {
	if len(status.Migrations) == 0 && len(status.Unknown) == 0 {
		fmt.Fprintln(w, "No migrations found.")

		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tSTATE\tAPPLIED AT")

	for _, rows := range [][]migrationOutput{status.Migrations, status.Unknown} {
		for _, row := range rows {
			state := row.State
			if row.Modified {
				state += " (modified)"
			}

			appliedAt := "-"
			if row.AppliedAt != nil {
				appliedAt = row.AppliedAt.UTC().Format(time.RFC3339)
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Version, row.Description, state, appliedAt)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}

	if status.Consistent {
		fmt.Fprintln(w, "\nSchema history is consistent.")
	} else {
		fmt.Fprintln(w, "\nSchema history is NOT consistent with the migration files.")
	}

	return nil
}
