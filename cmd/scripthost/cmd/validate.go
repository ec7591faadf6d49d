package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nfrund/scripthost/internal/script"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir...]",
	Short: "Compile every script and report load failures",
	Long: `Compile every script in the given directories (or the configured ones)
without running any of them, and report which event each script binds to.

Examples:
  scripthost validate                 # Validate SCRIPT_DIRS
  scripthost validate ./scripts ./mods

Exits with status 1 when any script fails to load.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.ScriptDirs = args
		}

		engine, report, err := loadEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, reg := range engine.Registrations() {
			fmt.Fprintf(w, "✅\t%s\t%s\n", reg.Path, joinEvents(reg.Events))
		}
		for _, failure := range report.Failures {
			fmt.Fprintf(w, "❌\t%s\t%s\n", failure.Path, failureReason(failure.Err))
		}
		w.Flush()

		fmt.Fprintf(out, "\n%d loaded, %d failed\n", report.Succeeded, report.Failed())
		if report.Failed() > 0 {
			return fmt.Errorf("%d script(s) failed to load", report.Failed())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func joinEvents(events []script.ScriptEvent) string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, string(e))
	}
	return strings.Join(names, ", ")
}

func failureReason(err error) string {
	var scriptErr *script.ScriptError
	if errors.As(err, &scriptErr) {
		return fmt.Sprintf("[%s] %s", scriptErr.Type, scriptErr.Error())
	}
	return err.Error()
}
