package cmd

import (
	"fmt"
	"strconv"

	"github.com/nfrund/scripthost/internal/script"
	"github.com/spf13/cobra"
)

var fireCmd = &cobra.Command{
	Use:   "fire <event> [key=value...]",
	Short: "Dispatch one event to the loaded scripts",
	Long: `Load the configured scripts and dispatch a single event with the given
fields, then print the flags the handlers set.

Examples:
  scripthost fire chatMessage from=bob message=hello
  scripthost fire chunkMapCalculated chunkKey=16777217`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(args[1:])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, _, err := loadEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		event, err := engine.ResolveEvent(args[0])
		if err != nil {
			return err
		}

		result := engine.InvokeWithResult(cmd.Context(), event, func() script.EventArgs {
			return script.NewArgs(fields)
		})

		out := cmd.OutOrStdout()
		if !result.Dispatched() {
			fmt.Fprintf(out, "No handlers bound to %s\n", event)
			return nil
		}
		fmt.Fprintf(out, "event: %s\n", event)
		fmt.Fprintf(out, "state: %s\n", result.State)
		fmt.Fprintf(out, "handlers run: %d\n", result.HandlersRun)
		fmt.Fprintf(out, "propagationStopped: %v\n", script.Stopped(result.Args))
		fmt.Fprintf(out, "cancelled: %v\n", script.Cancelled(result.Args))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "❌ %s: [%s] %s\n", e.Path, e.Type, e.Error())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fireCmd)
}

func parseValue(value string) interface{} {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
