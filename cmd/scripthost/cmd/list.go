package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the handlers bound to each event in dispatch order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, _, err := loadEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		snapshot := engine.Snapshot()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tHANDLERS\tSCRIPTS")
		for _, event := range engine.Events().Events() {
			handlers := snapshot.Handlers(event)
			if len(handlers) == 0 {
				fmt.Fprintf(w, "%s\t0\t-\n", event)
				continue
			}
			for i, h := range handlers {
				if i == 0 {
					fmt.Fprintf(w, "%s\t%d\t%s\n", event, len(handlers), h.Path)
				} else {
					fmt.Fprintf(w, "\t\t%s\n", h.Path)
				}
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
