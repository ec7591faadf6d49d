package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/scripthost/internal/app"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load scripts and serve host events until interrupted",
	Long: `Load every configured script directory, start hot reload when
HOT_RELOAD_SCRIPTS is enabled and, when STATUS_ADDR is set, the status server.
Runs until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.New(cfg).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
