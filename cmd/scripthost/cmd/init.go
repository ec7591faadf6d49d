package cmd

import (
	"github.com/nfrund/scripthost/internal/script/extractor"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var forceExtract bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the bundled starter scripts into a script directory",
	Long: `Write the bundled starter scripts into dir, or the first configured
script directory. An existing directory is only written to with --force.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		target := cfg.ScriptDirs[0]
		if len(args) == 1 {
			target = args[0]
		}

		_, err = extractor.NewExtractor(afero.NewOsFs(), forceExtract, cmd.OutOrStdout()).ExtractScripts(target)
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceExtract, "force", false, "overwrite starter scripts in an existing directory")
	rootCmd.AddCommand(initCmd)
}
