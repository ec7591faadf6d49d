package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/logging"
	"github.com/spf13/cobra"
)

var scriptDirs []string

var rootCmd = &cobra.Command{
	Use:   "scripthost",
	Short: "Script event dispatch host",
	Long: `scripthost loads tengo and Lua scripts, binds them to host events and
dispatches those events to them, reloading scripts as they change on disk.

Configuration is read from the environment (and an optional .env file).
Use "scripthost [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&scriptDirs, "dir", nil,
		"script directory, repeatable (overrides SCRIPT_DIRS)")
}

// loadConfig reads the configuration, applies flag overrides and installs
// the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if len(scriptDirs) > 0 {
		cfg.ScriptDirs = scriptDirs
	}
	logging.New(cfg.LogFormat, cfg.LogLevel)
	return cfg, nil
}

// parseFields turns key=value arguments into event fields. Values that look
// like numbers or booleans are converted.
func parseFields(pairs []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", pair)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}
