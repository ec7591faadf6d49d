package cmd

import (
	"context"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/script"
)

// loadEngine builds an engine without hot reload and loads every configured
// directory once.
func loadEngine(ctx context.Context, cfg *config.Config) (*script.Engine, script.LoadReport, error) {
	opts := cfg.ScriptOptions()
	opts.HotReload = false

	engine := script.NewEngine(script.Dependencies{Options: opts})
	report, err := engine.Initialize(ctx)
	if err != nil {
		return nil, report, err
	}
	return engine, report, nil
}
