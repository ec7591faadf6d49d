// Package app wires the script host's services together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/host"
	"github.com/nfrund/scripthost/internal/script"
	"github.com/nfrund/scripthost/internal/server"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App owns the dependency injector.
type App struct {
	cfg      *config.Config
	injector *do.RootScope
}

// New creates an App for cfg. Extra packages may override providers.
func New(cfg *config.Config, overrides ...func(do.Injector)) *App {
	injector := do.New(Package)
	do.ProvideValue(injector, cfg)
	for _, override := range overrides {
		override(injector)
	}
	return &App{cfg: cfg, injector: injector}
}

// Injector exposes the underlying scope.
func (a *App) Injector() do.Injector {
	return a.injector
}

func (a *App) Engine() (*script.Engine, error) {
	return do.Invoke[*script.Engine](a.injector)
}

func (a *App) Adapter() (*host.Adapter, error) {
	return do.Invoke[*host.Adapter](a.injector)
}

// Start loads all scripts, starts hot reload when enabled and begins logging
// lifecycle notices.
func (a *App) Start(ctx context.Context) (script.LoadReport, error) {
	bridge, err := do.Invoke[*Bridge](a.injector)
	if err != nil {
		return script.LoadReport{}, err
	}
	if err := WatchLifecycle(ctx, bridge); err != nil {
		return script.LoadReport{}, fmt.Errorf("failed to subscribe to lifecycle notices: %w", err)
	}

	engine, err := a.Engine()
	if err != nil {
		return script.LoadReport{}, err
	}
	report, err := engine.Initialize(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to initialize script engine: %w", err)
	}
	return report, nil
}

// Run starts the app and blocks until ctx is cancelled or the status server
// fails.
func (a *App) Run(ctx context.Context) error {
	report, err := a.Start(ctx)
	if err != nil {
		return err
	}
	slog.Info("Scripts loaded", "succeeded", report.Succeeded, "failed", report.Failed())

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.StatusAddr != "" {
		srv, err := do.Invoke[*server.Server](a.injector)
		if err != nil {
			return err
		}
		g.Go(srv.Start)
	}
	g.Go(func() error {
		a.reloadOnHangup(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Reconfigure applies the script limits from cfg, such as
// SCRIPT_ALLOWED_MODULES, and rebuilds the registry with them.
func (a *App) Reconfigure(cfg *config.Config) (script.LoadReport, error) {
	engine, err := a.Engine()
	if err != nil {
		return script.LoadReport{}, err
	}
	if err := engine.SetSecurityLimits(cfg.ScriptOptions().Limits); err != nil {
		return script.LoadReport{}, err
	}
	return engine.Reload(), nil
}

// reloadOnHangup re-reads the configuration on SIGHUP until ctx is done.
func (a *App) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.New()
			if err != nil {
				slog.Error("Ignoring SIGHUP, configuration is invalid", "error", err)
				continue
			}
			report, err := a.Reconfigure(cfg)
			if err != nil {
				slog.Error("Failed to apply configuration", "error", err)
				continue
			}
			slog.Info("Configuration reloaded", "succeeded", report.Succeeded, "failed", report.Failed())
		}
	}
}

// Shutdown stops every invoked service in reverse dependency order.
func (a *App) Shutdown(ctx context.Context) error {
	report := a.injector.ShutdownWithContext(ctx)
	if report != nil && !report.Succeed {
		return report
	}
	return nil
}
