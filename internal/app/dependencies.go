package app

import (
	"context"
	"fmt"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/host"
	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/nfrund/scripthost/internal/script"
	"github.com/nfrund/scripthost/internal/server"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
)

// lifecycleBuffer lets a full reload publish without waiting on subscribers.
const lifecycleBuffer = 64

// Tracing owns the tracer and flushes it on shutdown.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// Bridge is the lifecycle message bus, closed on shutdown.
type Bridge struct {
	*pubsub.WatermillBridge
}

// Shutdown closes the bridge.
func (b *Bridge) Shutdown() error {
	return b.Close()
}

// Package registers every service provider.
var Package = do.Package(
	do.Lazy(provideFs),
	do.Lazy(provideTracing),
	do.Lazy(provideBridge),
	do.Lazy(provideEngine),
	do.Lazy(provideAdapter),
	do.Lazy(provideServer),
)

func provideFs(do.Injector) (afero.Fs, error) {
	return afero.NewOsFs(), nil
}

func provideTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracer, shutdown, err := pubsub.SetupTracing(context.Background(), cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	return &Tracing{Tracer: tracer, shutdown: shutdown}, nil
}

func provideBridge(i do.Injector) (*Bridge, error) {
	tracing := do.MustInvoke[*Tracing](i)
	return &Bridge{pubsub.NewWatermillBridge(
		pubsub.WithBufferSize(lifecycleBuffer),
		pubsub.WithTracer(tracing.Tracer),
	)}, nil
}

func provideEngine(i do.Injector) (*script.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return script.NewEngine(script.Dependencies{
		Options:   cfg.ScriptOptions(),
		Fs:        do.MustInvoke[afero.Fs](i),
		Publisher: do.MustInvoke[*Bridge](i),
		Tracer:    do.MustInvoke[*Tracing](i).Tracer,
	}), nil
}

func provideAdapter(i do.Injector) (*host.Adapter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	engine := do.MustInvoke[*script.Engine](i)
	return host.NewAdapter(engine, host.WithPlayerDataDir(cfg.PlayerDataDir)), nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return server.New(do.MustInvoke[*script.Engine](i), cfg.StatusAddr), nil
}
