package app

import (
	"context"
	"log/slog"

	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/nfrund/scripthost/internal/script"
)

// WatchLifecycle logs every script lifecycle notice published on sub.
func WatchLifecycle(ctx context.Context, sub pubsub.Subscriber) error {
	for _, event := range []pubsub.Event[script.LifecycleNotice]{
		script.ScriptLoaded,
		script.ScriptUnloaded,
		script.ScriptLoadFailed,
	} {
		if err := sub.Subscribe(ctx, event.Name(), logNotice(event)); err != nil {
			return err
		}
	}
	return nil
}

func logNotice(event pubsub.Event[script.LifecycleNotice]) pubsub.Handler {
	return func(ctx context.Context, msg pubsub.Message) error {
		notice, err := event.Decode(msg)
		if err != nil {
			slog.Warn("Dropping malformed lifecycle notice", "topic", msg.Topic, "error", err)
			return nil
		}

		level := slog.LevelInfo
		if notice.Error != "" {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Script lifecycle",
			"component", "script_engine",
			"event_type", event.Name(),
			"path", notice.Path,
			"language", notice.Language,
			"events", notice.Events,
			"error", notice.Error,
		)
		return nil
	}
}
