package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/nfrund/scripthost/internal/script"
)

// Config holds all configuration for the application.
type Config struct {
	ScriptDirs       []string      `env:"SCRIPT_DIRS" envSeparator:"," envDefault:"scripts" validate:"min=1,dive,required"`
	HotReload        bool          `env:"HOT_RELOAD_SCRIPTS" envDefault:"true"`
	ReloadDebounce   time.Duration `env:"SCRIPT_RELOAD_DEBOUNCE" envDefault:"250ms" validate:"gte=0"`
	MaxExecutionTime time.Duration `env:"SCRIPT_MAX_EXECUTION_TIME" envDefault:"0s" validate:"gte=0"`
	Events           []string      `env:"SCRIPT_EVENTS" envSeparator:","`
	AllowedModules   []string      `env:"SCRIPT_ALLOWED_MODULES" envSeparator:"," envDefault:"fmt,math,rand,times,text"`

	PlayerDataDir string `env:"PLAYER_DATA_DIR" envDefault:"Saves/Player"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// StatusAddr is where the status server listens. Empty disables it.
	StatusAddr string `env:"STATUS_ADDR"`

	TracingEnabled     bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingServiceName string `env:"TRACING_SERVICE_NAME" envDefault:"scripthost" validate:"required"`
	TracingZipkinURL   string `env:"TRACING_ZIPKIN_URL" envDefault:"http://localhost:9411/api/v2/spans" validate:"required_if=TracingEnabled true,omitempty,url"`
}

// New loads configuration from an optional .env file and the process
// environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}
	return parse(env.Options{})
}

// FromMap parses configuration from the given variables only.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that every configured event name is
// usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.Events) > 0 && c.EventSet().Len() == 0 {
		return fmt.Errorf("invalid configuration: SCRIPT_EVENTS contains no event names")
	}
	return nil
}

// EventSet returns the configured event catalog, or the default one.
func (c *Config) EventSet() script.EventSet {
	if len(c.Events) == 0 {
		return script.DefaultEventSet()
	}
	events := make([]script.ScriptEvent, 0, len(c.Events))
	for _, name := range c.Events {
		events = append(events, script.ScriptEvent(name))
	}
	return script.NewEventSet(events...)
}

// ScriptOptions maps the configuration onto engine options.
func (c *Config) ScriptOptions() script.Options {
	return script.Options{
		Dirs:           c.ScriptDirs,
		HotReload:      c.HotReload,
		ReloadDebounce: c.ReloadDebounce,
		Limits: script.SecurityLimits{
			MaxExecutionTime: c.MaxExecutionTime,
			AllowedPackages:  c.AllowedModules,
		},
		Events: c.EventSet(),
	}
}

// Tracing returns the tracing settings.
func (c *Config) Tracing() pubsub.TracingConfig {
	return pubsub.TracingConfig{
		Enabled:     c.TracingEnabled,
		ServiceName: c.TracingServiceName,
		ZipkinURL:   c.TracingZipkinURL,
	}
}
