// Package server exposes the script engine's state over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	applog "github.com/nfrund/scripthost/internal/middleware"
	"github.com/nfrund/scripthost/internal/script"
)

// Engine is the part of the script engine the status server reads and drives.
type Engine interface {
	Snapshot() *script.Snapshot
	Events() script.EventSet
	SupportedLanguages() []script.ScriptLanguage
	ErrorSummary() *script.ErrorSummary
	ClearErrors()
	Reload() script.LoadReport
	ResolveEvent(name string) (script.ScriptEvent, error)
	InvokeWithResult(ctx context.Context, event script.ScriptEvent, factory script.ArgsFactory) *script.Dispatch
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	engine Engine
	addr   string
}

// New creates a new Server instance listening on addr once started.
func New(engine Engine, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(applog.Logger)
	setupErrorHandling(e)

	s := &Server{E: e, engine: engine, addr: addr}
	s.RegisterRoutes()
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// setupErrorHandling logs unhandled errors with a stack trace and keeps
// echo's responses for *echo.HTTPError.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code >= http.StatusInternalServerError {
				applog.FromContext(c.Request().Context()).Error("Internal Server Error", "error", err, "path", c.Path())
			}
			_ = c.JSON(he.Code, map[string]interface{}{"error": he.Message})
			return
		}

		applog.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
			"error", err.Error(),
			"path", c.Path(),
			"stack_trace", string(debug.Stack()),
		)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
