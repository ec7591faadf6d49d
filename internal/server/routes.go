package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/scripthost/internal/middleware"
	"github.com/nfrund/scripthost/internal/script"
)

// Mutating routes share a per-client limit.
const (
	mutationRate  = 5
	mutationBurst = 10
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	limiter := middleware.RateLimiter(mutationRate, mutationBurst)

	s.E.GET("/healthz", s.health)
	s.E.GET("/scripts", s.listScripts)
	s.E.GET("/events", s.listEvents)
	s.E.GET("/errors", s.errorSummary)
	s.E.DELETE("/errors", s.clearErrors)
	s.E.POST("/reload", s.reload, limiter)
	s.E.POST("/events/:name", s.fireEvent, limiter)
}

type healthResponse struct {
	Status          string                     `json:"status"`
	SnapshotVersion uint64                     `json:"snapshot_version"`
	Scripts         int                        `json:"scripts"`
	Languages       []string                   `json:"languages"`
	Handlers        map[script.ScriptEvent]int `json:"handlers"`
}

func (s *Server) health(c echo.Context) error {
	snapshot := s.engine.Snapshot()
	languages := make([]string, 0)
	for _, l := range s.engine.SupportedLanguages() {
		languages = append(languages, string(l))
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:          "ok",
		SnapshotVersion: snapshot.Version(),
		Scripts:         snapshot.Len(),
		Languages:       languages,
		Handlers:        snapshot.HandlerCounts(),
	})
}

type scriptView struct {
	ID       string                `json:"id"`
	Path     string                `json:"path"`
	Language script.ScriptLanguage `json:"language"`
	Events   []script.ScriptEvent  `json:"events"`
	Checksum string                `json:"checksum"`
	LoadedAt time.Time             `json:"loaded_at"`
}

func (s *Server) listScripts(c echo.Context) error {
	regs := s.engine.Snapshot().Registrations()
	views := make([]scriptView, 0, len(regs))
	for _, r := range regs {
		views = append(views, scriptView{
			ID:       r.ID,
			Path:     r.Path,
			Language: r.Language,
			Events:   r.Events,
			Checksum: r.Checksum,
			LoadedAt: r.LoadedAt,
		})
	}
	return c.JSON(http.StatusOK, views)
}

type eventView struct {
	Name     script.ScriptEvent `json:"name"`
	Handlers []string           `json:"handlers"`
}

// listEvents returns every catalog event with its handlers in dispatch order.
func (s *Server) listEvents(c echo.Context) error {
	snapshot := s.engine.Snapshot()
	events := s.engine.Events().Events()
	middleware.FromContext(c.Request().Context()).Debug("Listing events", "count", len(events))

	views := make([]eventView, 0, len(events))
	for _, event := range events {
		handlers := snapshot.Handlers(event)
		paths := make([]string, 0, len(handlers))
		for _, h := range handlers {
			paths = append(paths, h.Path)
		}
		views = append(views, eventView{Name: event, Handlers: paths})
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) errorSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.ErrorSummary())
}

func (s *Server) clearErrors(c echo.Context) error {
	s.engine.ClearErrors()
	return c.NoContent(http.StatusNoContent)
}

type failureView struct {
	Path    string           `json:"path"`
	Type    script.ErrorType `json:"type,omitempty"`
	Message string           `json:"message"`
}

type reloadResponse struct {
	Succeeded int           `json:"succeeded"`
	Failures  []failureView `json:"failures"`
}

// reload rebuilds the registry from the configured directories.
func (s *Server) reload(c echo.Context) error {
	report := s.engine.Reload()
	resp := reloadResponse{Succeeded: report.Succeeded, Failures: make([]failureView, 0, report.Failed())}
	for _, f := range report.Failures {
		view := failureView{Path: f.Path, Message: f.Err.Error()}
		var scriptErr *script.ScriptError
		if errors.As(f.Err, &scriptErr) {
			view.Type = scriptErr.Type
		}
		resp.Failures = append(resp.Failures, view)
	}
	return c.JSON(http.StatusOK, resp)
}

type dispatchResponse struct {
	Event              script.ScriptEvent `json:"event"`
	Dispatched         bool               `json:"dispatched"`
	State              string             `json:"state"`
	HandlersRun        int                `json:"handlers_run"`
	PropagationStopped bool               `json:"propagation_stopped"`
	Cancelled          bool               `json:"cancelled"`
	Errors             []failureView      `json:"errors"`
}

// fireEvent dispatches an event with the JSON body as its fields.
func (s *Server) fireEvent(c echo.Context) error {
	event, err := s.engine.ResolveEvent(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	fields := map[string]interface{}{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
	}

	result := s.engine.InvokeWithResult(c.Request().Context(), event, func() script.EventArgs {
		return script.NewArgs(fields)
	})

	resp := dispatchResponse{
		Event:              event,
		Dispatched:         result.Dispatched(),
		State:              result.State.String(),
		HandlersRun:        result.HandlersRun,
		PropagationStopped: script.Stopped(result.Args),
		Cancelled:          script.Cancelled(result.Args),
		Errors:             make([]failureView, 0, len(result.Errors)),
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, failureView{Path: e.Path, Type: e.Type, Message: e.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}
