package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/scripthost/internal/script"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorHandler_WithStackTrace(t *testing.T) {
	// --- Setup ---
	e := echo.New()

	var logBuffer bytes.Buffer
	handler := slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{
		AddSource: true,
	})
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(originalLogger)

	setupErrorHandling(e)

	e.GET("/test-unhandled-error", func(c echo.Context) error {
		return errors.New("a deliberate unhandled error occurred")
	})

	// --- Act ---
	req := httptest.NewRequest(http.MethodGet, "/test-unhandled-error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// --- Assert ---
	require.Equal(t, http.StatusInternalServerError, rec.Code, "Expected a 500 Internal Server Error response")

	logOutput := logBuffer.String()
	assert.Contains(t, logOutput, "Internal Server Error (Unhandled)")
	assert.Contains(t, logOutput, "error=\"a deliberate unhandled error occurred\"")
	assert.Contains(t, logOutput, "stack_trace=")
	assert.Contains(t, logOutput, "runtime/debug/stack.go", "Stack trace should originate from the debug package")
	assert.Contains(t, logOutput, "internal/server/server_test.go", "Stack trace should point back to this test file")
}

// newTestServer loads two chat handlers and a broken script into a
// memory-backed engine.
func newTestServer(t *testing.T) (*Server, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	write := func(path, content string) {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	write("/scripts/a_logger.tengo", "// @events: chatMessage\nlog(args.message)")
	write("/scripts/b_filter.lua", "-- @events: chatMessage\nif args.message == \"badword\" then args.propagationStopped = true end")
	write("/scripts/broken.tengo", "// @events: gameAwake\nx := ")

	engine := script.NewEngine(script.Dependencies{
		Options: script.Options{Dirs: []string{"/scripts"}, Limits: script.GetDefaultSecurityLimits()},
		Fs:      fs,
	})
	_, err := engine.Initialize(context.Background())
	require.NoError(t, err)

	return New(engine, ":0"), fs
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Scripts)
	assert.Equal(t, []string{"lua", "tengo"}, health.Languages)
	assert.Equal(t, map[script.ScriptEvent]int{script.EventChatMessage: 2}, health.Handlers)
}

func TestServer_ScriptsAndEvents(t *testing.T) {
	s, _ := newTestServer(t)

	scripts := decode[[]scriptView](t, serve(s, http.MethodGet, "/scripts", ""))
	require.Len(t, scripts, 2)
	assert.Equal(t, "/scripts/a_logger.tengo", scripts[0].Path)
	assert.NotEmpty(t, scripts[0].Checksum)

	events := decode[[]eventView](t, serve(s, http.MethodGet, "/events", ""))
	assert.Len(t, events, len(script.DefaultEvents))
	for _, e := range events {
		if e.Name == script.EventChatMessage {
			assert.Equal(t, []string{"/scripts/a_logger.tengo", "/scripts/b_filter.lua"}, e.Handlers)
		}
	}
}

func TestServer_FireEvent(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/events/CHATMESSAGE", `{"message":"badword"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dispatchResponse](t, rec)
	assert.Equal(t, script.EventChatMessage, resp.Event)
	assert.True(t, resp.Dispatched)
	assert.Equal(t, "stopped", resp.State)
	assert.Equal(t, 2, resp.HandlersRun)
	assert.True(t, resp.PropagationStopped)

	resp = decode[dispatchResponse](t, serve(s, http.MethodPost, "/events/gameAwake", ""))
	assert.False(t, resp.Dispatched)
	assert.Equal(t, "idle", resp.State)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodPost, "/events/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/events/chatMessage", `[1,2]`).Code)
}

func TestServer_ReloadAndErrors(t *testing.T) {
	s, fs := newTestServer(t)

	summary := decode[script.ErrorSummary](t, serve(s, http.MethodGet, "/errors", ""))
	assert.Equal(t, 1, summary.ErrorsByType[script.ErrorTypeSyntax])

	assert.Equal(t, http.StatusNoContent, serve(s, http.MethodDelete, "/errors", "").Code)
	summary = decode[script.ErrorSummary](t, serve(s, http.MethodGet, "/errors", ""))
	assert.Equal(t, 0, summary.TotalErrors)

	require.NoError(t, afero.WriteFile(fs, "/scripts/broken.tengo", []byte("// @events: nosuchEvent\nx := 1"), 0o644))
	report := decode[reloadResponse](t, serve(s, http.MethodPost, "/reload", ""))
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, script.ErrorTypeUnknownEvent, report.Failures[0].Type)
}
