package server

import (
	"errors"
	"log/slog"
	"net/http"
)

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Status server listening", "addr", s.addr)
	if err := s.E.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
