package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MapHandlers exposes the health endpoint. Health covers the pipeline too:
// the scheduler's counters are part of the report, not just reachability.
func (s *Server) MapHandlers(e *echo.Echo) {
	v1 := e.Group("/api/v1")
	health := v1.Group("/health")

	health.GET("", func(c echo.Context) error {
		stats := s.scheduler.Stats()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":          "OK",
			"version":         s.cfg.Server.AppVersion,
			"queued":          stats.Queued,
			"running":         stats.Running,
			"open_workspaces": s.workspaces.Open(),
		})
	})
}
