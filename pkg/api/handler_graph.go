package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// graphHandler handles GET /api/graph.
func (s *Server) graphHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coordinator.Graph().Snapshot())
}

// incidentsHandler handles GET /api/graph/incidents.
func (s *Server) incidentsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coordinator.Graph().Snapshot().Incidents)
}

// incidentHandler handles GET /api/graph/incidents/:id.
func (s *Server) incidentHandler(c *echo.Context) error {
	incidentID := c.Param("id")
	if incidentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "incident id is required")
	}

	incident, ok := s.coordinator.Graph().Snapshot().Incidents[incidentID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "incident not found")
	}
	return c.JSON(http.StatusOK, incident)
}

// resourcesHandler handles GET /api/graph/resources.
func (s *Server) resourcesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coordinator.Graph().Snapshot().Resources)
}

// statsHandler handles GET /api/graph/stats.
func (s *Server) statsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coordinator.Graph().Stats())
}

// timelineHandler handles GET /api/timeline.
func (s *Server) timelineHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &TimelineResponse{
		Events: s.coordinator.RecentEvents(30),
	})
}

// decisionAuditHandler handles GET /api/audit/decision/:id.
func (s *Server) decisionAuditHandler(c *echo.Context) error {
	decisionID := c.Param("id")
	if decisionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision id is required")
	}
	return c.JSON(http.StatusOK, s.coordinator.DecisionAudit(decisionID))
}

// incidentAuditHandler handles GET /api/audit/incident/:id.
func (s *Server) incidentAuditHandler(c *echo.Context) error {
	incidentID := c.Param("id")
	if incidentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "incident id is required")
	}

	audit, err := s.coordinator.IncidentAudit(incidentID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, audit)
}
