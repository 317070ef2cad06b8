package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

const defaultScenarioID = "earthquake_001"

// startSimulationHandler handles POST /api/simulation/start.
func (s *Server) startSimulationHandler(c *echo.Context) error {
	req := StartSimulationRequest{}
	// The body is optional; defaults replay the stock scenario.
	_ = c.Bind(&req)
	if req.ScenarioID == "" {
		req.ScenarioID = defaultScenarioID
	}
	if req.Speed <= 0 {
		req.Speed = s.cfg.SimulationSpeed
	}

	if _, err := s.coordinator.StartSimulation(req.ScenarioID, req.Speed); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &SimulationStartedResponse{
		Status:   "started",
		Scenario: req.ScenarioID,
		Speed:    req.Speed,
	})
}

// pauseSimulationHandler handles POST /api/simulation/pause.
func (s *Server) pauseSimulationHandler(c *echo.Context) error {
	s.coordinator.PauseSimulation()
	return c.JSON(http.StatusOK, &StatusResponse{Status: "paused"})
}

// resumeSimulationHandler handles POST /api/simulation/resume.
func (s *Server) resumeSimulationHandler(c *echo.Context) error {
	s.coordinator.ResumeSimulation()
	return c.JSON(http.StatusOK, &StatusResponse{Status: "resumed"})
}

// resetSimulationHandler handles POST /api/simulation/reset.
func (s *Server) resetSimulationHandler(c *echo.Context) error {
	s.coordinator.ResetSimulation()
	return c.JSON(http.StatusOK, &StatusResponse{Status: "reset"})
}

// simulationStatusHandler handles GET /api/simulation/status.
func (s *Server) simulationStatusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coordinator.SimulationStatus())
}
