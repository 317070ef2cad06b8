package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// askCopilotHandler handles POST /api/copilot/ask.
func (s *Server) askCopilotHandler(c *echo.Context) error {
	var req CopilotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	answer, err := s.copilot.Ask(c.Request().Context(), req.Question, req.History)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &CopilotResponse{
		Answer:    answer,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
