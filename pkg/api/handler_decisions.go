package api

import (
	"net/http"
	"sort"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// pendingDecisionsHandler handles GET /api/decisions/pending.
func (s *Server) pendingDecisionsHandler(c *echo.Context) error {
	snap := s.coordinator.Graph().Snapshot()

	contradictions := make([]*models.ContradictionAlert, 0)
	for _, alert := range snap.Contradictions {
		if !alert.Resolved {
			contradictions = append(contradictions, alert)
		}
	}
	sort.Slice(contradictions, func(i, j int) bool { return contradictions[i].ID < contradictions[j].ID })

	actions := make([]*models.ActionRecommendation, 0)
	for _, action := range snap.PendingActions {
		if action.Status == models.DecisionPending {
			actions = append(actions, action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })

	return c.JSON(http.StatusOK, &PendingDecisionsResponse{
		Contradictions: contradictions,
		Actions:        actions,
	})
}

// resolveContradictionHandler handles POST /api/decisions/contradiction/:id.
func (s *Server) resolveContradictionHandler(c *echo.Context) error {
	alertID := c.Param("id")
	if alertID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "alert id is required")
	}

	var decision models.HumanDecision
	if err := c.Bind(&decision); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if decision.Decision == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision is required")
	}
	if decision.DecidedBy == "" {
		decision.DecidedBy = "operator"
	}

	alert, err := s.coordinator.ResolveContradiction(alertID, decision.Decision, decision.DecidedBy)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, alert)
}

// approveActionHandler handles POST /api/decisions/action/:id/approve.
func (s *Server) approveActionHandler(c *echo.Context) error {
	actionID := c.Param("id")
	if actionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action id is required")
	}

	action, err := s.coordinator.ApproveAction(actionID, "operator")
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, action)
}

// rejectActionHandler handles POST /api/decisions/action/:id/reject.
func (s *Server) rejectActionHandler(c *echo.Context) error {
	actionID := c.Param("id")
	if actionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action id is required")
	}

	// The reason body is optional.
	var req RejectActionRequest
	_ = c.Bind(&req)

	action, err := s.coordinator.RejectAction(actionID, req.Reason, "operator")
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, action)
}

// startDebateHandler handles POST /api/debate/:id/start. The debate runs to
// completion; turns stream over the WebSocket as they are produced and the
// full transcript comes back in the response.
func (s *Server) startDebateHandler(c *echo.Context) error {
	alertID := c.Param("id")
	if alertID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "alert id is required")
	}

	turns, err := s.coordinator.StartDebate(c.Request().Context(), alertID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &DebateResponse{
		Status:  "complete",
		AlertID: alertID,
		Turns:   turns,
	})
}
