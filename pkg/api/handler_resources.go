package api

import (
	"net/http"
	"sort"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// allocationStateHandler handles GET /api/resources/allocation.
func (s *Server) allocationStateHandler(c *echo.Context) error {
	snap := s.coordinator.Graph().Snapshot()

	resources := make([]*models.ResourceNode, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		resources = append(resources, r)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })

	incidents := make([]*models.IncidentNode, 0)
	for _, inc := range snap.Incidents {
		if inc.Status == models.IncidentActive {
			incidents = append(incidents, inc)
		}
	}
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].ID < incidents[j].ID })

	plans := make([]*models.AllocationPlan, 0, len(snap.AllocationPlans))
	for _, p := range snap.AllocationPlans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })

	camps := make([]*models.CampRecommendation, 0, len(snap.CampLocations))
	for _, camp := range snap.CampLocations {
		camps = append(camps, camp)
	}
	sort.Slice(camps, func(i, j int) bool { return camps[i].ID < camps[j].ID })

	return c.JSON(http.StatusOK, &AllocationStateResponse{
		Resources:       resources,
		Incidents:       incidents,
		AllocationPlans: plans,
		Camps:           camps,
		Stats:           s.coordinator.Graph().Stats(),
	})
}

// assignResourceHandler handles POST /api/resources/assign.
func (s *Server) assignResourceHandler(c *echo.Context) error {
	var req AssignResourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ResourceID == "" || req.IncidentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource_id and incident_id are required")
	}

	if _, err := s.coordinator.AssignResource(req.ResourceID, req.IncidentID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &StatusResponse{
		Status:     "assigned",
		ResourceID: req.ResourceID,
		IncidentID: req.IncidentID,
	})
}

// unassignResourceHandler handles POST /api/resources/unassign/:id.
func (s *Server) unassignResourceHandler(c *echo.Context) error {
	resourceID := c.Param("id")
	if resourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource id is required")
	}

	if _, err := s.coordinator.UnassignResource(resourceID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &StatusResponse{
		Status:     "unassigned",
		ResourceID: resourceID,
	})
}

// generatePlanHandler handles POST /api/resources/generate-plan.
func (s *Server) generatePlanHandler(c *echo.Context) error {
	plan, err := s.coordinator.GenerateAllocationPlan(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

// approvePlanHandler handles POST /api/resources/plans/:id/approve.
func (s *Server) approvePlanHandler(c *echo.Context) error {
	planID := c.Param("id")
	if planID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan id is required")
	}

	if _, err := s.coordinator.ApprovePlan(planID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &StatusResponse{
		Status: "approved",
		PlanID: planID,
	})
}

// generateCampsHandler handles POST /api/camps/generate.
func (s *Server) generateCampsHandler(c *echo.Context) error {
	camps, err := s.coordinator.GenerateCampRecommendations(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, camps)
}

// listCampsHandler handles GET /api/camps.
func (s *Server) listCampsHandler(c *echo.Context) error {
	snap := s.coordinator.Graph().Snapshot()

	camps := make([]*models.CampRecommendation, 0, len(snap.CampLocations))
	for _, camp := range snap.CampLocations {
		camps = append(camps, camp)
	}
	sort.Slice(camps, func(i, j int) bool { return camps[i].ID < camps[j].ID })

	return c.JSON(http.StatusOK, camps)
}

// approveCampHandler handles POST /api/camps/:id/approve.
func (s *Server) approveCampHandler(c *echo.Context) error {
	campID := c.Param("id")
	if campID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "camp id is required")
	}

	if _, err := s.coordinator.ApproveCamp(campID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &StatusResponse{
		Status: "approved",
		CampID: campID,
	})
}

// rejectCampHandler handles POST /api/camps/:id/reject.
func (s *Server) rejectCampHandler(c *echo.Context) error {
	campID := c.Param("id")
	if campID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "camp id is required")
	}

	if _, err := s.coordinator.RejectCamp(campID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &StatusResponse{
		Status: "rejected",
		CampID: campID,
	})
}
