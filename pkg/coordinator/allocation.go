package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// Map origin for camps the analyzer placed without coordinates
const (
	mapOriginLat = 37.78
	mapOriginLng = -122.41
)

// GenerateAllocationPlan asks the allocation analyzer for a bulk plan:
// suggested resource-to-incident assignments plus suggested camp sites. The
// plan is stored as a draft until an operator approves it.
func (c *Coordinator) GenerateAllocationPlan(ctx context.Context) (*models.AllocationPlan, error) {
	output, err := c.allocation.Analyze(ctx, c.allocationInput())
	if err != nil {
		return nil, err
	}

	now := c.now()
	plan := &models.AllocationPlan{
		ID:                "plan_" + shortID(8),
		OverallConfidence: getFloat(output.Data, "overall_confidence", 0.7),
		KeyAssumptions:    getStrings(output.Data, "key_assumptions"),
		CreatedAt:         now,
		Status:            models.PlanDraft,
	}

	for _, raw := range getSlice(output.Data, "resource_assignments") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		assignment := models.ResourceAssignment{
			ID:               "assign_" + shortID(6),
			ResourceID:       getString(m, "resource_id"),
			TargetIncidentID: getString(m, "target_incident_id"),
			Rationale:        getString(m, "rationale"),
			Priority:         int(getFloat(m, "priority", 1)),
			Status:           models.AssignmentSuggested,
			CreatedAt:        now,
		}
		if v, ok := asFloat(m["estimated_eta_minutes"]); ok {
			eta := int(v)
			assignment.EstimatedETAMinutes = &eta
		}
		plan.ResourceAssignments = append(plan.ResourceAssignments, assignment)
	}

	for _, raw := range getSlice(output.Data, "camp_recommendations") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		plan.CampRecommendations = append(plan.CampRecommendations, buildCamp(m, now))
	}

	stored := c.graph.AddAllocationPlan(plan)
	c.hub.Broadcast("allocation_update", stored)
	c.addEvent("allocation_plan_generated", map[string]any{
		"plan_id":     stored.ID,
		"assignments": len(stored.ResourceAssignments),
		"camps":       len(stored.CampRecommendations),
	})
	c.broadcastTimeline()
	return stored, nil
}

// GenerateCampRecommendations runs the allocation analyzer but keeps only the
// camp suggestions, registering each on the graph for individual review
func (c *Coordinator) GenerateCampRecommendations(ctx context.Context) ([]*models.CampRecommendation, error) {
	output, err := c.allocation.Analyze(ctx, c.allocationInput())
	if err != nil {
		return nil, err
	}

	now := c.now()
	var camps []*models.CampRecommendation
	for _, raw := range getSlice(output.Data, "camp_recommendations") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		camp := buildCamp(m, now)
		stored := c.graph.AddCamp(&camp)
		c.hub.Broadcast("camp_recommendation", stored)
		camps = append(camps, stored)
	}

	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	return camps, nil
}

// ApprovePlan activates a draft plan: every suggested assignment whose
// resource is still available gets dispatched, and every suggested camp is
// registered on the graph. Assignments that can no longer be satisfied stay
// suggested for the record.
func (c *Coordinator) ApprovePlan(planID string) (*models.AllocationPlan, error) {
	plan, err := c.graph.AllocationPlan(planID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	for i := range plan.ResourceAssignments {
		a := &plan.ResourceAssignments[i]
		if a.Status != models.AssignmentSuggested {
			continue
		}
		if _, assignErr := c.graph.AssignResourceManual(a.ResourceID, a.TargetIncidentID); assignErr != nil {
			continue
		}
		a.Status = models.AssignmentApproved
		decided := now
		a.DecidedAt = &decided
	}

	for i := range plan.CampRecommendations {
		camp := plan.CampRecommendations[i]
		if camp.Status != models.CampSuggested {
			continue
		}
		c.graph.AddCamp(&camp)
	}

	plan.Status = models.PlanActive
	c.graph.UpdateAllocationPlan(plan)

	c.hub.Broadcast("allocation_update", plan)
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.addEvent("allocation_plan_approved", map[string]any{"plan_id": planID})
	c.broadcastTimeline()
	return plan, nil
}

// ApproveCamp activates one suggested camp
func (c *Coordinator) ApproveCamp(campID string) (*models.CampRecommendation, error) {
	camp, err := c.graph.ApproveCamp(campID)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	return camp, nil
}

// RejectCamp declines one suggested camp
func (c *Coordinator) RejectCamp(campID string) (*models.CampRecommendation, error) {
	camp, err := c.graph.RejectCamp(campID)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	return camp, nil
}

// AssignResource manually dispatches one resource to one incident
func (c *Coordinator) AssignResource(resourceID, incidentID string) (*models.ResourceNode, error) {
	resource, err := c.graph.AssignResourceManual(resourceID, incidentID)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast("resource_update", resource)
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	return resource, nil
}

// UnassignResource recalls one resource to the available pool
func (c *Coordinator) UnassignResource(resourceID string) (*models.ResourceNode, error) {
	resource, err := c.graph.UnassignResource(resourceID)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast("resource_update", resource)
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	return resource, nil
}

// VoiceReportInput carries a transcribed field report plus the structured
// details extracted from it
type VoiceReportInput struct {
	Transcript           string           `json:"transcript"`
	CampName             string           `json:"camp_name,omitempty"`
	CallerLocation       string           `json:"caller_location,omitempty"`
	PopulationCount      *int             `json:"population_count,omitempty"`
	MedicalEmergencies   []map[string]any `json:"medical_emergencies,omitempty"`
	SuppliesNeeded       []string         `json:"supplies_needed,omitempty"`
	InfrastructureStatus string           `json:"infrastructure_status,omitempty"`
}

// ProcessVoiceTranscript stores a field voice report and replays its
// transcript through the text signal pipeline so the detector and planner see
// it like any other report
func (c *Coordinator) ProcessVoiceTranscript(ctx context.Context, in VoiceReportInput) (*models.VoiceReport, *models.SignalResult, error) {
	if in.Transcript == "" {
		return nil, nil, fmt.Errorf("empty transcript")
	}

	reportID := "voice_" + shortID(8)

	locationName := in.CampName
	if locationName == "" {
		locationName = in.CallerLocation
	}
	if locationName == "" {
		locationName = "Field Report"
	}

	result, err := c.ProcessSignal(ctx, models.SignalInput{
		SignalType: models.SignalTypeText,
		Content:    in.Transcript,
		Metadata: map[string]any{
			"source":        "voice_report_" + reportID,
			"source_type":   "field_coordinator",
			"location_name": locationName,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	report := c.graph.AddVoiceReport(&models.VoiceReport{
		ID:                   reportID,
		Transcript:           in.Transcript,
		CampName:             in.CampName,
		CallerLocation:       in.CallerLocation,
		PopulationCount:      in.PopulationCount,
		MedicalEmergencies:   in.MedicalEmergencies,
		SuppliesNeeded:       in.SuppliesNeeded,
		InfrastructureStatus: in.InfrastructureStatus,
		SignalsCreated:       []string{result.SignalID},
		CreatedAt:            c.now(),
	})

	c.hub.Broadcast("voice_report", report)
	return report, result, nil
}

func (c *Coordinator) allocationInput() analyzer.AllocationInput {
	snap := c.graph.Snapshot()

	var incidents []*models.IncidentNode
	for _, inc := range snap.Incidents {
		if inc.Status == models.IncidentActive || inc.Status == models.IncidentResponding {
			incidents = append(incidents, inc)
		}
	}
	var resources []*models.ResourceNode
	for _, r := range snap.Resources {
		resources = append(resources, r)
	}
	var locations []*models.LocationNode
	for _, l := range snap.Locations {
		locations = append(locations, l)
	}

	return analyzer.AllocationInput{
		Incidents:   incidents,
		Resources:   resources,
		Locations:   locations,
		Constraints: c.situationConstraints(),
	}
}

func buildCamp(m map[string]any, now time.Time) models.CampRecommendation {
	name := getString(m, "name")
	if name == "" {
		name = "Relief Camp"
	}
	campType := getString(m, "camp_type")
	if campType == "" {
		campType = "relief_camp"
	}

	loc := models.Location{Lat: mapOriginLat, Lng: mapOriginLng, Name: name}
	if lm := getMap(m, "location"); lm != nil {
		if lat, ok := asFloat(lm["lat"]); ok {
			loc.Lat = lat
		}
		if lng, ok := asFloat(lm["lng"]); ok {
			loc.Lng = lng
		}
	}

	return models.CampRecommendation{
		ID:              "camp_" + shortID(6),
		Name:            name,
		Location:        loc,
		CampType:        campType,
		CapacityPersons: int(getFloat(m, "capacity_persons", 100)),
		Rationale:       getString(m, "rationale"),
		Confidence:      getFloat(m, "confidence", 0.7),
		Factors:         getMap(m, "factors"),
		Status:          models.CampSuggested,
		CreatedAt:       now,
	}
}
