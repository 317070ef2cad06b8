package api

import (
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// PendingDecisionsResponse lists everything awaiting an operator verdict.
type PendingDecisionsResponse struct {
	Contradictions []*models.ContradictionAlert   `json:"contradictions"`
	Actions        []*models.ActionRecommendation `json:"actions"`
}

// StatusResponse is the generic acknowledgement for state-changing posts.
type StatusResponse struct {
	Status     string `json:"status"`
	ResourceID string `json:"resource_id,omitempty"`
	IncidentID string `json:"incident_id,omitempty"`
	PlanID     string `json:"plan_id,omitempty"`
	CampID     string `json:"camp_id,omitempty"`
}

// SimulationStartedResponse acknowledges a replay start.
type SimulationStartedResponse struct {
	Status   string  `json:"status"`
	Scenario string  `json:"scenario"`
	Speed    float64 `json:"speed"`
}

// AllocationStateResponse is the resource allocation overview.
type AllocationStateResponse struct {
	Resources       []*models.ResourceNode       `json:"resources"`
	Incidents       []*models.IncidentNode       `json:"incidents"`
	AllocationPlans []*models.AllocationPlan     `json:"allocation_plans"`
	Camps           []*models.CampRecommendation `json:"camps"`
	Stats           models.GraphStats            `json:"stats"`
}

// DebateResponse returns the completed four-turn debate for an alert.
type DebateResponse struct {
	Status  string              `json:"status"`
	AlertID string              `json:"alert_id"`
	Turns   []models.DebateTurn `json:"turns"`
}

// CopilotResponse is the co-pilot's answer.
type CopilotResponse struct {
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// VoiceReportResponse carries generated briefing text.
type VoiceReportResponse struct {
	ReportText string `json:"report_text"`
}

// TranscribeResponse acknowledges an ingested voice transcript.
type TranscribeResponse struct {
	ReportID     string               `json:"report_id"`
	SignalResult *models.SignalResult `json:"signal_result"`
	Status       string               `json:"status"`
}

// TimelineResponse wraps the recent event ring.
type TimelineResponse struct {
	Events []models.TimelineEvent `json:"events"`
}
