package api

import "github.com/crisiscore-hq/crisiscore/pkg/copilot"

// StartSimulationRequest configures a scripted replay run. Both fields are
// optional; defaults come from server settings.
type StartSimulationRequest struct {
	ScenarioID string  `json:"scenario_id"`
	Speed      float64 `json:"speed"`
}

// RejectActionRequest carries the optional operator reason for a rejection.
type RejectActionRequest struct {
	Reason string `json:"reason"`
}

// AssignResourceRequest manually binds a resource to an incident.
type AssignResourceRequest struct {
	ResourceID string `json:"resource_id"`
	IncidentID string `json:"incident_id"`
}

// SynthesizeRequest holds the text to speak. When empty, the server speaks a
// freshly generated situation report.
type SynthesizeRequest struct {
	Text string `json:"text"`
}

// CopilotRequest is a natural language question plus prior conversation turns.
type CopilotRequest struct {
	Question string         `json:"question"`
	History  []copilot.Turn `json:"history"`
}
