package models

import "time"

// SignalInput is one inbound observation before analysis
type SignalInput struct {
	SignalType SignalType     `json:"signal_type"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SignalResult is what the pipeline returns to the caller after a signal
// has been analyzed and merged
type SignalResult struct {
	SignalID   string         `json:"signal_id"`
	Analyzer   string         `json:"analyzer"`
	OutputType string         `json:"output_type"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data"`
	IncidentID string         `json:"incident_id,omitempty"`
}

// HumanDecision is an operator's verdict on a contradiction or action
type HumanDecision struct {
	ItemType      string `json:"item_type"`
	ItemID        string `json:"item_id"`
	Decision      string `json:"decision"`
	OverrideValue string `json:"override_value,omitempty"`
	Notes         string `json:"notes,omitempty"`
	DecidedBy     string `json:"decided_by"`
}

// TimelineEvent is one entry in the coordinator's recent-events ring
type TimelineEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// SimulationStatus reports the driver's current state
type SimulationStatus struct {
	Running        bool      `json:"running"`
	Paused         bool      `json:"paused"`
	ScenarioID     string    `json:"scenario_id"`
	ScenarioName   string    `json:"scenario_name"`
	CurrentTime    time.Time `json:"current_time"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// DebateTurn is one stage of the four-turn contradiction debate
type DebateTurn struct {
	AlertID    string    `json:"alert_id"`
	TurnNumber int       `json:"turn_number"`
	AgentName  string    `json:"agent_name"`
	Role       string    `json:"role"`
	Argument   string    `json:"argument"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Done       bool      `json:"done,omitempty"`
}
