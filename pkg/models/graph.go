package models

import "time"

// Location is a plain coordinate value with optional descriptive fields
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
	Sector  string  `json:"sector,omitempty"`
	Name    string  `json:"name,omitempty"`
}

// SourceReference records where a piece of graph state came from
type SourceReference struct {
	SourceID         string     `json:"source_id"`
	SourceType       SourceType `json:"source_type"`
	Timestamp        time.Time  `json:"timestamp"`
	RawContentRef    string     `json:"raw_content_ref"`
	CredibilityScore float64    `json:"credibility_score"`
}

// IncidentNode is one incident in the situation graph
type IncidentNode struct {
	ID           string      `json:"id"`
	IncidentType string      `json:"incident_type"`
	Location     Location    `json:"location"`
	DamageLevel  DamageLevel `json:"damage_level"`
	Urgency      Urgency     `json:"urgency"`

	// Casualty estimates
	TrappedMin *int `json:"trapped_min,omitempty"`
	TrappedMax *int `json:"trapped_max,omitempty"`
	InjuredMin *int `json:"injured_min,omitempty"`
	InjuredMax *int `json:"injured_max,omitempty"`

	Confidence float64           `json:"confidence"`
	Sources    []SourceReference `json:"sources"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	// Epistemic state
	Contradictions []string `json:"contradictions"`
	DecayRate      float64  `json:"decay_rate"`

	Status            IncidentStatus `json:"status"`
	AssignedResources []string       `json:"assigned_resources"`
}

// ResourceNode is one response unit (ambulance, fire truck, SAR team, ...)
type ResourceNode struct {
	ID           string `json:"id"`
	ResourceType string `json:"resource_type"`
	UnitID       string `json:"unit_id"`

	CurrentLocation Location  `json:"current_location"`
	Destination     *Location `json:"destination,omitempty"`

	Status           ResourceStatus `json:"status"`
	AssignedIncident string         `json:"assigned_incident,omitempty"`

	Personnel         int `json:"personnel"`
	CapacityRemaining int `json:"capacity_remaining"`

	ETAMinutes *int      `json:"eta_minutes,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LocationNode is a fixed point of interest (hospital, bridge, shelter, ...)
type LocationNode struct {
	ID           string   `json:"id"`
	Location     Location `json:"location"`
	LocationType string   `json:"location_type"`

	// For hospitals
	CapacityTotal *int `json:"capacity_total,omitempty"`
	CapacityUsed  *int `json:"capacity_used,omitempty"`

	Status        LocationStatus `json:"status"`
	Accessibility Accessibility  `json:"accessibility"`

	Confidence float64           `json:"confidence"`
	Sources    []SourceReference `json:"sources"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// GraphEdge is an informational relation between two nodes. Authoritative
// assignment state lives on the nodes, not here.
type GraphEdge struct {
	ID           string         `json:"id"`
	SourceNodeID string         `json:"source_node_id"`
	TargetNodeID string         `json:"target_node_id"`
	Relationship EdgeType       `json:"relationship"`
	Confidence   float64        `json:"confidence"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Claim is one source's assertion about a named entity
type Claim struct {
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type,omitempty"`
	Claim      string     `json:"claim"`
	Confidence float64    `json:"confidence"`
	Timestamp  string     `json:"timestamp,omitempty"`
}

// ContradictionAlert flags a disagreement between sources about one entity
type ContradictionAlert struct {
	ID         string `json:"id"`
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`

	Claims []Claim `json:"claims"`

	Verdict  Verdict  `json:"verdict"`
	Severity Severity `json:"severity"`

	TemporalAnalysis         string            `json:"temporal_analysis,omitempty"`
	RecommendedAction        RecommendedAction `json:"recommended_action"`
	RecommendedActionDetails string            `json:"recommended_action_details"`

	Urgency   Urgency   `json:"urgency"`
	CreatedAt time.Time `json:"created_at"`

	Resolved   bool       `json:"resolved"`
	Resolution string     `json:"resolution,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ActionRecommendation is a proposed resources-to-incident assignment
// awaiting operator approval
type ActionRecommendation struct {
	ID         string `json:"id"`
	ActionType string `json:"action_type"`

	TargetIncidentID string    `json:"target_incident_id,omitempty"`
	TargetLocation   *Location `json:"target_location,omitempty"`
	TargetSector     string    `json:"target_sector,omitempty"`

	ResourcesToAllocate []string `json:"resources_to_allocate"`

	Rationale         string   `json:"rationale"`
	SupportingFactors []string `json:"supporting_factors"`
	Confidence        float64  `json:"confidence"`

	// Tradeoffs are the key differentiator: the plan must say what gets
	// worse if it is followed.
	Tradeoffs []map[string]any `json:"tradeoffs"`

	UncertaintyFactors []string `json:"uncertainty_factors"`

	RequiresHumanApproval bool      `json:"requires_human_approval"`
	DecisionDeadline      time.Time `json:"decision_deadline"`
	TimeSensitivity       Urgency   `json:"time_sensitivity"`

	Status    DecisionStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
	DecidedBy string         `json:"decided_by,omitempty"`
}

// IsExpired reports whether the decision window has closed. Expiration is a
// derived view; the record itself stays pending for audit.
func (a *ActionRecommendation) IsExpired(now time.Time) bool {
	return a.Status == DecisionPending && now.After(a.DecisionDeadline)
}

// ResourceAssignment is one suggested resource-to-incident pairing
type ResourceAssignment struct {
	ID                  string           `json:"id"`
	ResourceID          string           `json:"resource_id"`
	TargetIncidentID    string           `json:"target_incident_id"`
	Rationale           string           `json:"rationale"`
	Priority            int              `json:"priority"`
	EstimatedETAMinutes *int             `json:"estimated_eta_minutes,omitempty"`
	Status              AssignmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	DecidedAt           *time.Time       `json:"decided_at,omitempty"`
}

// CampRecommendation proposes a relief/staging/triage camp site
type CampRecommendation struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Location        Location       `json:"location"`
	CampType        string         `json:"camp_type"`
	CapacityPersons int            `json:"capacity_persons"`
	Rationale       string         `json:"rationale"`
	Confidence      float64        `json:"confidence"`
	Factors         map[string]any `json:"factors,omitempty"`
	Status          CampStatus     `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
}

// AllocationPlan is a bulk allocation proposal: suggested assignments plus
// suggested camps
type AllocationPlan struct {
	ID                  string               `json:"id"`
	ResourceAssignments []ResourceAssignment `json:"resource_assignments"`
	CampRecommendations []CampRecommendation `json:"camp_recommendations"`
	OverallConfidence   float64              `json:"overall_confidence"`
	KeyAssumptions      []string             `json:"key_assumptions"`
	CreatedAt           time.Time            `json:"created_at"`
	Status              PlanStatus           `json:"status"`
}

// VoiceReport stores one transcribed field report
type VoiceReport struct {
	ID                   string           `json:"id"`
	Transcript           string           `json:"transcript"`
	CampName             string           `json:"camp_name,omitempty"`
	CallerLocation       string           `json:"caller_location,omitempty"`
	PopulationCount      *int             `json:"population_count,omitempty"`
	MedicalEmergencies   []map[string]any `json:"medical_emergencies"`
	SuppliesNeeded       []string         `json:"supplies_needed"`
	InfrastructureStatus string           `json:"infrastructure_status,omitempty"`
	SignalsCreated       []string         `json:"signals_created"`
	CreatedAt            time.Time        `json:"created_at"`
}

// SituationGraph is the top-level aggregate: every entity kind keyed by id,
// plus scenario metadata
type SituationGraph struct {
	Incidents map[string]*IncidentNode `json:"incidents"`
	Resources map[string]*ResourceNode `json:"resources"`
	Locations map[string]*LocationNode `json:"locations"`
	Edges     map[string]*GraphEdge    `json:"edges"`

	// Pending items
	Contradictions map[string]*ContradictionAlert   `json:"contradictions"`
	PendingActions map[string]*ActionRecommendation `json:"pending_actions"`

	// Resource allocation
	AllocationPlans map[string]*AllocationPlan     `json:"allocation_plans"`
	CampLocations   map[string]*CampRecommendation `json:"camp_locations"`

	VoiceReports map[string]*VoiceReport `json:"voice_reports"`

	// Metadata
	ScenarioID        string    `json:"scenario_id"`
	ScenarioName      string    `json:"scenario_name"`
	ScenarioStartTime time.Time `json:"scenario_start_time"`
	CurrentSimTime    time.Time `json:"current_sim_time"`
	LastUpdated       time.Time `json:"last_updated"`
}

// NewSituationGraph returns an empty graph with all maps initialized
func NewSituationGraph() *SituationGraph {
	now := time.Now().UTC()
	return &SituationGraph{
		Incidents:         make(map[string]*IncidentNode),
		Resources:         make(map[string]*ResourceNode),
		Locations:         make(map[string]*LocationNode),
		Edges:             make(map[string]*GraphEdge),
		Contradictions:    make(map[string]*ContradictionAlert),
		PendingActions:    make(map[string]*ActionRecommendation),
		AllocationPlans:   make(map[string]*AllocationPlan),
		CampLocations:     make(map[string]*CampRecommendation),
		VoiceReports:      make(map[string]*VoiceReport),
		ScenarioStartTime: now,
		CurrentSimTime:    now,
		LastUpdated:       now,
	}
}

// GraphStats summarizes the graph for dashboards and the copilot
type GraphStats struct {
	TotalIncidents        int `json:"total_incidents"`
	ActiveIncidents       int `json:"active_incidents"`
	RespondingIncidents   int `json:"responding_incidents"`
	ResourcesAvailable    int `json:"resources_available"`
	ResourcesDeployed     int `json:"resources_deployed"`
	PendingContradictions int `json:"pending_contradictions"`
	PendingActions        int `json:"pending_actions"`
	CampsActive           int `json:"camps_active"`
	CampsSuggested        int `json:"camps_suggested"`
}

// AuditRecord is one append-only entry in the graph's audit log
type AuditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}
