package models

import "strings"

// SignalType identifies the modality of an inbound signal
type SignalType string

const (
	SignalTypeImage SignalType = "image"
	SignalTypeAudio SignalType = "audio"
	SignalTypeText  SignalType = "text"
)

// IsValid checks if the signal type is valid
func (t SignalType) IsValid() bool {
	return t == SignalTypeImage || t == SignalTypeAudio || t == SignalTypeText
}

// SourceType identifies the provenance of a source reference
type SourceType string

const (
	SourceTypeImage     SourceType = "image"
	SourceTypeAudio     SourceType = "audio"
	SourceTypeText      SourceType = "text"
	SourceTypeDocument  SourceType = "document"
	SourceTypeSatellite SourceType = "satellite"
)

// DamageLevel grades observed structural damage
type DamageLevel string

const (
	DamageNone         DamageLevel = "none"
	DamageMinor        DamageLevel = "minor"
	DamageModerate     DamageLevel = "moderate"
	DamageSevere       DamageLevel = "severe"
	DamageCatastrophic DamageLevel = "catastrophic"
)

// Urgency ranks how quickly an incident needs a response
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// ParseUrgency maps a free-form urgency string to a level. Analyzer output is
// often verbose ("HIGH - multiple trapped"), so this takes the first level
// whose name appears as a substring, checked from critical down to low.
// Unrecognized strings default to high.
func ParseUrgency(s string) Urgency {
	lower := strings.ToLower(s)
	for _, u := range []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow} {
		if strings.Contains(lower, string(u)) {
			return u
		}
	}
	return UrgencyHigh
}

// UrgencyForDamage maps a damage level string to the urgency an incident is
// created with. Unknown damage strings map to high (the moderate row).
func UrgencyForDamage(damage string) Urgency {
	switch DamageLevel(strings.ToLower(strings.TrimSpace(damage))) {
	case DamageCatastrophic, DamageSevere:
		return UrgencyCritical
	case DamageModerate:
		return UrgencyHigh
	case DamageMinor:
		return UrgencyMedium
	case DamageNone:
		return UrgencyLow
	default:
		return UrgencyHigh
	}
}

// IncidentStatus tracks an incident's lifecycle
type IncidentStatus string

const (
	IncidentActive     IncidentStatus = "active"
	IncidentResponding IncidentStatus = "responding"
	IncidentContained  IncidentStatus = "contained"
	IncidentResolved   IncidentStatus = "resolved"
)

// ResourceStatus tracks a response unit's lifecycle
type ResourceStatus string

const (
	ResourceAvailable  ResourceStatus = "available"
	ResourceDispatched ResourceStatus = "dispatched"
	ResourceOnScene    ResourceStatus = "on_scene"
	ResourceReturning  ResourceStatus = "returning"
	ResourceOffline    ResourceStatus = "offline"
)

// LocationStatus tracks the operational state of a fixed location
type LocationStatus string

const (
	LocationOperational LocationStatus = "operational"
	LocationDamaged     LocationStatus = "damaged"
	LocationDestroyed   LocationStatus = "destroyed"
	LocationUnknown     LocationStatus = "unknown"
)

// Accessibility grades how reachable a location is
type Accessibility string

const (
	AccessAccessible       Accessibility = "accessible"
	AccessPartiallyBlocked Accessibility = "partially_blocked"
	AccessBlocked          Accessibility = "blocked"
	AccessHazardous        Accessibility = "hazardous"
	AccessUnknown          Accessibility = "unknown"
)

// EdgeType is the fixed vocabulary of graph relations
type EdgeType string

const (
	EdgeLocatedAt        EdgeType = "located_at"
	EdgeAssignedTo       EdgeType = "assigned_to"
	EdgeBlocksAccessTo   EdgeType = "blocks_access_to"
	EdgeCausedBy         EdgeType = "caused_by"
	EdgeRequiresResource EdgeType = "requires_resource"
	EdgeEvacuateTo       EdgeType = "evacuate_to"
)

// Verdict is the verification analyzer's judgment over accumulated claims
type Verdict string

const (
	VerdictConsistent    Verdict = "consistent"
	VerdictContradiction Verdict = "contradiction"
	VerdictUncertain     Verdict = "uncertain"
	VerdictTemporalGap   Verdict = "temporal_gap"
)

// ParseVerdict maps analyzer verdict strings (often uppercase) to a Verdict.
// Unrecognized strings map to uncertain.
func ParseVerdict(s string) Verdict {
	switch Verdict(strings.ToLower(strings.TrimSpace(s))) {
	case VerdictConsistent:
		return VerdictConsistent
	case VerdictContradiction:
		return VerdictContradiction
	case VerdictTemporalGap:
		return VerdictTemporalGap
	default:
		return VerdictUncertain
	}
}

// Severity grades a contradiction alert
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RecommendedAction is the verification analyzer's suggested follow-up
type RecommendedAction string

const (
	RecommendAccept        RecommendedAction = "accept"
	RecommendFlagForHuman  RecommendedAction = "flag_for_human"
	RecommendRequestVerify RecommendedAction = "request_verification"
	RecommendWait          RecommendedAction = "wait"
)

// DecisionStatus is the approval lifecycle of an action recommendation
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
	DecisionExecuted DecisionStatus = "executed"
	DecisionExpired  DecisionStatus = "expired"
)

// AssignmentStatus is the lifecycle of a suggested resource assignment
type AssignmentStatus string

const (
	AssignmentSuggested AssignmentStatus = "suggested"
	AssignmentApproved  AssignmentStatus = "approved"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentExecuted  AssignmentStatus = "executed"
)

// CampStatus is the lifecycle of a camp recommendation
type CampStatus string

const (
	CampSuggested CampStatus = "suggested"
	CampApproved  CampStatus = "approved"
	CampRejected  CampStatus = "rejected"
	CampActive    CampStatus = "active"
)

// PlanStatus is the lifecycle of an allocation plan
type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanActive     PlanStatus = "active"
	PlanSuperseded PlanStatus = "superseded"
)
