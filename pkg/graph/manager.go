// Package graph owns the authoritative in-memory situation state: incidents,
// resources, locations, contradictions, pending actions, allocation plans,
// camps, and voice reports, plus an append-only audit log. All access goes
// through Manager, which serializes mutation behind a single lock.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// ErrNotFound is returned when a referenced entity id does not exist.
var ErrNotFound = errors.New("not found")

// Manager is the single writer for the situation graph. A coarse lock is
// enough at this throughput; the atomic approve and one-alert-per-entity
// invariants both reduce to "mutate under the lock".
type Manager struct {
	mu    sync.Mutex
	graph *models.SituationGraph
	audit []models.AuditRecord
}

// NewManager returns a manager with an empty graph
func NewManager() *Manager {
	return &Manager{graph: models.NewSituationGraph()}
}

// Reset discards all graph state and the audit log
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = models.NewSituationGraph()
	m.audit = nil
}

// SetScenario stamps scenario metadata on the graph
func (m *Manager) SetScenario(id, name string, startTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.ScenarioID = id
	m.graph.ScenarioName = name
	m.graph.ScenarioStartTime = startTime
	m.graph.CurrentSimTime = startTime
	m.graph.LastUpdated = time.Now().UTC()
}

// AdvanceSimTime moves the scenario clock forward
func (m *Manager) AdvanceSimTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.CurrentSimTime = t
}

// Snapshot returns a deep copy of the whole graph, safe to serialize or
// inspect without holding the lock
func (m *Manager) Snapshot() *models.SituationGraph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.Clone()
}

// Stats summarizes the graph
func (m *Manager) Stats() models.GraphStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s models.GraphStats
	s.TotalIncidents = len(m.graph.Incidents)
	for _, i := range m.graph.Incidents {
		switch i.Status {
		case models.IncidentActive:
			s.ActiveIncidents++
		case models.IncidentResponding:
			s.RespondingIncidents++
		}
	}
	for _, r := range m.graph.Resources {
		switch r.Status {
		case models.ResourceAvailable:
			s.ResourcesAvailable++
		case models.ResourceDispatched, models.ResourceOnScene:
			s.ResourcesDeployed++
		}
	}
	for _, c := range m.graph.Contradictions {
		if !c.Resolved {
			s.PendingContradictions++
		}
	}
	for _, a := range m.graph.PendingActions {
		if a.Status == models.DecisionPending {
			s.PendingActions++
		}
	}
	for _, c := range m.graph.CampLocations {
		switch c.Status {
		case models.CampActive:
			s.CampsActive++
		case models.CampSuggested:
			s.CampsSuggested++
		}
	}
	return s
}

// AddIncident inserts or replaces an incident
func (m *Manager) AddIncident(incident *models.IncidentNode) *models.IncidentNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Incidents[incident.ID] = incident
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("incident_added", map[string]any{"incident_id": incident.ID, "type": incident.IncidentType})
	return incident.Clone()
}

// UpdateIncident applies scripted field updates to an incident. Updates
// arrive as free-form maps from scenario events; unknown keys are ignored.
func (m *Manager) UpdateIncident(incidentID string, updates map[string]any) (*models.IncidentNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, ok := m.graph.Incidents[incidentID]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	keys := make([]string, 0, len(updates))
	for key, value := range updates {
		keys = append(keys, key)
		switch key {
		case "status":
			incident.Status = models.IncidentStatus(asString(value))
		case "urgency":
			incident.Urgency = models.ParseUrgency(asString(value))
		case "damage_level":
			incident.DamageLevel = models.DamageLevel(asString(value))
		case "confidence":
			if f, ok := asFloat(value); ok {
				incident.Confidence = f
			}
		case "decay_rate":
			if f, ok := asFloat(value); ok {
				incident.DecayRate = f
			}
		case "incident_type":
			incident.IncidentType = asString(value)
		}
	}
	incident.UpdatedAt = time.Now().UTC()
	m.graph.LastUpdated = incident.UpdatedAt
	m.logEvent("incident_updated", map[string]any{"incident_id": incidentID, "updates": keys})
	return incident.Clone(), nil
}

// AddResource inserts or replaces a resource
func (m *Manager) AddResource(resource *models.ResourceNode) *models.ResourceNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Resources[resource.ID] = resource
	m.graph.LastUpdated = time.Now().UTC()
	return resource.Clone()
}

// UpdateResource applies scripted field updates to a resource
func (m *Manager) UpdateResource(resourceID string, updates map[string]any) (*models.ResourceNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resource, ok := m.graph.Resources[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	for key, value := range updates {
		switch key {
		case "status":
			resource.Status = models.ResourceStatus(asString(value))
		case "assigned_incident":
			resource.AssignedIncident = asString(value)
		case "eta_minutes":
			if f, ok := asFloat(value); ok {
				eta := int(f)
				resource.ETAMinutes = &eta
			}
		case "current_location":
			if loc, ok := asLocation(value); ok {
				resource.CurrentLocation = loc
			}
		case "destination":
			if loc, ok := asLocation(value); ok {
				resource.Destination = &loc
			}
		case "capacity_remaining":
			if f, ok := asFloat(value); ok {
				resource.CapacityRemaining = int(f)
			}
		}
	}
	resource.UpdatedAt = time.Now().UTC()
	m.graph.LastUpdated = resource.UpdatedAt
	return resource.Clone(), nil
}

// AddLocation inserts or replaces a location node
func (m *Manager) AddLocation(location *models.LocationNode) *models.LocationNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Locations[location.ID] = location
	m.graph.LastUpdated = time.Now().UTC()
	return location.Clone()
}

// AddEdge inserts or replaces an edge
func (m *Manager) AddEdge(edge *models.GraphEdge) *models.GraphEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Edges[edge.ID] = edge
	return edge.Clone()
}

// AddContradiction inserts a contradiction alert
func (m *Manager) AddContradiction(alert *models.ContradictionAlert) *models.ContradictionAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Contradictions[alert.ID] = alert
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("contradiction_added", map[string]any{
		"alert_id": alert.ID,
		"entity":   alert.EntityName,
		"verdict":  string(alert.Verdict),
	})
	return alert.Clone()
}

// ResolveContradiction marks an alert resolved. Resolving an alert that is
// already resolved returns it unchanged.
func (m *Manager) ResolveContradiction(alertID, resolution, resolvedBy string) (*models.ContradictionAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.graph.Contradictions[alertID]
	if !ok {
		return nil, fmt.Errorf("contradiction %s: %w", alertID, ErrNotFound)
	}
	if alert.Resolved {
		return alert.Clone(), nil
	}
	now := time.Now().UTC()
	alert.Resolved = true
	alert.Resolution = resolution
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = &now
	m.graph.LastUpdated = now
	m.logEvent("contradiction_resolved", map[string]any{
		"alert_id":    alertID,
		"resolution":  resolution,
		"resolved_by": resolvedBy,
	})
	return alert.Clone(), nil
}

// AddAction inserts an action recommendation
func (m *Manager) AddAction(action *models.ActionRecommendation) *models.ActionRecommendation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.PendingActions[action.ID] = action
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("action_recommended", map[string]any{
		"action_id":   action.ID,
		"action_type": action.ActionType,
		"resources":   action.ResourcesToAllocate,
	})
	return action.Clone()
}

// ApproveAction approves an action and dispatches its resources in one step:
// every listed resource that is still available is marked dispatched with the
// placeholder ETA, and the target incident flips to responding. A resource
// already dispatched by an earlier approval is left untouched.
func (m *Manager) ApproveAction(actionID, decidedBy string) (*models.ActionRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	action, ok := m.graph.PendingActions[actionID]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	now := time.Now().UTC()
	action.Status = models.DecisionApproved
	action.DecidedAt = &now
	action.DecidedBy = decidedBy
	m.graph.LastUpdated = now

	for _, resourceID := range action.ResourcesToAllocate {
		resource, ok := m.graph.Resources[resourceID]
		if !ok || resource.Status == models.ResourceDispatched {
			continue
		}
		eta := 8
		resource.Status = models.ResourceDispatched
		resource.AssignedIncident = action.TargetIncidentID
		resource.ETAMinutes = &eta
		resource.UpdatedAt = now
		if action.TargetLocation != nil {
			dest := *action.TargetLocation
			resource.Destination = &dest
		}
	}

	if action.TargetIncidentID != "" {
		if incident, ok := m.graph.Incidents[action.TargetIncidentID]; ok {
			incident.Status = models.IncidentResponding
			for _, resourceID := range action.ResourcesToAllocate {
				if !contains(incident.AssignedResources, resourceID) {
					incident.AssignedResources = append(incident.AssignedResources, resourceID)
				}
			}
			incident.UpdatedAt = now
		}
	}

	m.logEvent("action_approved", map[string]any{
		"action_id":  actionID,
		"decided_by": decidedBy,
		"resources":  action.ResourcesToAllocate,
	})
	return action.Clone(), nil
}

// RejectAction marks an action rejected
func (m *Manager) RejectAction(actionID, reason, decidedBy string) (*models.ActionRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	action, ok := m.graph.PendingActions[actionID]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	now := time.Now().UTC()
	action.Status = models.DecisionRejected
	action.DecidedAt = &now
	action.DecidedBy = decidedBy
	m.graph.LastUpdated = now
	m.logEvent("action_rejected", map[string]any{
		"action_id":  actionID,
		"reason":     reason,
		"decided_by": decidedBy,
	})
	return action.Clone(), nil
}

// PendingActionCount reports how many recommendations are still pending
func (m *Manager) PendingActionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.graph.PendingActions {
		if a.Status == models.DecisionPending {
			n++
		}
	}
	return n
}

// IncidentsByUrgency returns active incidents, most urgent first
func (m *Manager) IncidentsByUrgency() []*models.IncidentNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	rank := map[models.Urgency]int{
		models.UrgencyCritical: 0,
		models.UrgencyHigh:     1,
		models.UrgencyMedium:   2,
		models.UrgencyLow:      3,
	}
	var out []*models.IncidentNode
	for _, incident := range m.graph.Incidents {
		if incident.Status == models.IncidentActive {
			out = append(out, incident.Clone())
		}
	}
	sortStable(out, func(a, b *models.IncidentNode) bool {
		ra, ok := rank[a.Urgency]
		if !ok {
			ra = 4
		}
		rb, ok := rank[b.Urgency]
		if !ok {
			rb = 4
		}
		if ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return out
}

// AvailableResources returns resources with status available, optionally
// filtered by type
func (m *Manager) AvailableResources(resourceType string) []*models.ResourceNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.ResourceNode
	for _, resource := range m.graph.Resources {
		if resource.Status != models.ResourceAvailable {
			continue
		}
		if resourceType != "" && resource.ResourceType != resourceType {
			continue
		}
		out = append(out, resource.Clone())
	}
	sortStable(out, func(a, b *models.ResourceNode) bool { return a.ID < b.ID })
	return out
}

// FindRelatedIncidents returns incidents within radiusKm of the location
func (m *Manager) FindRelatedIncidents(location models.Location, radiusKm float64) []*models.IncidentNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.IncidentNode
	for _, incident := range m.graph.Incidents {
		d := Haversine(location.Lat, location.Lng, incident.Location.Lat, incident.Location.Lng)
		if d <= radiusKm {
			out = append(out, incident.Clone())
		}
	}
	sortStable(out, func(a, b *models.IncidentNode) bool { return a.ID < b.ID })
	return out
}

// DecayConfidences lowers every active incident's confidence by its decay
// rate times the elapsed minutes, floored at 0.1. Responding and resolved
// incidents are left alone.
func (m *Manager) DecayConfidences(elapsedMinutes float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, incident := range m.graph.Incidents {
		if incident.Status != models.IncidentActive {
			continue
		}
		decayed := incident.Confidence - incident.DecayRate*elapsedMinutes
		if decayed < 0.1 {
			decayed = 0.1
		}
		incident.Confidence = decayed
	}
	m.graph.LastUpdated = time.Now().UTC()
}

// AddAllocationPlan stores a bulk allocation proposal
func (m *Manager) AddAllocationPlan(plan *models.AllocationPlan) *models.AllocationPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.AllocationPlans[plan.ID] = plan
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("allocation_plan_created", map[string]any{"plan_id": plan.ID})
	return plan.Clone()
}

// AllocationPlan returns one plan by id
func (m *Manager) AllocationPlan(planID string) (*models.AllocationPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.graph.AllocationPlans[planID]
	if !ok {
		return nil, fmt.Errorf("allocation plan %s: %w", planID, ErrNotFound)
	}
	return plan.Clone(), nil
}

// UpdateAllocationPlan replaces a stored plan after external mutation
func (m *Manager) UpdateAllocationPlan(plan *models.AllocationPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.AllocationPlans[plan.ID] = plan
	m.graph.LastUpdated = time.Now().UTC()
}

// AddCamp stores a camp recommendation
func (m *Manager) AddCamp(camp *models.CampRecommendation) *models.CampRecommendation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.CampLocations[camp.ID] = camp
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("camp_added", map[string]any{"camp_id": camp.ID, "type": camp.CampType})
	return camp.Clone()
}

// ApproveCamp activates a suggested camp
func (m *Manager) ApproveCamp(campID string) (*models.CampRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	camp, ok := m.graph.CampLocations[campID]
	if !ok {
		return nil, fmt.Errorf("camp %s: %w", campID, ErrNotFound)
	}
	now := time.Now().UTC()
	camp.Status = models.CampActive
	camp.DecidedAt = &now
	m.graph.LastUpdated = now
	m.logEvent("camp_approved", map[string]any{"camp_id": campID})
	return camp.Clone(), nil
}

// RejectCamp rejects a suggested camp
func (m *Manager) RejectCamp(campID string) (*models.CampRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	camp, ok := m.graph.CampLocations[campID]
	if !ok {
		return nil, fmt.Errorf("camp %s: %w", campID, ErrNotFound)
	}
	now := time.Now().UTC()
	camp.Status = models.CampRejected
	camp.DecidedAt = &now
	m.graph.LastUpdated = now
	m.logEvent("camp_rejected", map[string]any{"camp_id": campID})
	return camp.Clone(), nil
}

// AssignResourceManual dispatches a single resource to an incident
func (m *Manager) AssignResourceManual(resourceID, incidentID string) (*models.ResourceNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resource, ok := m.graph.Resources[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	incident, ok := m.graph.Incidents[incidentID]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	now := time.Now().UTC()
	eta := 8
	dest := incident.Location
	resource.Status = models.ResourceDispatched
	resource.AssignedIncident = incidentID
	resource.Destination = &dest
	resource.ETAMinutes = &eta
	resource.UpdatedAt = now
	if !contains(incident.AssignedResources, resourceID) {
		incident.AssignedResources = append(incident.AssignedResources, resourceID)
	}
	incident.UpdatedAt = now
	m.graph.LastUpdated = now
	m.logEvent("resource_assigned", map[string]any{"resource_id": resourceID, "incident_id": incidentID})
	return resource.Clone(), nil
}

// UnassignResource returns a dispatched resource to the available pool and
// drops it from its incident's assignment list
func (m *Manager) UnassignResource(resourceID string) (*models.ResourceNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resource, ok := m.graph.Resources[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	oldIncidentID := resource.AssignedIncident
	resource.Status = models.ResourceAvailable
	resource.AssignedIncident = ""
	resource.Destination = nil
	resource.ETAMinutes = nil
	resource.UpdatedAt = time.Now().UTC()
	if oldIncidentID != "" {
		if incident, ok := m.graph.Incidents[oldIncidentID]; ok {
			incident.AssignedResources = remove(incident.AssignedResources, resourceID)
		}
	}
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("resource_unassigned", map[string]any{"resource_id": resourceID})
	return resource.Clone(), nil
}

// AddVoiceReport stores a transcribed field report
func (m *Manager) AddVoiceReport(report *models.VoiceReport) *models.VoiceReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.VoiceReports[report.ID] = report
	m.graph.LastUpdated = time.Now().UTC()
	m.logEvent("voice_report_added", map[string]any{"report_id": report.ID})
	return report.Clone()
}

// DecisionAudit bundles everything known about one decision id: the action
// or contradiction record plus every audit event that mentions the id
func (m *Manager) DecisionAudit(decisionID string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []models.AuditRecord
	for _, e := range m.audit {
		if auditMentions(e, decisionID) {
			events = append(events, e)
		}
	}
	out := map[string]any{
		"decision_id":  decisionID,
		"audit_events": events,
	}
	if action, ok := m.graph.PendingActions[decisionID]; ok {
		out["action"] = action.Clone()
	} else {
		out["action"] = nil
	}
	if alert, ok := m.graph.Contradictions[decisionID]; ok {
		out["contradiction"] = alert.Clone()
	} else {
		out["contradiction"] = nil
	}
	return out
}

// IncidentAudit returns an incident with its related actions and audit trail
func (m *Manager) IncidentAudit(incidentID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, ok := m.graph.Incidents[incidentID]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	var related []*models.ActionRecommendation
	for _, a := range m.graph.PendingActions {
		if a.TargetIncidentID == incidentID {
			related = append(related, a.Clone())
		}
	}
	var events []models.AuditRecord
	for _, e := range m.audit {
		if id, ok := e.Data["incident_id"].(string); ok && id == incidentID {
			events = append(events, e)
		}
	}
	return map[string]any{
		"incident":        incident.Clone(),
		"related_actions": related,
		"audit_events":    events,
	}, nil
}

// AuditLog returns a copy of the audit trail
func (m *Manager) AuditLog() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditRecord(nil), m.audit...)
}

func (m *Manager) logEvent(eventType string, data map[string]any) {
	m.audit = append(m.audit, models.AuditRecord{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Data:      data,
	})
}

func auditMentions(e models.AuditRecord, id string) bool {
	for _, v := range e.Data {
		if strings.Contains(fmt.Sprint(v), id) {
			return true
		}
	}
	return false
}

// sortStable keeps query results deterministic; map iteration order is not.
func sortStable[T any](list []T, less func(a, b T) bool) {
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asLocation(v any) (models.Location, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return models.Location{}, false
	}
	lat, ok1 := asFloat(m["lat"])
	lng, ok2 := asFloat(m["lng"])
	if !ok1 || !ok2 {
		return models.Location{}, false
	}
	loc := models.Location{Lat: lat, Lng: lng}
	loc.Name = asString(m["name"])
	loc.Sector = asString(m["sector"])
	loc.Address = asString(m["address"])
	return loc, true
}
