package models

// Deep-copy helpers. Snapshot reads hold the graph lock only long enough to
// clone, so every nested slice, map, and pointer must be copied here.

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the incident
func (n *IncidentNode) Clone() *IncidentNode {
	if n == nil {
		return nil
	}
	out := *n
	out.TrappedMin = cloneIntPtr(n.TrappedMin)
	out.TrappedMax = cloneIntPtr(n.TrappedMax)
	out.InjuredMin = cloneIntPtr(n.InjuredMin)
	out.InjuredMax = cloneIntPtr(n.InjuredMax)
	out.Sources = append([]SourceReference(nil), n.Sources...)
	out.Contradictions = append([]string(nil), n.Contradictions...)
	out.AssignedResources = append([]string(nil), n.AssignedResources...)
	return &out
}

// Clone returns a deep copy of the resource
func (n *ResourceNode) Clone() *ResourceNode {
	if n == nil {
		return nil
	}
	out := *n
	if n.Destination != nil {
		dest := *n.Destination
		out.Destination = &dest
	}
	out.ETAMinutes = cloneIntPtr(n.ETAMinutes)
	return &out
}

// Clone returns a deep copy of the location node
func (n *LocationNode) Clone() *LocationNode {
	if n == nil {
		return nil
	}
	out := *n
	out.CapacityTotal = cloneIntPtr(n.CapacityTotal)
	out.CapacityUsed = cloneIntPtr(n.CapacityUsed)
	out.Sources = append([]SourceReference(nil), n.Sources...)
	return &out
}

// Clone returns a deep copy of the edge
func (e *GraphEdge) Clone() *GraphEdge {
	if e == nil {
		return nil
	}
	out := *e
	out.Metadata = cloneAnyMap(e.Metadata)
	return &out
}

// Clone returns a deep copy of the alert
func (a *ContradictionAlert) Clone() *ContradictionAlert {
	if a == nil {
		return nil
	}
	out := *a
	out.Claims = append([]Claim(nil), a.Claims...)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

// Clone returns a deep copy of the recommendation
func (a *ActionRecommendation) Clone() *ActionRecommendation {
	if a == nil {
		return nil
	}
	out := *a
	if a.TargetLocation != nil {
		loc := *a.TargetLocation
		out.TargetLocation = &loc
	}
	out.ResourcesToAllocate = append([]string(nil), a.ResourcesToAllocate...)
	out.SupportingFactors = append([]string(nil), a.SupportingFactors...)
	out.UncertaintyFactors = append([]string(nil), a.UncertaintyFactors...)
	if a.Tradeoffs != nil {
		out.Tradeoffs = make([]map[string]any, len(a.Tradeoffs))
		for i, t := range a.Tradeoffs {
			out.Tradeoffs[i] = cloneAnyMap(t)
		}
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

// Clone returns a deep copy of the assignment
func (r *ResourceAssignment) Clone() *ResourceAssignment {
	if r == nil {
		return nil
	}
	out := *r
	out.EstimatedETAMinutes = cloneIntPtr(r.EstimatedETAMinutes)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

// Clone returns a deep copy of the camp recommendation
func (c *CampRecommendation) Clone() *CampRecommendation {
	if c == nil {
		return nil
	}
	out := *c
	out.Factors = cloneAnyMap(c.Factors)
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

// Clone returns a deep copy of the plan
func (p *AllocationPlan) Clone() *AllocationPlan {
	if p == nil {
		return nil
	}
	out := *p
	if p.ResourceAssignments != nil {
		out.ResourceAssignments = make([]ResourceAssignment, len(p.ResourceAssignments))
		for i := range p.ResourceAssignments {
			out.ResourceAssignments[i] = *p.ResourceAssignments[i].Clone()
		}
	}
	if p.CampRecommendations != nil {
		out.CampRecommendations = make([]CampRecommendation, len(p.CampRecommendations))
		for i := range p.CampRecommendations {
			out.CampRecommendations[i] = *p.CampRecommendations[i].Clone()
		}
	}
	out.KeyAssumptions = append([]string(nil), p.KeyAssumptions...)
	return &out
}

// Clone returns a deep copy of the voice report
func (v *VoiceReport) Clone() *VoiceReport {
	if v == nil {
		return nil
	}
	out := *v
	out.PopulationCount = cloneIntPtr(v.PopulationCount)
	if v.MedicalEmergencies != nil {
		out.MedicalEmergencies = make([]map[string]any, len(v.MedicalEmergencies))
		for i, m := range v.MedicalEmergencies {
			out.MedicalEmergencies[i] = cloneAnyMap(m)
		}
	}
	out.SuppliesNeeded = append([]string(nil), v.SuppliesNeeded...)
	out.SignalsCreated = append([]string(nil), v.SignalsCreated...)
	return &out
}

// Clone returns a deep copy of the entire graph
func (g *SituationGraph) Clone() *SituationGraph {
	if g == nil {
		return nil
	}
	out := &SituationGraph{
		Incidents:         make(map[string]*IncidentNode, len(g.Incidents)),
		Resources:         make(map[string]*ResourceNode, len(g.Resources)),
		Locations:         make(map[string]*LocationNode, len(g.Locations)),
		Edges:             make(map[string]*GraphEdge, len(g.Edges)),
		Contradictions:    make(map[string]*ContradictionAlert, len(g.Contradictions)),
		PendingActions:    make(map[string]*ActionRecommendation, len(g.PendingActions)),
		AllocationPlans:   make(map[string]*AllocationPlan, len(g.AllocationPlans)),
		CampLocations:     make(map[string]*CampRecommendation, len(g.CampLocations)),
		VoiceReports:      make(map[string]*VoiceReport, len(g.VoiceReports)),
		ScenarioID:        g.ScenarioID,
		ScenarioName:      g.ScenarioName,
		ScenarioStartTime: g.ScenarioStartTime,
		CurrentSimTime:    g.CurrentSimTime,
		LastUpdated:       g.LastUpdated,
	}
	for id, n := range g.Incidents {
		out.Incidents[id] = n.Clone()
	}
	for id, n := range g.Resources {
		out.Resources[id] = n.Clone()
	}
	for id, n := range g.Locations {
		out.Locations[id] = n.Clone()
	}
	for id, e := range g.Edges {
		out.Edges[id] = e.Clone()
	}
	for id, a := range g.Contradictions {
		out.Contradictions[id] = a.Clone()
	}
	for id, a := range g.PendingActions {
		out.PendingActions[id] = a.Clone()
	}
	for id, p := range g.AllocationPlans {
		out.AllocationPlans[id] = p.Clone()
	}
	for id, c := range g.CampLocations {
		out.CampLocations[id] = c.Clone()
	}
	for id, v := range g.VoiceReports {
		out.VoiceReports[id] = v.Clone()
	}
	return out
}
