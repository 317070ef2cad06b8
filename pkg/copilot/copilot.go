// Package copilot is the conversational interface to the situation graph.
// Operators ask natural language questions; answers cite incident ids,
// sectors and confidence levels from the live graph. Without an oracle the
// copilot answers from deterministic keyword heuristics.
package copilot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

const system = `You are an AI co-pilot for a disaster response coordination center. You have access to the current operational situation and answer operator questions in plain, direct English.

Rules:
- Be specific: cite incident IDs, sector numbers, confidence percentages
- Be brief: 2-4 sentences unless the question requires more detail
- Be honest about uncertainty: if you don't know, say so
- Use the situation data provided — don't make up information not in the context
- When asked about tradeoffs or "what if", reason through it explicitly
- You are advising a human who will make the final decision — give them information, not just validation`

// maxHistoryTurns bounds how much prior conversation is replayed to the
// oracle
const maxHistoryTurns = 8

// Turn is one prior exchange in the copilot conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Copilot answers operator questions about the current situation
type Copilot struct {
	oracle analyzer.Oracle
	graph  *graph.Manager
}

// New creates a copilot over the given graph. A nil oracle means every
// question gets a heuristic answer.
func New(oracle analyzer.Oracle, g *graph.Manager) *Copilot {
	return &Copilot{oracle: oracle, graph: g}
}

// Ask answers one question, threading up to the last eight history turns.
// Oracle failures degrade to the heuristic answer; the only error is a
// cancelled context.
func (c *Copilot) Ask(ctx context.Context, question string, history []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snap := c.graph.Snapshot()
	if c.oracle == nil {
		return fallbackAnswer(question, snap), nil
	}

	messages := []analyzer.Message{
		{Role: "user", Text: "Current operational situation:\n\n" + SituationSummary(snap) + "\n\nPlease keep this context in mind for all my questions."},
		{Role: "model", Text: "Understood. I have the current situation loaded. What do you need to know?"},
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		role := "user"
		if turn.Role != "user" {
			role = "model"
		}
		messages = append(messages, analyzer.Message{Role: role, Text: turn.Content})
	}
	messages = append(messages, analyzer.Message{Role: "user", Text: question})

	answer, err := c.oracle.Generate(ctx, analyzer.Request{
		System:      system,
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fallbackAnswer(question, snap), nil
	}
	return answer, nil
}

// SituationSummary serializes the graph into the readable block handed to
// the oracle as conversation context
func SituationSummary(snap *models.SituationGraph) string {
	var lines []string

	name := snap.ScenarioName
	if name == "" {
		name = "Unknown scenario"
	}
	lines = append(lines,
		"SCENARIO: "+name,
		"SIM TIME: "+snap.CurrentSimTime.Format("15:04:05"),
		"")

	if len(snap.Incidents) > 0 {
		lines = append(lines, fmt.Sprintf("ACTIVE INCIDENTS (%d):", len(snap.Incidents)))
		for _, inc := range incidentsByUrgency(snap) {
			sector := inc.Location.Sector
			if sector == "" {
				sector = "?"
			}
			trapped := ""
			if inc.TrappedMin != nil {
				trappedMax := "?"
				if inc.TrappedMax != nil {
					trappedMax = fmt.Sprintf("%d", *inc.TrappedMax)
				}
				trapped = fmt.Sprintf(", %d–%s trapped", *inc.TrappedMin, trappedMax)
			}
			lines = append(lines, fmt.Sprintf("  [%s] %s | %s | Sector %s | confidence %.0f%%%s | status: %s",
				inc.ID, inc.IncidentType, strings.ToUpper(string(inc.Urgency)), sector, inc.Confidence*100, trapped, inc.Status))
		}
	} else {
		lines = append(lines, "ACTIVE INCIDENTS: none")
	}
	lines = append(lines, "")

	available, dispatched := splitResources(snap)
	lines = append(lines, fmt.Sprintf("RESOURCES: %d available, %d dispatched", len(available), len(dispatched)))
	for _, r := range dispatched {
		sector := r.CurrentLocation.Sector
		if sector == "" {
			sector = "?"
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s — dispatched, Sector %s", r.UnitID, r.ResourceType, sector))
	}
	lines = append(lines, "")

	unresolved := unresolvedContradictions(snap)
	if len(unresolved) > 0 {
		lines = append(lines, fmt.Sprintf("UNRESOLVED CONTRADICTIONS (%d):", len(unresolved)))
		for _, alert := range unresolved {
			lines = append(lines, fmt.Sprintf("  [%s] %s | %s | urgency: %s", alert.ID, alert.EntityName, alert.Verdict, alert.Urgency))
		}
	} else {
		lines = append(lines, "UNRESOLVED CONTRADICTIONS: none")
	}
	lines = append(lines, "")

	pending := pendingActions(snap)
	if len(pending) > 0 {
		lines = append(lines, fmt.Sprintf("PENDING DECISIONS (%d):", len(pending)))
		for _, action := range pending {
			rationale := action.Rationale
			if len(rationale) > 80 {
				rationale = rationale[:80]
			}
			lines = append(lines, fmt.Sprintf("  [%s] %s — %s...", action.ID, action.ActionType, rationale))
		}
	} else {
		lines = append(lines, "PENDING DECISIONS: none")
	}

	if hospitals := hospitalLocations(snap); len(hospitals) > 0 {
		lines = append(lines, "", "HOSPITAL CAPACITY:")
		for _, h := range hospitals {
			used, total := 0, 0
			if h.CapacityUsed != nil {
				used = *h.CapacityUsed
			}
			if h.CapacityTotal != nil {
				total = *h.CapacityTotal
			}
			pct := 0
			if total > 0 {
				pct = used * 100 / total
			}
			name := h.Location.Name
			if name == "" {
				name = h.ID
			}
			lines = append(lines, fmt.Sprintf("  %s: %d/%d (%d%% full) — %s", name, used, total, pct, h.Status))
		}
	}

	return strings.Join(lines, "\n")
}

// fallbackAnswer routes the question through keyword heuristics over the
// graph so the copilot stays useful without credentials
func fallbackAnswer(question string, snap *models.SituationGraph) string {
	q := strings.ToLower(question)

	critical := criticalIncidents(snap)
	unresolved := unresolvedContradictions(snap)
	available, _ := splitResources(snap)

	switch {
	case strings.Contains(q, "risk") || strings.Contains(q, "biggest") || strings.Contains(q, "priority"):
		if len(critical) == 0 {
			return "No critical incidents active. Monitor the unresolved contradictions for emerging risks."
		}
		inc := critical[0]
		sector := inc.Location.Sector
		if sector == "" {
			sector = "?"
		}
		trapped := ""
		if inc.TrappedMin != nil && inc.TrappedMax != nil {
			trapped = fmt.Sprintf("with %d–%d possibly trapped ", *inc.TrappedMin, *inc.TrappedMax)
		}
		bridgeNote := ""
		if len(unresolved) > 0 {
			bridgeNote = "The unresolved bridge contradiction also creates routing risk."
		}
		return fmt.Sprintf("Your highest risk is incident %s — a %s in Sector %s %sat %.0f%% confidence. %s",
			inc.ID, inc.IncidentType, sector, trapped, inc.Confidence*100, bridgeNote)

	case strings.Contains(q, "bridge") || strings.Contains(q, "contradict"):
		if len(unresolved) == 0 {
			return "No active contradictions. The bridge status was resolved."
		}
		return fmt.Sprintf("The %s contradiction remains unresolved. Two sources conflict: "+
			"a satellite image (14:40) shows it intact, but a first-responder radio call (15:01) reports collapse. "+
			"The 21-minute gap is the key uncertainty. Recommend dispatching HELI-1 for aerial confirmation before routing resources through that sector.",
			unresolved[0].EntityName)

	case strings.Contains(q, "ambulan") || strings.Contains(q, "resource") || strings.Contains(q, "send") || strings.Contains(q, "dispatch"):
		if len(available) == 0 {
			return "All resources are currently dispatched. No units available for new assignments without reallocation."
		}
		ambulances := 0
		for _, r := range available {
			if strings.Contains(r.ResourceType, "ambulance") {
				ambulances++
			}
		}
		target := "none currently critical"
		if len(critical) > 0 {
			target = critical[0].ID
		}
		return fmt.Sprintf("You have %d resources available including %d ambulances. "+
			"Highest-priority unassigned incident is %s. "+
			"Awaiting your approval on the pending deployment recommendation.",
			len(available), ambulances, target)

	case strings.Contains(q, "hospital"):
		hospitals := hospitalLocations(snap)
		if len(hospitals) == 0 {
			return "No hospital capacity data loaded yet."
		}
		best := hospitals[0]
		for _, h := range hospitals[1:] {
			if utilization(h) < utilization(best) {
				best = h
			}
		}
		name := best.Location.Name
		if name == "" {
			name = best.ID
		}
		used, total := 0, 0
		if best.CapacityUsed != nil {
			used = *best.CapacityUsed
		}
		if best.CapacityTotal != nil {
			total = *best.CapacityTotal
		}
		return fmt.Sprintf("%s has the most capacity — %d/%d beds used. Route non-critical cases there to preserve Metro General for trauma.",
			name, used, total)

	case strings.Contains(q, "wait"):
		return "Waiting increases risk in two ways: the golden-hour window for trapped persons is closing, and the " +
			"aftershock probability remains elevated for the next 2 hours. If you're waiting for aerial verification, " +
			"that's justified — but delay in dispatching to confirmed incidents is not recommended."

	default:
		return fmt.Sprintf("Current status: %d incidents tracked, %d critical, %d unresolved contradictions, "+
			"%d resources available. Ask me about specific incidents, resources, or decisions.",
			len(snap.Incidents), len(critical), len(unresolved), len(available))
	}
}

// Snapshot views, ordered deterministically

func incidentsByUrgency(snap *models.SituationGraph) []*models.IncidentNode {
	rank := map[models.Urgency]int{
		models.UrgencyCritical: 0,
		models.UrgencyHigh:     1,
		models.UrgencyMedium:   2,
		models.UrgencyLow:      3,
	}
	incidents := make([]*models.IncidentNode, 0, len(snap.Incidents))
	for _, inc := range snap.Incidents {
		incidents = append(incidents, inc)
	}
	sort.SliceStable(incidents, func(i, j int) bool {
		ri, rj := rank[incidents[i].Urgency], rank[incidents[j].Urgency]
		if ri != rj {
			return ri < rj
		}
		return incidents[i].ID < incidents[j].ID
	})
	return incidents
}

func criticalIncidents(snap *models.SituationGraph) []*models.IncidentNode {
	var out []*models.IncidentNode
	for _, inc := range incidentsByUrgency(snap) {
		if inc.Urgency == models.UrgencyCritical && inc.Status == models.IncidentActive {
			out = append(out, inc)
		}
	}
	return out
}

func splitResources(snap *models.SituationGraph) (available, dispatched []*models.ResourceNode) {
	ids := make([]string, 0, len(snap.Resources))
	for id := range snap.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		switch r := snap.Resources[id]; r.Status {
		case models.ResourceAvailable:
			available = append(available, r)
		case models.ResourceDispatched:
			dispatched = append(dispatched, r)
		}
	}
	return available, dispatched
}

func unresolvedContradictions(snap *models.SituationGraph) []*models.ContradictionAlert {
	ids := make([]string, 0, len(snap.Contradictions))
	for id, alert := range snap.Contradictions {
		if !alert.Resolved {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*models.ContradictionAlert, 0, len(ids))
	for _, id := range ids {
		out = append(out, snap.Contradictions[id])
	}
	return out
}

func pendingActions(snap *models.SituationGraph) []*models.ActionRecommendation {
	ids := make([]string, 0, len(snap.PendingActions))
	for id, action := range snap.PendingActions {
		if action.Status == models.DecisionPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*models.ActionRecommendation, 0, len(ids))
	for _, id := range ids {
		out = append(out, snap.PendingActions[id])
	}
	return out
}

func hospitalLocations(snap *models.SituationGraph) []*models.LocationNode {
	ids := make([]string, 0, len(snap.Locations))
	for id, loc := range snap.Locations {
		if loc.LocationType == "hospital" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*models.LocationNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, snap.Locations[id])
	}
	return out
}

func utilization(h *models.LocationNode) float64 {
	used := 0.0
	if h.CapacityUsed != nil {
		used = float64(*h.CapacityUsed)
	}
	total := 1.0
	if h.CapacityTotal != nil && *h.CapacityTotal > 0 {
		total = float64(*h.CapacityTotal)
	}
	return used / total
}
