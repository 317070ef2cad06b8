package coordinator

import (
	"context"
	"fmt"

	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// ResolveContradiction records an operator verdict on a contradiction alert.
// Resolving an already-resolved alert is a no-op returning the record as-is.
func (c *Coordinator) ResolveContradiction(alertID, resolution, resolvedBy string) (*models.ContradictionAlert, error) {
	alert, err := c.graph.ResolveContradiction(alertID, resolution, resolvedBy)
	if err != nil {
		return nil, err
	}

	c.hub.Broadcast("decision_made", models.HumanDecision{
		ItemType:  "contradiction",
		ItemID:    alertID,
		Decision:  resolution,
		DecidedBy: resolvedBy,
	})
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.addEvent("contradiction_resolved", map[string]any{
		"alert_id":    alertID,
		"resolution":  resolution,
		"resolved_by": resolvedBy,
	})
	c.broadcastTimeline()
	return alert, nil
}

// ApproveAction approves a pending recommendation and dispatches its
// resources in the same graph transaction
func (c *Coordinator) ApproveAction(actionID, decidedBy string) (*models.ActionRecommendation, error) {
	action, err := c.graph.ApproveAction(actionID, decidedBy)
	if err != nil {
		return nil, err
	}

	c.hub.Broadcast("decision_made", models.HumanDecision{
		ItemType:  "action",
		ItemID:    actionID,
		Decision:  "approved",
		DecidedBy: decidedBy,
	})
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.addEvent("action_approved", map[string]any{
		"action_id":  actionID,
		"resources":  action.ResourcesToAllocate,
		"decided_by": decidedBy,
	})
	c.broadcastTimeline()
	return action, nil
}

// RejectAction rejects a pending recommendation, leaving its resources
// untouched
func (c *Coordinator) RejectAction(actionID, reason, decidedBy string) (*models.ActionRecommendation, error) {
	action, err := c.graph.RejectAction(actionID, reason, decidedBy)
	if err != nil {
		return nil, err
	}

	c.hub.Broadcast("decision_made", models.HumanDecision{
		ItemType:  "action",
		ItemID:    actionID,
		Decision:  "rejected",
		Notes:     reason,
		DecidedBy: decidedBy,
	})
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.addEvent("action_rejected", map[string]any{
		"action_id":  actionID,
		"reason":     reason,
		"decided_by": decidedBy,
	})
	c.broadcastTimeline()
	return action, nil
}

// StartDebate runs the four-turn contradiction debate, broadcasting each turn
// as it completes so dashboards render the exchange live
func (c *Coordinator) StartDebate(ctx context.Context, alertID string) ([]models.DebateTurn, error) {
	alert := c.graph.Snapshot().Contradictions[alertID]
	if alert == nil {
		return nil, fmt.Errorf("contradiction %s: %w", alertID, graph.ErrNotFound)
	}

	c.addEvent("debate_started", map[string]any{"alert_id": alertID})
	turns, err := c.debate.Run(ctx, alert, func(turn models.DebateTurn) {
		c.hub.Broadcast("debate_turn", turn)
	})
	if err != nil {
		return turns, err
	}

	c.addEvent("debate_completed", map[string]any{
		"alert_id": alertID,
		"turns":    len(turns),
	})
	c.broadcastTimeline()
	return turns, nil
}

// DecisionAudit returns the audit trail for one decision id
func (c *Coordinator) DecisionAudit(decisionID string) map[string]any {
	return c.graph.DecisionAudit(decisionID)
}

// IncidentAudit returns the full history of one incident
func (c *Coordinator) IncidentAudit(incidentID string) (map[string]any, error) {
	return c.graph.IncidentAudit(incidentID)
}
