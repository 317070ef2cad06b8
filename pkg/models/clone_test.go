package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentCloneIsIsolated(t *testing.T) {
	three := 3
	eight := 8
	orig := &IncidentNode{
		ID:                "inc_1",
		IncidentType:      "structural_collapse",
		DamageLevel:       DamageSevere,
		Urgency:           UrgencyCritical,
		TrappedMin:        &three,
		TrappedMax:        &eight,
		Confidence:        0.72,
		Status:            IncidentActive,
		AssignedResources: []string{"AMB-1"},
		Contradictions:    []string{"alert_1"},
	}

	clone := orig.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, orig, clone)

	clone.AssignedResources = append(clone.AssignedResources, "AMB-2")
	*clone.TrappedMin = 5
	clone.Status = IncidentResponding

	assert.Equal(t, []string{"AMB-1"}, orig.AssignedResources)
	assert.Equal(t, 3, *orig.TrappedMin)
	assert.Equal(t, IncidentActive, orig.Status)
}

func TestResourceCloneCopiesDestination(t *testing.T) {
	eta := 8
	orig := &ResourceNode{
		ID:          "AMB-1",
		Status:      ResourceDispatched,
		Destination: &Location{Lat: 37.78, Lng: -122.41},
		ETAMinutes:  &eta,
	}

	clone := orig.Clone()
	clone.Destination.Lat = 0
	*clone.ETAMinutes = 99

	assert.Equal(t, 37.78, orig.Destination.Lat)
	assert.Equal(t, 8, *orig.ETAMinutes)
}

func TestGraphCloneIsDeep(t *testing.T) {
	g := NewSituationGraph()
	g.Incidents["inc_1"] = &IncidentNode{ID: "inc_1", Status: IncidentActive}
	g.Resources["AMB-1"] = &ResourceNode{ID: "AMB-1", Status: ResourceAvailable}
	g.Contradictions["alert_1"] = &ContradictionAlert{
		ID:     "alert_1",
		Claims: []Claim{{Source: "citizen", Claim: "bridge collapsed"}},
	}

	clone := g.Clone()
	require.NotNil(t, clone)

	clone.Incidents["inc_1"].Status = IncidentResolved
	clone.Resources["AMB-1"].Status = ResourceOffline
	clone.Contradictions["alert_1"].Claims[0].Claim = "changed"
	clone.Incidents["inc_2"] = &IncidentNode{ID: "inc_2"}

	assert.Equal(t, IncidentActive, g.Incidents["inc_1"].Status)
	assert.Equal(t, ResourceAvailable, g.Resources["AMB-1"].Status)
	assert.Equal(t, "bridge collapsed", g.Contradictions["alert_1"].Claims[0].Claim)
	assert.Len(t, g.Incidents, 1)
}

func TestActionIsExpired(t *testing.T) {
	now := time.Now().UTC()
	a := &ActionRecommendation{Status: DecisionPending, DecisionDeadline: now.Add(5 * time.Minute)}

	assert.False(t, a.IsExpired(now))
	assert.True(t, a.IsExpired(now.Add(6*time.Minute)))

	a.Status = DecisionApproved
	assert.False(t, a.IsExpired(now.Add(6*time.Minute)))
}
