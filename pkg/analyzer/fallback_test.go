package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// failingOracle always errors, forcing the fallback path
type failingOracle struct{}

func (failingOracle) Generate(context.Context, Request) (string, error) {
	return "", errors.New("upstream unavailable")
}

// cannedOracle returns a fixed response
type cannedOracle struct {
	response string
}

func (o cannedOracle) Generate(context.Context, Request) (string, error) {
	return o.response, nil
}

func TestVisionFallbackDefaultIsSevereCollapse(t *testing.T) {
	v := NewVision(nil)
	out, err := v.Analyze(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "damage_assessment", out.OutputType)
	assert.Equal(t, "severe", out.Data["damage_level"])
	assert.Equal(t, 0.78, out.Confidence)

	casualties := out.Data["estimated_casualties"].(map[string]any)
	assert.Equal(t, float64(3), casualties["min"])
	assert.Equal(t, float64(8), casualties["max"])
	assert.Equal(t, 0.72, casualties["confidence"])
}

func TestVisionFallbackKeyedByDescription(t *testing.T) {
	v := NewVision(&failingOracle{})

	out, err := v.Analyze(context.Background(), Input{
		Metadata: map[string]any{"description": "apartment fire with smoke"},
	})
	require.NoError(t, err)
	assert.Equal(t, "moderate", out.Data["damage_level"])

	out, err = v.Analyze(context.Background(), Input{
		Metadata: map[string]any{"description": "industrial zone collapse, possible hazmat"},
	})
	require.NoError(t, err)
	assert.Equal(t, "catastrophic", out.Data["damage_level"])
}

func TestVisionOracleOutputParsed(t *testing.T) {
	v := NewVision(cannedOracle{response: "```json\n{\"damage_level\": \"minor\", \"overall_confidence\": 0.9}\n```"})
	out, err := v.Analyze(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "minor", out.Data["damage_level"])
	assert.Equal(t, 0.9, out.Confidence)
}

func TestVisionCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewVision(nil)
	_, err := v.Analyze(ctx, Input{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAudioFallbackPreservesScriptedTranscript(t *testing.T) {
	a := NewAudio(nil)
	transcript := "Mayday, bridge section down near the waterfront"

	out, err := a.Analyze(context.Background(), Input{
		Metadata: map[string]any{"transcript": transcript},
	})
	require.NoError(t, err)

	assert.Equal(t, "audio_analysis", out.OutputType)
	assert.Equal(t, transcript, out.Data["transcript"])
	assert.Contains(t, []any{"critical", "high"}, out.Data["urgency"])
}

func TestAudioFallbackDefaultIsCriticalCollapse(t *testing.T) {
	a := NewAudio(nil)
	out, err := a.Analyze(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "critical", out.Data["urgency"])
	persons := out.Data["persons_involved"].(map[string]any)
	trapped := persons["trapped"].(map[string]any)
	assert.Equal(t, float64(4), trapped["min"])
	assert.Equal(t, float64(7), trapped["max"])
}

func TestTextFallbackCredibilityFromSourceType(t *testing.T) {
	tx := NewText(nil)

	official, err := tx.Analyze(context.Background(), Input{
		Content:  "Confirmed structural collapse at 500 Market Street",
		Metadata: map[string]any{"source_type": "official_report"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.85, official.Confidence)

	social, err := tx.Analyze(context.Background(), Input{
		Content:  "OMG the bridge is GONE!!!",
		Metadata: map[string]any{"source_type": "social_media"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.40, social.Confidence)
	assert.Equal(t, "social_media", social.Data["source_type"])
}

func TestTextFallbackClaimsCarryLocationNames(t *testing.T) {
	tx := NewText(nil)
	out, err := tx.Analyze(context.Background(), Input{Content: "People say the bridge collapsed"})
	require.NoError(t, err)

	claims := out.Data["claims"].([]any)
	require.NotEmpty(t, claims)
	first := claims[0].(map[string]any)
	loc := first["location"].(map[string]any)
	assert.Equal(t, "Main Street Bridge", loc["name"])
}

func TestVerificationFallbackVerdict(t *testing.T) {
	v := NewVerification(nil)
	out, err := v.Analyze(context.Background(), VerificationInput{
		Entity:     "Main Street Bridge",
		EntityType: "infrastructure",
		Claims: []models.Claim{
			{Source: "audio_003", Claim: "collapsed", Confidence: 0.72, Timestamp: "15:01"},
			{Source: "satellite_001", Claim: "intact", Confidence: 0.89, Timestamp: "14:40"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "verification", out.OutputType)
	assert.Equal(t, "CONTRADICTION", out.Data["verdict"])
	assert.Equal(t, "high", out.Data["urgency"])
	assert.Equal(t, []string{"audio_003", "satellite_001"}, out.Sources)
}

func TestPlanningFallbackPicksAvailableAmbulances(t *testing.T) {
	p := NewPlanning(nil)
	in := PlanningInput{
		Incidents: []*models.IncidentNode{
			{ID: "inc_77", Urgency: models.UrgencyCritical, Status: models.IncidentActive,
				Location: models.Location{Sector: "4"}},
		},
		Resources: []*models.ResourceNode{
			{ID: "AMB-1", UnitID: "AMB-1", ResourceType: "ambulance", Status: models.ResourceAvailable},
			{ID: "AMB-2", UnitID: "AMB-2", ResourceType: "ambulance", Status: models.ResourceDispatched},
			{ID: "AMB-3", UnitID: "AMB-3", ResourceType: "ambulance", Status: models.ResourceAvailable},
			{ID: "ENGINE-1", UnitID: "ENGINE-1", ResourceType: "fire_truck", Status: models.ResourceAvailable},
		},
	}

	out, err := p.Analyze(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "action_plan", out.OutputType)
	rec := out.Data["recommendation"].(map[string]any)
	assert.Equal(t, []any{"AMB-1", "AMB-3"}, rec["resources"])
	target := rec["target"].(map[string]any)
	assert.Equal(t, "inc_77", target["incident_id"])
	assert.Equal(t, "sector_4", target["sector"])
}

func TestAllocationFallbackShape(t *testing.T) {
	a := NewAllocation(nil)
	out, err := a.Analyze(context.Background(), AllocationInput{
		Resources: []*models.ResourceNode{
			{ID: "AMB-5", UnitID: "AMB-5", ResourceType: "ambulance", Status: models.ResourceAvailable},
		},
		Incidents: []*models.IncidentNode{{ID: "inc_9"}},
	})
	require.NoError(t, err)

	assignments := out.Data["resource_assignments"].([]any)
	require.Len(t, assignments, 1)
	first := assignments[0].(map[string]any)
	assert.Equal(t, "AMB-5", first["resource_id"])
	assert.Equal(t, "inc_9", first["target_incident_id"])

	camps := out.Data["camp_recommendations"].([]any)
	assert.Len(t, camps, 2)
}

func TestTemporalFallback(t *testing.T) {
	tp := NewTemporal(nil)
	out, err := tp.Analyze(context.Background(), TemporalInput{Entity: "fire_sector_3"})
	require.NoError(t, err)

	assert.Equal(t, "temporal_projection", out.OutputType)
	assert.Equal(t, "fire_sector_3", out.Data["entity"])
	assert.Equal(t, 0.62, out.Confidence)
}
