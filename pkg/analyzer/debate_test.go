package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

func bridgeAlert() *models.ContradictionAlert {
	return &models.ContradictionAlert{
		ID:         "alert_1",
		EntityID:   "main_street_bridge",
		EntityName: "Main Street Bridge",
		Claims: []models.Claim{
			{Source: "audio_003", Claim: "collapsed", Confidence: 0.72, Timestamp: "15:01"},
			{Source: "satellite_001", Claim: "intact", Confidence: 0.89, Timestamp: "14:40"},
		},
	}
}

func TestDebateRunsFourTurnsInOrder(t *testing.T) {
	d := NewDebate(nil)
	d.pacing = 0

	var emitted []models.DebateTurn
	turns, err := d.Run(context.Background(), bridgeAlert(), func(turn models.DebateTurn) {
		emitted = append(emitted, turn)
	})
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, turns, emitted)

	roles := []string{"defender", "challenger", "rebuttal", "synthesis"}
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.TurnNumber)
		assert.Equal(t, roles[i], turn.Role)
		assert.Equal(t, "alert_1", turn.AlertID)
		assert.GreaterOrEqual(t, turn.Confidence, 0.0)
		assert.LessOrEqual(t, turn.Confidence, 1.0)
		assert.Equal(t, i == 3, turn.Done)
	}

	// Defender and rebuttal come from the vision side, the others from
	// verification.
	assert.Equal(t, visionName, turns[0].AgentName)
	assert.Equal(t, verificationName, turns[1].AgentName)
	assert.Equal(t, visionName, turns[2].AgentName)
	assert.Equal(t, verificationName, turns[3].AgentName)
}

func TestDebateCancelledMidway(t *testing.T) {
	d := NewDebate(nil)
	d.pacing = 0

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	_, err := d.Run(ctx, bridgeAlert(), func(models.DebateTurn) {
		count++
		if count == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, count)
}

func TestParseConfidenceLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "trailing line", input: "VERDICT: Accept B.\nCONFIDENCE: 0.74", expected: 0.74},
		{name: "last occurrence wins", input: "CONFIDENCE: 0.10\nmore text\nCONFIDENCE: 0.91", expected: 0.91},
		{name: "absent defaults", input: "VERDICT: unclear", expected: 0.72},
		{name: "unparseable defaults", input: "CONFIDENCE: very high", expected: 0.72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseConfidenceLine(tt.input))
		})
	}
}

func TestStripTurnMarkers(t *testing.T) {
	in := "VERDICT: The ground report wins.\nCONFIDENCE: 0.74"
	assert.Equal(t, "The ground report wins.", stripTurnMarkers(in))

	assert.Equal(t, "Satellite shows intact spans.", stripTurnMarkers("ANALYSIS: Satellite shows intact spans."))
	assert.Equal(t, "No prefix here.", stripTurnMarkers("No prefix here."))
}

func TestDebateOracleConfidenceParsed(t *testing.T) {
	d := NewDebate(cannedOracle{response: "VERDICT: Trust the ground unit.\nCONFIDENCE: 0.66"})
	d.pacing = 0

	turns, err := d.Run(context.Background(), bridgeAlert(), nil)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, 0.66, turns[3].Confidence)
	assert.Equal(t, "Trust the ground unit.", turns[3].Argument)
}

func TestDeliberate(t *testing.T) {
	a := &Output{AnalyzerName: "vision", Confidence: 0.8,
		Data: map[string]any{"damage_level": "severe", "urgency": "critical"}}
	b := &Output{AnalyzerName: "audio", Confidence: 0.6,
		Data: map[string]any{"damage_level": "severe", "urgency": "high"}}

	result := Deliberate([]*Output{a, b})

	assert.Equal(t, map[string]any{"damage_level": "severe"}, result.Consensus)
	require.Len(t, result.Disagreements, 1)
	assert.Equal(t, "urgency", result.Disagreements[0].Field)
	assert.Len(t, result.Disagreements[0].Values, 2)
	assert.InDelta(t, 0.7, result.FinalConfidence, 1e-9)
}

func TestDeliberateEdgeCases(t *testing.T) {
	empty := Deliberate(nil)
	assert.Empty(t, empty.Consensus)
	assert.Zero(t, empty.FinalConfidence)

	single := Deliberate([]*Output{{AnalyzerName: "vision", Confidence: 0.9,
		Data: map[string]any{"damage_level": "minor"}}})
	assert.Equal(t, "minor", single.Consensus["damage_level"])
	assert.Equal(t, 0.9, single.FinalConfidence)
}
