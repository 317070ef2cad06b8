package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// failingVerifier always errors
type failingVerifier struct{}

func (failingVerifier) Analyze(context.Context, analyzer.VerificationInput) (*analyzer.Output, error) {
	return nil, errors.New("verifier down")
}

// consistentVerifier returns a CONSISTENT verdict
type consistentVerifier struct{}

func (consistentVerifier) Analyze(_ context.Context, in analyzer.VerificationInput) (*analyzer.Output, error) {
	return &analyzer.Output{Data: map[string]any{"verdict": "CONSISTENT"}}, nil
}

// scriptedVerifier returns a fixed data payload
type scriptedVerifier struct {
	data map[string]any
}

func (s scriptedVerifier) Analyze(context.Context, analyzer.VerificationInput) (*analyzer.Output, error) {
	return &analyzer.Output{Data: s.data}, nil
}

func bridgeClaims() []models.Claim {
	return []models.Claim{
		{Source: "audio_report", SourceType: "first_responder", Claim: "Bridge collapsed, completely impassable", Confidence: 0.72},
		{Source: "satellite_img_14:40", SourceType: "satellite", Claim: "Bridge appears structurally intact", Confidence: 0.89},
	}
}

func TestCheckRaisesOneAlertAndClearsClaims(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, "main_street_bridge", alert.EntityID)
	assert.Equal(t, "Main Street Bridge", alert.EntityName)
	assert.Equal(t, models.VerdictContradiction, alert.Verdict)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Len(t, alert.Claims, 2)
	assert.True(t, d.Handled("Main Street Bridge"))
	assert.Zero(t, d.ClaimCount("Main Street Bridge"))

	// Second check finds nothing: entity is handled and claims are gone
	again, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestCheckNeedsTwoClaims(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	d.AddClaim("Main Street Bridge", bridgeClaims()[0])

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 1, d.ClaimCount("Main Street Bridge"))
}

func TestCheckConsistentVerdictKeepsClaims(t *testing.T) {
	d := New(consistentVerifier{})
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 2, d.ClaimCount("Main Street Bridge"))
	assert.False(t, d.Handled("Main Street Bridge"))
}

func TestCheckVerifierErrorClearsClaims(t *testing.T) {
	d := New(failingVerifier{})
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Zero(t, d.ClaimCount("Main Street Bridge"))
	assert.False(t, d.Handled("Main Street Bridge"))
}

func TestClaimsForHandledEntityDropped(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}
	_, err := d.Check(context.Background())
	require.NoError(t, err)

	d.AddClaim("Main Street Bridge", bridgeClaims()[0])
	assert.Zero(t, d.ClaimCount("Main Street Bridge"))
}

func TestInjectForcesVerdictAndSeverity(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	simTime := time.Date(2026, 3, 14, 15, 1, 0, 0, time.UTC)

	alert, err := d.Inject(context.Background(), InjectInput{
		Entity:       "Main Street Bridge",
		EntityType:   "infrastructure",
		Claims:       bridgeClaims(),
		ForceVerdict: "CONTRADICTION",
	}, simTime)
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, "main_street_bridge", alert.EntityID)
	assert.Equal(t, models.VerdictContradiction, alert.Verdict)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, models.UrgencyHigh, alert.Urgency)
	assert.Equal(t, simTime, alert.CreatedAt)
	assert.Len(t, alert.Claims, 2)
	assert.True(t, d.Handled("Main Street Bridge"))
	assert.Zero(t, d.ClaimCount("Main Street Bridge"))
}

func TestInjectUnknownVerdictBecomesContradiction(t *testing.T) {
	d := New(scriptedVerifier{data: map[string]any{"verdict": "MAYBE_LATER"}})

	alert, err := d.Inject(context.Background(), InjectInput{
		Entity: "Main Street Bridge", Claims: bridgeClaims(),
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, models.VerdictContradiction, alert.Verdict)
	assert.Equal(t, models.RecommendRequestVerify, alert.RecommendedAction)
	assert.Equal(t, "Deploy aerial verification", alert.RecommendedActionDetails)
}

func TestInjectKeepsUncertainVerdict(t *testing.T) {
	d := New(scriptedVerifier{data: map[string]any{"verdict": "UNCERTAIN"}})

	alert, err := d.Inject(context.Background(), InjectInput{
		Entity: "Main Street Bridge", Claims: bridgeClaims(),
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, models.VerdictUncertain, alert.Verdict)
}

func TestCheckUsesVerifierClaimView(t *testing.T) {
	d := New(scriptedVerifier{data: map[string]any{
		"verdict": "CONTRADICTION",
		"claims_analyzed": []any{
			map[string]any{"source": "satellite_img_14:40", "source_type": "satellite",
				"claim": "Bridge appears structurally intact", "confidence": 0.89, "timestamp": "14:40"},
		},
	}})
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}
	d.AddClaim("Main Street Bridge", models.Claim{Source: "drone", Claim: "Deck partially visible", Confidence: 0.5})

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, alert)

	require.Len(t, alert.Claims, 1)
	assert.Equal(t, "satellite_img_14:40", alert.Claims[0].Source)
	assert.InDelta(t, 0.89, alert.Claims[0].Confidence, 1e-9)

	// Without an explicit recommendation the live path flags for a human
	assert.Equal(t, models.RecommendFlagForHuman, alert.RecommendedAction)
}

func TestCheckTruncatesClaimsWithoutVerifierView(t *testing.T) {
	d := New(scriptedVerifier{data: map[string]any{"verdict": "CONTRADICTION"}})
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}
	d.AddClaim("Main Street Bridge", models.Claim{Source: "drone", Claim: "Deck partially visible", Confidence: 0.5})

	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Len(t, alert.Claims, 2)
}

func TestInjectSecondTimeIsNoOp(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	now := time.Now().UTC()

	first, err := d.Inject(context.Background(), InjectInput{
		Entity: "Main Street Bridge", Claims: bridgeClaims(),
	}, now)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Inject(context.Background(), InjectInput{
		Entity: "Main Street Bridge", Claims: bridgeClaims(),
	}, now)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestResetClearsState(t *testing.T) {
	d := New(analyzer.NewVerification(nil))
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}
	_, err := d.Check(context.Background())
	require.NoError(t, err)

	d.Reset()
	assert.False(t, d.Handled("Main Street Bridge"))

	// After reset the same entity can alert again
	for _, c := range bridgeClaims() {
		d.AddClaim("Main Street Bridge", c)
	}
	alert, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, alert)
}
