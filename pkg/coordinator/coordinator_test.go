package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/config"
	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
	"github.com/crisiscore-hq/crisiscore/pkg/scenario"
)

// recordingHub captures broadcast message types for assertions
type recordingHub struct {
	mu    sync.Mutex
	types []string
}

func (h *recordingHub) Broadcast(messageType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, messageType)
}

func (h *recordingHub) count(messageType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.types {
		if t == messageType {
			n++
		}
	}
	return n
}

// stubLoader serves a fixed scenario regardless of id
type stubLoader struct {
	scn *scenario.Scenario
}

func (l stubLoader) Load(string) (*scenario.Scenario, error) {
	return l.scn, nil
}

func testSettings() config.Settings {
	return config.Settings{
		SimulationSpeed:  1.0,
		PlanningCooldown: 20 * time.Second,
	}
}

func seedAmbulances(c *Coordinator, n int) {
	for i := 1; i <= n; i++ {
		c.Graph().AddResource(&models.ResourceNode{
			ID:           fmt.Sprintf("AMB-%d", i),
			ResourceType: "ambulance",
			UnitID:       fmt.Sprintf("AMB-%d", i),
			Status:       models.ResourceAvailable,
		})
	}
}

func TestProcessSignalImageCreatesIncidentAndPlan(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)
	seedAmbulances(c, 3)

	result, err := c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeImage,
		Content:    "drone-feed",
		Metadata:   map[string]any{"sector": "4", "location_name": "500 Market Street"},
	})
	require.NoError(t, err)

	assert.Equal(t, "vision", result.Analyzer)
	assert.Equal(t, "damage_assessment", result.OutputType)
	require.NotEmpty(t, result.IncidentID)
	assert.Equal(t, "inc_"+result.SignalID, result.IncidentID)

	snap := c.Graph().Snapshot()
	incident := snap.Incidents[result.IncidentID]
	require.NotNil(t, incident)
	assert.Equal(t, models.DamageSevere, incident.DamageLevel)
	assert.Equal(t, models.UrgencyCritical, incident.Urgency)
	assert.Equal(t, "4", incident.Location.Sector)
	assert.Equal(t, "500 Market Street", incident.Location.Name)
	require.NotNil(t, incident.TrappedMin)
	assert.Equal(t, 3, *incident.TrappedMin)

	// A critical unserved incident with available resources triggers planning
	require.Equal(t, 1, c.Graph().PendingActionCount())
	var action *models.ActionRecommendation
	for _, a := range snap.PendingActions {
		action = a
	}
	require.NotNil(t, action)
	assert.Equal(t, []string{"AMB-1", "AMB-2", "AMB-3"}, action.ResourcesToAllocate)
	assert.True(t, action.RequiresHumanApproval)
	assert.Equal(t, models.UrgencyCritical, action.TimeSensitivity)

	assert.Equal(t, 1, hub.count("signal_processed"))
	assert.Equal(t, 1, hub.count("new_incident"))
	assert.Equal(t, 1, hub.count("action_recommendation"))
	assert.GreaterOrEqual(t, hub.count("graph_update"), 1)
	assert.GreaterOrEqual(t, hub.count("timeline_event"), 1)
}

func TestPlanningCooldownAllowsOnePlanPerWindow(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, nil)
	seedAmbulances(c, 6)

	frozen := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return frozen }

	for i := 0; i < 5; i++ {
		_, err := c.ProcessSignal(context.Background(), models.SignalInput{
			SignalType: models.SignalTypeAudio,
			Metadata:   map[string]any{"transcript": "pancake collapse, people trapped"},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Graph().PendingActionCount())

	// Next window opens once the cooldown elapses
	frozen = frozen.Add(21 * time.Second)
	_, err := c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeAudio,
		Metadata:   map[string]any{"transcript": "another collapse reported"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Graph().PendingActionCount())
}

func TestProcessSignalUnknownTypeErrors(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, nil)
	_, err := c.ProcessSignal(context.Background(), models.SignalInput{SignalType: "video"})
	assert.Error(t, err)
}

func TestTextClaimsSurfaceContradictionOnNextIncident(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)

	// Two conflicting bridge reports accumulate claims without alerting
	for i := 0; i < 2; i++ {
		_, err := c.ProcessSignal(context.Background(), models.SignalInput{
			SignalType: models.SignalTypeText,
			Content:    "Main Street Bridge is down, Route 12 impassable",
			Metadata:   map[string]any{"source_type": "social_media"},
		})
		require.NoError(t, err)
	}
	assert.Empty(t, c.Graph().Snapshot().Contradictions)

	// The next incident-producing signal runs the detector
	_, err := c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeAudio,
		Metadata:   map[string]any{"transcript": "unit 7 on scene"},
	})
	require.NoError(t, err)

	contradictions := c.Graph().Snapshot().Contradictions
	require.Len(t, contradictions, 1)
	for _, alert := range contradictions {
		assert.Equal(t, "Main Street Bridge", alert.EntityName)
		assert.False(t, alert.Resolved)
	}
	assert.Equal(t, 1, hub.count("contradiction_alert"))
}

func TestApproveActionDispatchesAndBroadcasts(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)
	seedAmbulances(c, 3)

	result, err := c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeImage,
	})
	require.NoError(t, err)

	var actionID string
	for id := range c.Graph().Snapshot().PendingActions {
		actionID = id
	}
	require.NotEmpty(t, actionID)

	action, err := c.ApproveAction(actionID, "operator_1")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, action.Status)

	snap := c.Graph().Snapshot()
	assert.Equal(t, models.IncidentResponding, snap.Incidents[result.IncidentID].Status)
	for _, unitID := range action.ResourcesToAllocate {
		assert.Equal(t, models.ResourceDispatched, snap.Resources[unitID].Status)
	}
	assert.Equal(t, 1, hub.count("decision_made"))
}

func TestStartDebateUnknownAlert(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, nil)
	_, err := c.StartDebate(context.Background(), "alert_missing")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestGenerateAndApproveAllocationPlan(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)
	seedAmbulances(c, 1)
	incident := c.Graph().AddIncident(&models.IncidentNode{
		ID:      "inc_plan",
		Urgency: models.UrgencyCritical,
		Status:  models.IncidentActive,
	})

	plan, err := c.GenerateAllocationPlan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PlanDraft, plan.Status)
	require.Len(t, plan.ResourceAssignments, 1)
	assert.Equal(t, "AMB-1", plan.ResourceAssignments[0].ResourceID)
	assert.Equal(t, incident.ID, plan.ResourceAssignments[0].TargetIncidentID)
	assert.Len(t, plan.CampRecommendations, 2)
	assert.Equal(t, 1, hub.count("allocation_update"))

	approved, err := c.ApprovePlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanActive, approved.Status)
	assert.Equal(t, models.AssignmentApproved, approved.ResourceAssignments[0].Status)

	snap := c.Graph().Snapshot()
	assert.Equal(t, models.ResourceDispatched, snap.Resources["AMB-1"].Status)
	assert.Len(t, snap.CampLocations, 2)
}

func TestGenerateCampRecommendations(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)

	camps, err := c.GenerateCampRecommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, camps, 2)
	for _, camp := range camps {
		assert.Equal(t, models.CampSuggested, camp.Status)
		assert.NotEmpty(t, camp.Name)
	}
	assert.Equal(t, 2, hub.count("camp_recommendation"))
}

func TestProcessVoiceTranscript(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, nil)

	count := 120
	report, result, err := c.ProcessVoiceTranscript(context.Background(), VoiceReportInput{
		Transcript:      "Camp Delta here, 120 people sheltering, need water and insulin",
		CampName:        "Camp Delta",
		PopulationCount: &count,
		SuppliesNeeded:  []string{"water", "insulin"},
	})
	require.NoError(t, err)

	require.Len(t, report.SignalsCreated, 1)
	assert.Equal(t, result.SignalID, report.SignalsCreated[0])
	assert.Equal(t, "Camp Delta", report.CampName)

	snap := c.Graph().Snapshot()
	require.Contains(t, snap.VoiceReports, report.ID)
	assert.Equal(t, 1, hub.count("voice_report"))

	_, _, err = c.ProcessVoiceTranscript(context.Background(), VoiceReportInput{})
	assert.Error(t, err)
}

func TestRecentEventsRingIsBounded(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, nil)
	for i := 0; i < maxRecentEvents+10; i++ {
		c.addEvent("time_marker", map[string]any{"n": i})
	}

	events := c.RecentEvents(0)
	assert.Len(t, events, maxRecentEvents)

	last := c.RecentEvents(10)
	require.Len(t, last, 10)
	assert.Equal(t, maxRecentEvents+9, last[9].Data["n"])
}

func simTestScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ScenarioID:   "test_quake",
		ScenarioName: "Test Earthquake",
		InitialResources: map[string][]scenario.ResourceSpec{
			"ambulances": {{ID: "AMB-1", Sector: "2"}},
			"sar_teams":  {{ID: "SAR-1", Sector: "1", Personnel: 6}},
		},
		Events: []scenario.Event{
			{EventType: "resource_change", Data: map[string]any{
				"resource_id": "AMB-1",
				"updates":     map[string]any{"status": "dispatched"},
			}},
			{EventType: "time_marker", TimeOffsetSeconds: 60, Data: map[string]any{"label": "T+1min"}},
		},
	}
}

func TestSimulationLifecycle(t *testing.T) {
	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, stubLoader{scn: simTestScenario()})

	status, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "test_quake", status.ScenarioID)
	assert.Equal(t, "Test Earthquake", status.ScenarioName)

	snap := c.Graph().Snapshot()
	require.Contains(t, snap.Resources, "AMB-1")
	assert.Equal(t, "ambulance", snap.Resources["AMB-1"].ResourceType)
	assert.Equal(t, 6, snap.Resources["SAR-1"].Personnel)
	assert.Contains(t, snap.Locations, "loc_metro_general")
	assert.Contains(t, snap.Locations, "loc_main_bridge")

	require.Eventually(t, func() bool {
		return !c.SimulationStatus().Running
	}, 10*time.Second, 50*time.Millisecond)

	snap = c.Graph().Snapshot()
	assert.Equal(t, models.ResourceDispatched, snap.Resources["AMB-1"].Status)
	assert.GreaterOrEqual(t, hub.count("resource_update"), 1)
	assert.GreaterOrEqual(t, hub.count("sim_status"), 2)

	var sawMarker bool
	for _, e := range c.RecentEvents(0) {
		if e.Type == "time_marker" {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker)
}

func TestPauseBlocksReplay(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, stubLoader{scn: simTestScenario()})

	_, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)
	status := c.PauseSimulation()
	assert.True(t, status.Paused)

	status = c.ResumeSimulation()
	assert.False(t, status.Paused)

	require.Eventually(t, func() bool {
		return !c.SimulationStatus().Running
	}, 10*time.Second, 50*time.Millisecond)
}

func TestResetClearsAllDerivedState(t *testing.T) {
	c := New(testSettings(), nil, &recordingHub{}, stubLoader{scn: simTestScenario()})

	_, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)
	c.addEvent("time_marker", map[string]any{"label": "pre-reset"})

	status := c.ResetSimulation()
	assert.False(t, status.Running)
	assert.Empty(t, status.ScenarioID)

	snap := c.Graph().Snapshot()
	assert.Empty(t, snap.Resources)
	assert.Empty(t, snap.Incidents)
	assert.Empty(t, c.RecentEvents(0))
}

func TestScriptedSignalEventsCreateIncidents(t *testing.T) {
	scn := simTestScenario()
	scn.Events = []scenario.Event{
		{EventType: "signal", TimeOffsetSeconds: 5, Data: map[string]any{
			"type":        "image",
			"location":    map[string]any{"lat": 37.790, "lng": -122.402, "sector": "4"},
			"content":     "Building collapse at 500 Market Street. Multi-story pancake collapse visible.",
			"description": "collapse_severe_001.jpg",
			"metadata":    map[string]any{"source": "first_responder_camera"},
		}},
		{EventType: "signal", TimeOffsetSeconds: 10, Data: map[string]any{
			"type":        "audio",
			"transcript":  "Unit 7 to dispatch, multiple people trapped on the 4th floor at 500 Market Street.",
			"location":    map[string]any{"lat": 37.790, "lng": -122.402, "sector": "4"},
			"source_type": "first_responder",
		}},
		{EventType: "signal", TimeOffsetSeconds: 15, Data: map[string]any{
			"type":        "text",
			"content":     "Metro General Hospital ER capacity at 45%. Accepting trauma cases.",
			"source_type": "official_report",
			"location":    map[string]any{"name": "Metro General Hospital"},
		}},
	}

	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, stubLoader{scn: scn})

	_, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !c.SimulationStatus().Running
	}, 10*time.Second, 50*time.Millisecond)

	// Signal events run detached, so the graph fills in shortly after replay
	require.Eventually(t, func() bool {
		return hub.count("new_incident") == 2
	}, 10*time.Second, 50*time.Millisecond)

	snap := c.Graph().Snapshot()
	require.Len(t, snap.Incidents, 2)
	for _, incident := range snap.Incidents {
		assert.Equal(t, "4", incident.Location.Sector)
		assert.InDelta(t, 37.790, incident.Location.Lat, 1e-9)
		assert.InDelta(t, -122.402, incident.Location.Lng, 1e-9)
	}

	require.Eventually(t, func() bool {
		for _, e := range c.RecentEvents(0) {
			if e.Type == "signal_text" {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)
}

func TestContradictionInjectDuringSimulation(t *testing.T) {
	scn := simTestScenario()
	scn.Events = []scenario.Event{{
		EventType:         "contradiction_inject",
		TimeOffsetSeconds: 5,
		Data: map[string]any{
			"entity":        "Main Street Bridge",
			"entity_type":   "infrastructure",
			"force_verdict": "CONTRADICTION",
			"claims": []any{
				map[string]any{"source": "audio_report", "source_type": "first_responder",
					"claim": "Bridge collapsed", "confidence": 0.72},
				map[string]any{"source": "satellite_img", "source_type": "satellite",
					"claim": "Bridge intact", "confidence": 0.89},
			},
		},
	}}

	hub := &recordingHub{}
	c := New(testSettings(), nil, hub, stubLoader{scn: scn})

	_, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !c.SimulationStatus().Running
	}, 10*time.Second, 50*time.Millisecond)

	contradictions := c.Graph().Snapshot().Contradictions
	require.Len(t, contradictions, 1)
	for _, alert := range contradictions {
		assert.Equal(t, models.VerdictContradiction, alert.Verdict)
		assert.Equal(t, models.SeverityHigh, alert.Severity)
		assert.Len(t, alert.Claims, 2)
	}
	assert.Equal(t, 1, hub.count("contradiction_alert"))
}

func TestAftershockDecaysConfidence(t *testing.T) {
	scn := simTestScenario()
	scn.Events = []scenario.Event{{
		EventType:         "aftershock",
		TimeOffsetSeconds: 10,
		Data:              map[string]any{"magnitude": 4.2},
	}}

	c := New(testSettings(), nil, &recordingHub{}, stubLoader{scn: scn})
	c.Graph().AddIncident(&models.IncidentNode{
		ID:         "inc_shake",
		Urgency:    models.UrgencyCritical,
		Status:     models.IncidentActive,
		Confidence: 0.85,
		DecayRate:  0.01,
	})

	_, err := c.StartSimulation("test_quake", 10)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !c.SimulationStatus().Running
	}, 10*time.Second, 50*time.Millisecond)

	incident := c.Graph().Snapshot().Incidents["inc_shake"]
	require.NotNil(t, incident)
	assert.InDelta(t, 0.80, incident.Confidence, 1e-9)

	var sawAftershock bool
	for _, e := range c.RecentEvents(0) {
		if e.Type == "aftershock" {
			sawAftershock = true
			assert.Contains(t, e.Data["message"], "4.2M")
		}
	}
	assert.True(t, sawAftershock)
}

// namelessClaimsOracle returns a text analysis where only one claim names an
// entity
type namelessClaimsOracle struct{}

func (namelessClaimsOracle) Generate(context.Context, analyzer.Request) (string, error) {
	return `{
		"source_type": "eyewitness",
		"credibility_score": 0.6,
		"claims": [
			{"claim": "Heavy smoke visible downtown", "claim_type": "status", "confidence": 0.5},
			{"claim": "Roads congested citywide", "claim_type": "status", "location": {"name": ""}, "confidence": 0.4},
			{"claim": "Oak Street building leaning", "claim_type": "damage", "location": {"name": "Oak Street Building"}, "confidence": 0.7}
		],
		"red_flags": {},
		"raw_text": "smoke and congestion"
	}`, nil
}

func TestClaimsWithoutEntityAreDropped(t *testing.T) {
	c := New(testSettings(), namelessClaimsOracle{}, &recordingHub{}, nil)

	_, err := c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeText,
		Content:    "Heavy smoke downtown, roads congested",
	})
	require.NoError(t, err)

	// Nameless claims never pool into a shared bucket
	assert.Zero(t, c.detector.ClaimCount("unknown"))
	assert.Zero(t, c.detector.ClaimCount(""))
	assert.Equal(t, 1, c.detector.ClaimCount("Oak Street Building"))

	// A second nameless-heavy report still cannot raise an alert on its own
	_, err = c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeText,
		Content:    "Still smoky, still congested",
	})
	require.NoError(t, err)
	assert.Empty(t, c.Graph().Snapshot().Contradictions)
}

func TestTextClaimsSkippedDuringSimulation(t *testing.T) {
	scn := simTestScenario()
	// One long-delay event keeps the driver running for the whole test
	scn.Events = []scenario.Event{{EventType: "time_marker", DemoDelaySeconds: 600}}

	c := New(testSettings(), nil, &recordingHub{}, stubLoader{scn: scn})
	_, err := c.StartSimulation("test_quake", 1)
	require.NoError(t, err)
	defer c.ResetSimulation()

	// While running, text reports do not accumulate detector claims
	for i := 0; i < 2; i++ {
		_, err := c.ProcessSignal(context.Background(), models.SignalInput{
			SignalType: models.SignalTypeText,
			Content:    "Main Street Bridge is down",
		})
		require.NoError(t, err)
	}
	_, err = c.ProcessSignal(context.Background(), models.SignalInput{
		SignalType: models.SignalTypeAudio,
		Metadata:   map[string]any{"transcript": "unit 7 reporting"},
	})
	require.NoError(t, err)
	assert.Empty(t, c.Graph().Snapshot().Contradictions)
}
