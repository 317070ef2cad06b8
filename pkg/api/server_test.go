package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
	"github.com/crisiscore-hq/crisiscore/pkg/config"
	"github.com/crisiscore-hq/crisiscore/pkg/coordinator"
	"github.com/crisiscore-hq/crisiscore/pkg/copilot"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
	"github.com/crisiscore-hq/crisiscore/pkg/scenario"
	"github.com/crisiscore-hq/crisiscore/pkg/voice"
)

// stubLoader serves a fixed scenario regardless of id.
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
		CORSOrigins:      []string{"http://localhost:5173"},
		WSWriteTimeout:   5 * time.Second,
	}
}

// newTestServer builds a full server backed by fallback analyzers and an
// empty replay scenario.
func newTestServer(t *testing.T) (*Server, *coordinator.Coordinator) {
	t.Helper()

	cfg := testSettings()
	hub := broadcast.NewHub()
	loader := stubLoader{scn: &scenario.Scenario{
		ScenarioID:   "test_quake",
		ScenarioName: "Test Earthquake",
	}}

	coord := coordinator.New(cfg, nil, hub, loader)
	s := NewServer(
		cfg,
		coord,
		copilot.New(nil, coord.Graph()),
		voice.NewSynthesizer(""),
		voice.NewReporter(nil, coord.Graph()),
		hub,
	)
	return s, coord
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "CrisisCore", body["service"])
}

func TestImageSignalMultipart(t *testing.T) {
	s, coord := newTestServer(t)
	seedAmbulances(coord, 3)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "drone.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("sector", "4"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.SignalResult
	decodeBody(t, rec, &result)
	assert.Equal(t, "vision", result.Analyzer)
	assert.Equal(t, "damage_assessment", result.OutputType)
	require.NotEmpty(t, result.IncidentID)

	// The new incident is visible through the graph routes.
	rec = doJSON(t, s, http.MethodGet, "/api/graph/incidents/"+result.IncidentID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/graph/incidents/inc_nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageSignalRequiresFile(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("sector", "4"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextSignalValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/signals/text", map[string]any{
		"content": "Bridge at Main Street is fully collapsed, avoid the area",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/signals/text", map[string]any{"content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPendingDecisionsAndActionLifecycle(t *testing.T) {
	s, coord := newTestServer(t)
	seedAmbulances(coord, 3)

	// An image signal creates a critical incident and a planner action.
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "drone.jpg")
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/decisions/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pending PendingDecisionsResponse
	decodeBody(t, rec, &pending)
	require.Len(t, pending.Actions, 1)
	assert.Empty(t, pending.Contradictions)

	actionID := pending.Actions[0].ID

	rec = doJSON(t, s, http.MethodPost, "/api/decisions/action/"+actionID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var action models.ActionRecommendation
	decodeBody(t, rec, &action)
	assert.Equal(t, models.DecisionApproved, action.Status)

	rec = doJSON(t, s, http.MethodPost, "/api/decisions/action/no_such/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectActionWithReason(t *testing.T) {
	s, coord := newTestServer(t)
	seedAmbulances(coord, 3)

	coord.Graph().AddAction(&models.ActionRecommendation{
		ID:         "action_test1",
		ActionType: "dispatch_resources",
		Status:     models.DecisionPending,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/decisions/action/action_test1/reject",
		RejectActionRequest{Reason: "waiting on verification"})
	require.Equal(t, http.StatusOK, rec.Code)

	var action models.ActionRecommendation
	decodeBody(t, rec, &action)
	assert.Equal(t, models.DecisionRejected, action.Status)
}

func TestResolveContradictionEndpoint(t *testing.T) {
	s, coord := newTestServer(t)

	coord.Graph().AddContradiction(&models.ContradictionAlert{
		ID:         "alert_bridge",
		EntityID:   "main_street_bridge",
		EntityName: "Main Street Bridge",
		Verdict:    models.VerdictContradiction,
		Urgency:    models.UrgencyHigh,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/decisions/contradiction/alert_bridge",
		models.HumanDecision{Decision: "trust_satellite"})
	require.Equal(t, http.StatusOK, rec.Code)

	var alert models.ContradictionAlert
	decodeBody(t, rec, &alert)
	assert.True(t, alert.Resolved)
	assert.Equal(t, "trust_satellite", alert.Resolution)

	rec = doJSON(t, s, http.MethodPost, "/api/decisions/contradiction/alert_bridge",
		models.HumanDecision{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/decisions/contradiction/alert_missing",
		models.HumanDecision{Decision: "trust_satellite"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulationEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/simulation/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SimulationStatus
	decodeBody(t, rec, &status)
	assert.False(t, status.Running)

	rec = doJSON(t, s, http.MethodPost, "/api/simulation/start",
		StartSimulationRequest{ScenarioID: "test_quake", Speed: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	var started SimulationStartedResponse
	decodeBody(t, rec, &started)
	assert.Equal(t, "started", started.Status)
	assert.Equal(t, "test_quake", started.Scenario)

	rec = doJSON(t, s, http.MethodPost, "/api/simulation/pause", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/simulation/resume", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/simulation/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/simulation/status", nil)
	decodeBody(t, rec, &status)
	assert.False(t, status.Running)
}

func TestAssignAndUnassignResource(t *testing.T) {
	s, coord := newTestServer(t)
	seedAmbulances(coord, 1)
	coord.Graph().AddIncident(&models.IncidentNode{
		ID:      "inc_manual",
		Urgency: models.UrgencyHigh,
		Status:  models.IncidentActive,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/resources/assign",
		AssignResourceRequest{ResourceID: "AMB-1", IncidentID: "inc_manual"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "assigned", resp.Status)
	assert.Equal(t, "AMB-1", resp.ResourceID)

	rec = doJSON(t, s, http.MethodPost, "/api/resources/assign", AssignResourceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/resources/assign",
		AssignResourceRequest{ResourceID: "AMB-9", IncidentID: "inc_manual"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/resources/unassign/AMB-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "unassigned", resp.Status)
}

func TestAllocationPlanLifecycle(t *testing.T) {
	s, coord := newTestServer(t)
	seedAmbulances(coord, 2)
	coord.Graph().AddIncident(&models.IncidentNode{
		ID:      "inc_plan",
		Urgency: models.UrgencyCritical,
		Status:  models.IncidentActive,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/resources/generate-plan", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan models.AllocationPlan
	decodeBody(t, rec, &plan)
	require.NotEmpty(t, plan.ID)
	assert.Equal(t, models.PlanDraft, plan.Status)

	rec = doJSON(t, s, http.MethodGet, "/api/resources/allocation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state AllocationStateResponse
	decodeBody(t, rec, &state)
	require.Len(t, state.AllocationPlans, 1)
	assert.Len(t, state.Resources, 2)
	assert.Len(t, state.Incidents, 1)

	rec = doJSON(t, s, http.MethodPost, "/api/resources/plans/"+plan.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, plan.ID, resp.PlanID)

	rec = doJSON(t, s, http.MethodPost, "/api/resources/plans/plan_missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampEndpoints(t *testing.T) {
	s, coord := newTestServer(t)
	coord.Graph().AddIncident(&models.IncidentNode{
		ID:      "inc_camp",
		Urgency: models.UrgencyCritical,
		Status:  models.IncidentActive,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/camps/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var camps []*models.CampRecommendation
	decodeBody(t, rec, &camps)
	require.NotEmpty(t, camps)

	rec = doJSON(t, s, http.MethodGet, "/api/camps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &camps)
	require.NotEmpty(t, camps)

	rec = doJSON(t, s, http.MethodPost, "/api/camps/"+camps[0].ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	if len(camps) > 1 {
		rec = doJSON(t, s, http.MethodPost, "/api/camps/"+camps[1].ID+"/reject", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/camps/camp_missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCopilotAsk(t *testing.T) {
	s, coord := newTestServer(t)
	coord.Graph().AddIncident(&models.IncidentNode{
		ID:       "inc_q",
		Urgency:  models.UrgencyCritical,
		Status:   models.IncidentActive,
		Location: models.Location{Sector: "4"},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/copilot/ask",
		CopilotRequest{Question: "What is the biggest risk right now?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CopilotResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Answer, "inc_q")
	assert.NotEmpty(t, resp.Timestamp)

	rec = doJSON(t, s, http.MethodPost, "/api/copilot/ask", CopilotRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoiceEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/voice/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report VoiceReportResponse
	decodeBody(t, rec, &report)
	assert.Contains(t, report.ReportText, "Situation report:")

	// No ElevenLabs key configured.
	rec = doJSON(t, s, http.MethodPost, "/api/voice/synthesize", SynthesizeRequest{Text: "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/voice/transcribe", map[string]any{
		"transcript": "Camp Delta here, we need water for 120 people",
		"camp_name":  "Camp Delta",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var transcribed TranscribeResponse
	decodeBody(t, rec, &transcribed)
	assert.True(t, strings.HasPrefix(transcribed.ReportID, "voice_"))
	assert.Equal(t, "processed", transcribed.Status)
	require.NotNil(t, transcribed.SignalResult)

	rec = doJSON(t, s, http.MethodPost, "/api/voice/transcribe", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/voice/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []*models.VoiceReport
	decodeBody(t, rec, &reports)
	require.Len(t, reports, 1)
	assert.Equal(t, "Camp Delta", reports[0].CampName)
}

func TestTimelineAfterSignal(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/signals/text", map[string]any{
		"content": "Power lines down near the stadium",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var timeline TimelineResponse
	decodeBody(t, rec, &timeline)
	require.NotEmpty(t, timeline.Events)
	assert.Equal(t, "signal_text", timeline.Events[0].Type)
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	// Unknown origins get no CORS grant.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Preflight is answered directly.
	req = httptest.NewRequest(http.MethodOptions, "/api/copilot/ask", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func seedAmbulances(coord *coordinator.Coordinator, n int) {
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("AMB-%d", i)
		coord.Graph().AddResource(&models.ResourceNode{
			ID:           id,
			ResourceType: "ambulance",
			UnitID:       id,
			Status:       models.ResourceAvailable,
		})
	}
}
