// Package coordinator wires the signal pipeline: it routes raw signals to the
// modality analyzers, merges their outputs into the situation graph, feeds
// claims to the contradiction detector, and decides when the planner should
// produce an action recommendation. Every state change is broadcast so
// dashboards track the graph live.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
	"github.com/crisiscore-hq/crisiscore/pkg/config"
	"github.com/crisiscore-hq/crisiscore/pkg/detector"
	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
	"github.com/crisiscore-hq/crisiscore/pkg/scenario"
)

const (
	// maxRecentEvents bounds the in-memory timeline ring
	maxRecentEvents = 50

	// maxPendingActions stops the planner from piling up undecided proposals
	maxPendingActions = 3

	// maxPlanningResources caps the situation context handed to the planner
	maxPlanningResources = 6

	// decisionWindow is how long an operator has before a recommendation is
	// considered expired
	decisionWindow = 5 * time.Minute

	dispatchETAMinutes = 8
)

// Coordinator is the single orchestrator behind the API and the simulation
// driver. All public methods are safe for concurrent use.
type Coordinator struct {
	cfg      config.Settings
	graph    *graph.Manager
	detector *detector.Detector
	hub      broadcast.Broadcaster
	loader   scenario.Loader

	vision     *analyzer.Vision
	audio      *analyzer.Audio
	text       *analyzer.Text
	planning   *analyzer.Planning
	temporal   *analyzer.Temporal
	allocation *analyzer.Allocation
	debate     *analyzer.Debate

	mu           sync.Mutex
	events       []models.TimelineEvent
	lastPlanning time.Time

	simRunning   bool
	simPaused    bool
	simCancel    context.CancelFunc
	simStart     time.Time
	simTime      time.Time
	scenarioID   string
	scenarioName string

	// now is replaceable in tests
	now func() time.Time
}

// New builds a coordinator around a fresh graph and detector. A nil oracle is
// valid: every analyzer then runs on its deterministic fallback.
func New(cfg config.Settings, oracle analyzer.Oracle, hub broadcast.Broadcaster, loader scenario.Loader) *Coordinator {
	if hub == nil {
		hub = broadcast.Discard{}
	}
	if loader == nil {
		loader = scenario.FileLoader{Dir: cfg.ScenarioDir}
	}
	return &Coordinator{
		cfg:        cfg,
		graph:      graph.NewManager(),
		detector:   detector.New(analyzer.NewVerification(oracle)),
		hub:        hub,
		loader:     loader,
		vision:     analyzer.NewVision(oracle),
		audio:      analyzer.NewAudio(oracle),
		text:       analyzer.NewText(oracle),
		planning:   analyzer.NewPlanning(oracle),
		temporal:   analyzer.NewTemporal(oracle),
		allocation: analyzer.NewAllocation(oracle),
		debate:     analyzer.NewDebate(oracle),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Graph exposes the situation graph for read endpoints
func (c *Coordinator) Graph() *graph.Manager {
	return c.graph
}

// ProcessSignal runs one signal through analysis, graph merge, contradiction
// checking and the planning trigger. It returns an error only for unknown
// signal types or a cancelled context; analyzer failures degrade to fallbacks.
func (c *Coordinator) ProcessSignal(ctx context.Context, in models.SignalInput) (*models.SignalResult, error) {
	signalID := shortID(8)
	c.addEvent("signal_"+string(in.SignalType), map[string]any{
		"signal_id": signalID,
		"source":    getString(in.Metadata, "source"),
	})

	var (
		output *analyzer.Output
		err    error
	)
	analyzerInput := analyzer.Input{Content: in.Content, Metadata: in.Metadata}
	switch in.SignalType {
	case models.SignalTypeImage:
		output, err = c.vision.Analyze(ctx, analyzerInput)
	case models.SignalTypeAudio:
		output, err = c.audio.Analyze(ctx, analyzerInput)
	case models.SignalTypeText:
		output, err = c.text.Analyze(ctx, analyzerInput)
	default:
		return nil, fmt.Errorf("unknown signal type %q", in.SignalType)
	}
	if err != nil {
		return nil, err
	}

	c.hub.Broadcast("signal_processed", map[string]any{
		"signal_id":   signalID,
		"signal_type": in.SignalType,
		"agent_name":  output.AnalyzerName,
		"output_type": output.OutputType,
		"data":        output.Data,
		"confidence":  output.Confidence,
		"reasoning":   output.Reasoning,
		"timestamp":   output.Timestamp,
		"metadata":    in.Metadata,
	})

	incident := c.mergeOutput(signalID, in, output)

	// Live contradiction checks only run in manual mode. Scripted scenarios
	// raise their contradictions through explicit injection events.
	if incident != nil && !c.simulationRunning() {
		if alert, checkErr := c.detector.Check(ctx); checkErr == nil && alert != nil {
			c.graph.AddContradiction(alert)
			c.hub.Broadcast("contradiction_alert", alert)
			c.addEvent("contradiction_detected", map[string]any{
				"alert_id":    alert.ID,
				"entity_name": alert.EntityName,
				"verdict":     alert.Verdict,
			})
		}
	}

	c.maybeGeneratePlan(ctx)

	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.broadcastTimeline()

	result := &models.SignalResult{
		SignalID:   signalID,
		Analyzer:   output.AnalyzerName,
		OutputType: output.OutputType,
		Confidence: output.Confidence,
		Data:       output.Data,
	}
	if incident != nil {
		result.IncidentID = incident.ID
	}
	return result, nil
}

// mergeOutput folds one analyzer output into the graph. Image and audio
// outputs become incidents; text outputs become claims for the detector.
func (c *Coordinator) mergeOutput(signalID string, in models.SignalInput, output *analyzer.Output) *models.IncidentNode {
	switch output.OutputType {
	case "damage_assessment":
		return c.mergeDamageAssessment(signalID, in, output)
	case "audio_analysis":
		return c.mergeAudioAnalysis(signalID, in, output)
	case "text_analysis":
		c.mergeTextClaims(signalID, output)
	}
	return nil
}

func (c *Coordinator) mergeDamageAssessment(signalID string, in models.SignalInput, output *analyzer.Output) *models.IncidentNode {
	data := output.Data

	damage := getString(data, "damage_level")
	if damage == "" {
		damage = "moderate"
	}

	incidentType := "damage"
	for _, t := range getStrings(data, "damage_types") {
		if t == "structural_collapse" {
			incidentType = "structural_collapse"
			break
		}
	}

	casualties := getMap(data, "estimated_casualties")
	incident := &models.IncidentNode{
		ID:           "inc_" + signalID,
		IncidentType: incidentType,
		Location:     c.signalLocation(signalID, in.Metadata),
		DamageLevel:  models.DamageLevel(damage),
		Urgency:      models.UrgencyForDamage(damage),
		TrappedMin:   intPtrFrom(casualties, "min"),
		TrappedMax:   intPtrFrom(casualties, "max"),
		Confidence:   getFloat(data, "overall_confidence", 0.5),
		Sources: []models.SourceReference{{
			SourceID:         "image_" + signalID,
			SourceType:       models.SourceTypeImage,
			Timestamp:        output.Timestamp,
			CredibilityScore: output.Confidence,
		}},
		CreatedAt: c.now(),
		UpdatedAt: c.now(),
		DecayRate: 0.02,
		Status:    models.IncidentActive,
	}

	added := c.graph.AddIncident(incident)
	c.hub.Broadcast("new_incident", added)
	c.addEvent("new_incident", map[string]any{
		"incident_id":   added.ID,
		"incident_type": added.IncidentType,
		"urgency":       added.Urgency,
	})
	return added
}

func (c *Coordinator) mergeAudioAnalysis(signalID string, in models.SignalInput, output *analyzer.Output) *models.IncidentNode {
	data := output.Data

	urgency := models.ParseUrgency(getString(data, "urgency"))
	damage := models.DamageModerate
	if urgency == models.UrgencyCritical {
		damage = models.DamageSevere
	}

	incidentType := getString(data, "incident_type")
	if incidentType == "" {
		incidentType = "emergency"
	}

	trapped := getMap(getMap(data, "persons_involved"), "trapped")
	incident := &models.IncidentNode{
		ID:           "inc_" + signalID,
		IncidentType: incidentType,
		Location:     c.signalLocation(signalID, in.Metadata),
		DamageLevel:  damage,
		Urgency:      urgency,
		TrappedMin:   intPtrFrom(trapped, "min"),
		TrappedMax:   intPtrFrom(trapped, "max"),
		Confidence:   getFloat(data, "overall_confidence", 0.5),
		Sources: []models.SourceReference{{
			SourceID:         "audio_" + signalID,
			SourceType:       models.SourceTypeAudio,
			Timestamp:        output.Timestamp,
			CredibilityScore: output.Confidence,
		}},
		CreatedAt: c.now(),
		UpdatedAt: c.now(),
		DecayRate: 0.02,
		Status:    models.IncidentActive,
	}

	added := c.graph.AddIncident(incident)
	c.hub.Broadcast("new_incident", added)
	c.addEvent("new_incident", map[string]any{
		"incident_id":   added.ID,
		"incident_type": added.IncidentType,
		"urgency":       added.Urgency,
	})
	return added
}

// mergeTextClaims feeds extracted claims to the detector. Scripted scenarios
// skip this path entirely; their claims arrive via injection events.
func (c *Coordinator) mergeTextClaims(signalID string, output *analyzer.Output) {
	if c.simulationRunning() {
		return
	}

	sourceType := getString(output.Data, "source_type")
	if sourceType == "" {
		sourceType = "unverified"
	}

	for _, raw := range getSlice(output.Data, "claims") {
		cm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		// Claims without a named entity cannot be cross-checked; drop them
		// rather than pooling unrelated reports under one bucket.
		entity := getString(getMap(cm, "location"), "name")
		if entity == "" {
			continue
		}
		c.detector.AddClaim(entity, models.Claim{
			Source:     "text_" + signalID,
			SourceType: models.SourceType(sourceType),
			Claim:      getString(cm, "claim"),
			Confidence: getFloat(cm, "confidence", 0.4),
			Timestamp:  c.now().Format("15:04"),
		})
	}
}

// signalLocation resolves the incident coordinate: explicit metadata wins,
// otherwise a deterministic jitter around the map origin keyed on the signal
// id so repeated demos place incidents identically.
func (c *Coordinator) signalLocation(signalID string, metadata map[string]any) models.Location {
	loc := graph.JitteredLocation(signalID)
	if m := getMap(metadata, "location"); m != nil {
		if lat, ok := asFloat(m["lat"]); ok {
			loc.Lat = lat
		}
		if lng, ok := asFloat(m["lng"]); ok {
			loc.Lng = lng
		}
	}
	loc.Sector = getString(metadata, "sector")
	if loc.Sector == "" {
		loc.Sector = "1"
	}
	loc.Name = getString(metadata, "location_name")
	return loc
}

// maybeGeneratePlan runs the planner when the situation warrants it: the
// cooldown has elapsed, there are urgent unserved incidents, the pending
// queue has room and resources exist to allocate. The cooldown is stamped
// before the (slow) planner call so concurrent signals cannot double-fire.
func (c *Coordinator) maybeGeneratePlan(ctx context.Context) {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastPlanning) < c.cfg.PlanningCooldown {
		c.mu.Unlock()
		return
	}

	var needy []*models.IncidentNode
	for _, inc := range c.graph.IncidentsByUrgency() {
		if (inc.Urgency == models.UrgencyCritical || inc.Urgency == models.UrgencyHigh) && len(inc.AssignedResources) == 0 {
			needy = append(needy, inc)
		}
	}
	if len(needy) == 0 || c.graph.PendingActionCount() >= maxPendingActions {
		c.mu.Unlock()
		return
	}
	available := c.graph.AvailableResources("")
	if len(available) == 0 {
		c.mu.Unlock()
		return
	}

	c.lastPlanning = now
	c.mu.Unlock()

	if len(available) > maxPlanningResources {
		available = available[:maxPlanningResources]
	}

	output, err := c.planning.Analyze(ctx, analyzer.PlanningInput{
		Incidents:   needy,
		Resources:   available,
		Constraints: c.situationConstraints(),
	})
	if err != nil {
		return
	}

	action := c.buildAction(output, available, now)
	c.graph.AddAction(action)
	c.hub.Broadcast("action_recommendation", action)
	c.addEvent("action_recommendation", map[string]any{
		"action_id":   action.ID,
		"action_type": action.ActionType,
		"confidence":  action.Confidence,
	})
}

func (c *Coordinator) buildAction(output *analyzer.Output, available []*models.ResourceNode, now time.Time) *models.ActionRecommendation {
	data := output.Data
	rec := getMap(data, "recommendation")
	rationale := getMap(data, "rationale")
	target := getMap(rec, "target")

	actionType := getString(rec, "action")
	if actionType == "" {
		actionType = "dispatch_resources"
	}

	resources := toStrings(getSlice(rec, "resources"))
	if len(resources) == 0 {
		for i, r := range available {
			if i == 3 {
				break
			}
			resources = append(resources, r.UnitID)
		}
	}

	primaryReason := getString(rationale, "primary_reason")
	if primaryReason == "" {
		primaryReason = output.Reasoning
	}

	var tradeoffs []map[string]any
	for _, raw := range getSlice(data, "tradeoffs") {
		if m, ok := raw.(map[string]any); ok {
			tradeoffs = append(tradeoffs, m)
		}
	}

	requiresApproval := true
	if v, ok := data["human_approval_required"].(bool); ok {
		requiresApproval = v
	}

	sensitivity := models.UrgencyCritical
	if s := getString(data, "time_sensitivity"); s != "" {
		sensitivity = models.ParseUrgency(s)
	}

	return &models.ActionRecommendation{
		ID:                    "action_" + shortID(8),
		ActionType:            actionType,
		TargetIncidentID:      getString(target, "incident_id"),
		TargetSector:          getString(target, "sector"),
		ResourcesToAllocate:   resources,
		Rationale:             primaryReason,
		SupportingFactors:     toStrings(getSlice(rationale, "supporting_factors")),
		Confidence:            getFloat(rationale, "confidence", output.Confidence),
		Tradeoffs:             tradeoffs,
		UncertaintyFactors:    toStrings(getSlice(data, "uncertainty_factors")),
		RequiresHumanApproval: requiresApproval,
		DecisionDeadline:      now.Add(decisionWindow),
		TimeSensitivity:       sensitivity,
		Status:                models.DecisionPending,
		CreatedAt:             now,
	}
}

// situationConstraints summarizes operating constraints for the planners.
// Hospital capacity comes from the graph; blockages and weather are scenario
// constants until a live feed exists.
func (c *Coordinator) situationConstraints() map[string]string {
	snap := c.graph.Snapshot()

	var hospitals []string
	for _, loc := range snap.Locations {
		if loc.LocationType != "hospital" || loc.CapacityTotal == nil {
			continue
		}
		used := 0
		if loc.CapacityUsed != nil {
			used = *loc.CapacityUsed
		}
		name := loc.Location.Name
		if name == "" {
			name = loc.ID
		}
		hospitals = append(hospitals, fmt.Sprintf("%s: %d/%d beds used", name, used, *loc.CapacityTotal))
	}
	capacity := "not reported"
	if len(hospitals) > 0 {
		sort.Strings(hospitals)
		capacity = strings.Join(hospitals, "; ")
	}

	return map[string]string{
		"hospital_capacity": capacity,
		"road_blockages":    "Route 12 partially blocked (per recent reports)",
		"weather":           "Clear, wind 10km/h NE",
	}
}

// addEvent appends to the bounded timeline ring
func (c *Coordinator) addEvent(eventType string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, models.TimelineEvent{
		ID:        shortID(8),
		Type:      eventType,
		Timestamp: c.now(),
		Data:      data,
	})
	if len(c.events) > maxRecentEvents {
		c.events = c.events[len(c.events)-maxRecentEvents:]
	}
}

// RecentEvents returns up to limit most recent timeline events, oldest first
func (c *Coordinator) RecentEvents(limit int) []models.TimelineEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]models.TimelineEvent, len(events))
	copy(out, events)
	return out
}

func (c *Coordinator) broadcastTimeline() {
	c.hub.Broadcast("timeline_event", map[string]any{"events": c.RecentEvents(10)})
}

func (c *Coordinator) simulationRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simRunning
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:n]
}

// Map access helpers for analyzer data, which arrives as generic JSON maps

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]any, key string, def float64) float64 {
	if m == nil {
		return def
	}
	if v, ok := asFloat(m[key]); ok {
		return v
	}
	return def
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	s, _ := m[key].([]any)
	return s
}

func getStrings(m map[string]any, key string) []string {
	return toStrings(getSlice(m, key))
}

func toStrings(list []any) []string {
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func intPtrFrom(m map[string]any, key string) *int {
	if m == nil {
		return nil
	}
	if v, ok := asFloat(m[key]); ok {
		n := int(v)
		return &n
	}
	return nil
}

