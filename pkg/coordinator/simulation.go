package coordinator

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/detector"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
	"github.com/crisiscore-hq/crisiscore/pkg/scenario"
)

const (
	// minEventGap keeps scripted events visually distinct even at high
	// playback speeds
	minEventGap = 300 * time.Millisecond

	// pausePoll is how often a paused driver rechecks its state
	pausePoll = 200 * time.Millisecond

	// batchGap spaces out the signals of one signal_batch event
	batchGap = 300 * time.Millisecond

	// aftershockDecayMinutes is the confidence decay applied per aftershock
	aftershockDecayMinutes = 5.0
)

// sectorCoords anchors scripted sectors on the demo map
var sectorCoords = map[string][2]float64{
	"1": {37.790, -122.402},
	"2": {37.780, -122.410},
	"3": {37.772, -122.418},
	"4": {37.760, -122.405},
	"5": {37.755, -122.415},
}

// StartSimulation loads a scripted scenario, seeds the graph with its initial
// resources and locations, and starts the replay goroutine. A running
// simulation is cancelled first.
func (c *Coordinator) StartSimulation(scenarioID string, speed float64) (models.SimulationStatus, error) {
	scn, err := c.loader.Load(scenarioID)
	if err != nil {
		return models.SimulationStatus{}, fmt.Errorf("load scenario %q: %w", scenarioID, err)
	}
	if speed <= 0 {
		speed = c.cfg.SimulationSpeed
	}
	if speed <= 0 {
		speed = 1.0
	}

	c.mu.Lock()
	if c.simCancel != nil {
		c.simCancel()
	}
	now := c.now()
	c.simRunning = true
	c.simPaused = false
	c.simStart = now
	c.simTime = now
	c.scenarioID = scn.ScenarioID
	c.scenarioName = scn.ScenarioName
	ctx, cancel := context.WithCancel(context.Background())
	c.simCancel = cancel
	c.mu.Unlock()

	c.graph.SetScenario(scn.ScenarioID, scn.ScenarioName, now)
	c.seedResources(scn, now)
	c.seedLocations(scn, now)

	slog.Info("simulation started",
		"scenario_id", scn.ScenarioID,
		"scenario_name", scn.ScenarioName,
		"events", len(scn.Events),
		"speed", speed)

	go c.runScenario(ctx, scn, speed)

	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	status := c.SimulationStatus()
	c.hub.Broadcast("sim_status", status)
	return status, nil
}

// PauseSimulation halts replay between events. In-flight signal analysis is
// not interrupted.
func (c *Coordinator) PauseSimulation() models.SimulationStatus {
	c.mu.Lock()
	if c.simRunning {
		c.simPaused = true
	}
	c.mu.Unlock()

	status := c.SimulationStatus()
	c.hub.Broadcast("sim_status", status)
	return status
}

// ResumeSimulation continues a paused replay
func (c *Coordinator) ResumeSimulation() models.SimulationStatus {
	c.mu.Lock()
	c.simPaused = false
	c.mu.Unlock()

	status := c.SimulationStatus()
	c.hub.Broadcast("sim_status", status)
	return status
}

// ResetSimulation stops any replay and clears all derived state: graph,
// detector memory, timeline and planning cooldown
func (c *Coordinator) ResetSimulation() models.SimulationStatus {
	c.mu.Lock()
	if c.simCancel != nil {
		c.simCancel()
		c.simCancel = nil
	}
	c.simRunning = false
	c.simPaused = false
	c.scenarioID = ""
	c.scenarioName = ""
	c.events = nil
	c.lastPlanning = time.Time{}
	c.mu.Unlock()

	c.detector.Reset()
	c.graph.Reset()

	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	status := c.SimulationStatus()
	c.hub.Broadcast("sim_status", status)
	return status
}

// Shutdown stops any running replay without clearing graph state. Used on
// process exit.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.simCancel != nil {
		c.simCancel()
		c.simCancel = nil
	}
	c.simRunning = false
	c.simPaused = false
}

// SimulationStatus reports the driver's current state
func (c *Coordinator) SimulationStatus() models.SimulationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := models.SimulationStatus{
		Running:      c.simRunning,
		Paused:       c.simPaused,
		ScenarioID:   c.scenarioID,
		ScenarioName: c.scenarioName,
		CurrentTime:  c.simTime,
	}
	if c.simRunning {
		status.ElapsedSeconds = c.now().Sub(c.simStart).Seconds()
	}
	return status
}

// runScenario replays scripted events in order, compressing scripted time
// into demo pacing. Signals are analyzed in detached goroutines so a slow
// oracle never stalls the timeline.
func (c *Coordinator) runScenario(ctx context.Context, scn *scenario.Scenario, speed float64) {
	defer func() {
		c.mu.Lock()
		wasRunning := c.simRunning
		c.simRunning = false
		c.simPaused = false
		c.mu.Unlock()
		if wasRunning {
			c.hub.Broadcast("sim_status", c.SimulationStatus())
		}
	}()

	for _, event := range scn.Events {
		if !c.waitForEvent(ctx, event, speed) {
			return
		}

		simTime := c.simStart.Add(time.Duration(event.TimeOffsetSeconds * float64(time.Second)))
		c.mu.Lock()
		c.simTime = simTime
		c.mu.Unlock()
		c.graph.AdvanceSimTime(simTime)

		c.dispatchScriptedEvent(ctx, event, simTime)
		c.hub.Broadcast("sim_status", c.SimulationStatus())
	}

	slog.Info("simulation finished", "scenario_id", scn.ScenarioID)
}

// waitForEvent sleeps the event's demo delay, polling through pauses. It
// returns false when the simulation was cancelled.
func (c *Coordinator) waitForEvent(ctx context.Context, event scenario.Event, speed float64) bool {
	for {
		c.mu.Lock()
		paused := c.simPaused
		c.mu.Unlock()
		if !paused {
			break
		}
		select {
		case <-time.After(pausePoll):
		case <-ctx.Done():
			return false
		}
	}

	delay := time.Duration(event.DemoDelaySeconds / speed * float64(time.Second))
	if delay < minEventGap {
		delay = minEventGap
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) dispatchScriptedEvent(ctx context.Context, event scenario.Event, simTime time.Time) {
	switch event.EventType {
	case "signal":
		go c.processScriptedSignal(ctx, event.Data)

	case "signal_batch":
		signals := getSlice(event.Data, "signals")
		go func() {
			for _, raw := range signals {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				c.processScriptedSignal(ctx, m)
				select {
				case <-time.After(batchGap):
				case <-ctx.Done():
					return
				}
			}
		}()

	case "aftershock":
		c.handleAftershock(ctx, event.Data, simTime)

	case "resource_change":
		resourceID := getString(event.Data, "resource_id")
		updates := getMap(event.Data, "updates")
		resource, err := c.graph.UpdateResource(resourceID, updates)
		if err != nil {
			slog.Warn("scripted resource change failed", "resource_id", resourceID, "error", err)
			return
		}
		c.hub.Broadcast("resource_update", resource)
		c.hub.Broadcast("graph_update", c.graph.Snapshot())

	case "contradiction_inject":
		c.handleContradictionInject(ctx, event.Data, simTime)

	case "time_marker":
		c.addEvent("time_marker", event.Data)
		c.broadcastTimeline()

	default:
		slog.Warn("unknown scripted event type", "event_type", event.EventType)
	}
}

// processScriptedSignal translates a scenario signal event into a pipeline
// input. Scenario events use scene-authoring keys (type, location, transcript,
// source_type, description) rather than the API's signal shape.
func (c *Coordinator) processScriptedSignal(ctx context.Context, data map[string]any) {
	signalType := getString(data, "type")
	if signalType == "" {
		signalType = "text"
	}

	location := getMap(data, "location")
	scripted := getMap(data, "metadata")

	source := getString(scripted, "source")
	if source == "" {
		source = "simulation"
	}
	sector := getString(data, "sector")
	if sector == "" {
		sector = getString(location, "sector")
	}

	metadata := map[string]any{
		"location":      location,
		"location_name": getString(location, "name"),
		"sector":        sector,
		"source":        source,
		"source_type":   getString(data, "source_type"),
	}

	// Scripted scenes carry pre-written content instead of real media files.
	content := getString(data, "content")
	if content == "" {
		content = getString(data, "description")
	}
	if content == "" {
		content = "Simulated emergency signal"
	}

	input := models.SignalInput{SignalType: models.SignalType(signalType), Metadata: metadata}
	switch input.SignalType {
	case models.SignalTypeText:
		if getString(metadata, "source_type") == "" {
			metadata["source_type"] = "unverified"
		}
		input.Content = content
	case models.SignalTypeAudio:
		transcript := getString(data, "transcript")
		if transcript == "" {
			transcript = content
		}
		metadata["transcript"] = transcript
	case models.SignalTypeImage:
		metadata["description"] = content
	}

	if _, err := c.ProcessSignal(ctx, input); err != nil && ctx.Err() == nil {
		slog.Warn("scripted signal failed", "signal_type", input.SignalType, "error", err)
	}
}

// handleAftershock decays incident confidences, asks the temporal analyzer
// for a projection, and pushes a warning banner to the timeline
func (c *Coordinator) handleAftershock(ctx context.Context, data map[string]any, simTime time.Time) {
	magnitude := getFloat(data, "magnitude", 4.0)

	c.graph.DecayConfidences(aftershockDecayMinutes)

	alert := map[string]any{
		"type":     "aftershock",
		"message":  fmt.Sprintf("⚡ AFTERSHOCK %.1fM - Updating confidence levels", magnitude),
		"severity": "warning",
	}
	if projection := c.aftershockProjection(ctx, simTime); projection != "" {
		alert["projection"] = projection
	}

	c.addEvent("aftershock", alert)
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.broadcastTimeline()
}

// aftershockProjection runs the temporal analyzer over the active incidents
// so the timeline banner carries a staleness estimate
func (c *Coordinator) aftershockProjection(ctx context.Context, simTime time.Time) string {
	snap := c.graph.Snapshot()

	var observations []analyzer.TemporalObservation
	var ids []string
	for id := range snap.Incidents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		inc := snap.Incidents[id]
		if inc.Status != models.IncidentActive {
			continue
		}
		observations = append(observations, analyzer.TemporalObservation{
			Timestamp:  inc.UpdatedAt.Format("15:04"),
			State:      map[string]any{"incident_type": inc.IncidentType, "urgency": string(inc.Urgency)},
			Confidence: inc.Confidence,
		})
	}
	if len(observations) == 0 {
		return ""
	}

	output, err := c.temporal.Analyze(ctx, analyzer.TemporalInput{
		Entity:       "active_incidents",
		Observations: observations,
		CurrentTime:  simTime,
	})
	if err != nil || output == nil {
		return ""
	}
	return output.Reasoning
}

func (c *Coordinator) handleContradictionInject(ctx context.Context, data map[string]any, simTime time.Time) {
	entity := getString(data, "entity")
	if entity == "" {
		return
	}

	var claims []models.Claim
	for _, raw := range getSlice(data, "claims") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		claims = append(claims, models.Claim{
			Source:     getString(m, "source"),
			SourceType: models.SourceType(getString(m, "source_type")),
			Claim:      getString(m, "claim"),
			Confidence: getFloat(m, "confidence", 0.5),
			Timestamp:  getString(m, "timestamp"),
		})
	}

	alert, err := c.detector.Inject(ctx, detector.InjectInput{
		Entity:           entity,
		EntityType:       getString(data, "entity_type"),
		Claims:           claims,
		ForceVerdict:     getString(data, "force_verdict"),
		TemporalAnalysis: getString(data, "temporal_analysis"),
	}, simTime)
	if err != nil || alert == nil {
		return
	}

	c.graph.AddContradiction(alert)
	c.hub.Broadcast("contradiction_alert", alert)
	c.addEvent("contradiction_detected", map[string]any{
		"alert_id":    alert.ID,
		"entity_name": alert.EntityName,
		"verdict":     alert.Verdict,
	})
	c.hub.Broadcast("graph_update", c.graph.Snapshot())
	c.broadcastTimeline()
}

func (c *Coordinator) seedResources(scn *scenario.Scenario, now time.Time) {
	types := make([]string, 0, len(scn.InitialResources))
	for t := range scn.InitialResources {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, typeKey := range types {
		resourceType := strings.TrimSuffix(typeKey, "s")
		for _, spec := range scn.InitialResources[typeKey] {
			coords, ok := sectorCoords[spec.Sector]
			if !ok {
				coords = sectorCoords["1"]
			}

			status := models.ResourceAvailable
			if spec.Status != "" {
				status = models.ResourceStatus(spec.Status)
			}
			personnel := spec.Personnel
			if personnel == 0 {
				personnel = 2
			}

			c.graph.AddResource(&models.ResourceNode{
				ID:           spec.ID,
				ResourceType: resourceType,
				UnitID:       spec.ID,
				CurrentLocation: models.Location{
					Lat:    coords[0] + unitJitter(spec.ID),
					Lng:    coords[1] + unitJitter(spec.ID+":lng"),
					Sector: spec.Sector,
				},
				Status:            status,
				Personnel:         personnel,
				CapacityRemaining: 2,
				UpdatedAt:         now,
			})
		}
	}
}

func (c *Coordinator) seedLocations(scn *scenario.Scenario, now time.Time) {
	specs := scn.InitialLocations
	if len(specs) == 0 {
		specs = defaultLocations()
	}

	for _, spec := range specs {
		status := models.LocationOperational
		if spec.Status != "" {
			status = models.LocationStatus(spec.Status)
		}
		accessibility := models.AccessAccessible
		if spec.Accessibility != "" {
			accessibility = models.Accessibility(spec.Accessibility)
		}

		c.graph.AddLocation(&models.LocationNode{
			ID:            spec.ID,
			Location:      models.Location{Lat: spec.Lat, Lng: spec.Lng, Name: spec.Name},
			LocationType:  spec.LocationType,
			CapacityTotal: spec.CapacityTotal,
			CapacityUsed:  spec.CapacityUsed,
			Status:        status,
			Accessibility: accessibility,
			Confidence:    0.9,
			UpdatedAt:     now,
		})
	}
}

// defaultLocations seeds scenarios that ship no location list
func defaultLocations() []scenario.LocationSpec {
	metroTotal, metroUsed := 200, 90
	stMarysTotal, stMarysUsed := 150, 45
	return []scenario.LocationSpec{
		{ID: "loc_metro_general", LocationType: "hospital", Name: "Metro General Hospital",
			Lat: 37.785, Lng: -122.405, CapacityTotal: &metroTotal, CapacityUsed: &metroUsed},
		{ID: "loc_st_marys", LocationType: "hospital", Name: "St. Mary's Medical",
			Lat: 37.762, Lng: -122.418, CapacityTotal: &stMarysTotal, CapacityUsed: &stMarysUsed},
		{ID: "loc_main_bridge", LocationType: "bridge", Name: "Main Street Bridge",
			Lat: 37.780, Lng: -122.410},
	}
}

// unitJitter spreads seeded units around their sector anchor, deterministic
// per unit id so restarts render identically
func unitJitter(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return (float64(h.Sum32()%51) - 25) * 0.0005
}
