// Package scenario loads scripted demo timelines. A scenario is a list of
// timed events (signals, aftershocks, contradiction injections, resource
// changes) replayed by the simulation driver against wall-clock time.
package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed scenario_earthquake.json
var defaultScenarioJSON []byte

// Event is one scripted timeline entry. Data stays map-shaped: each event
// type carries its own payload and the driver dispatches on EventType.
type Event struct {
	TimeOffsetSeconds float64        `json:"time_offset_seconds"`
	DemoDelaySeconds  float64        `json:"demo_delay_seconds"`
	EventType         string         `json:"event_type"`
	Data              map[string]any `json:"data"`
}

// ResourceSpec seeds one response unit at scenario start
type ResourceSpec struct {
	ID        string `json:"id"`
	Sector    string `json:"sector"`
	Status    string `json:"status"`
	Personnel int    `json:"personnel"`
}

// LocationSpec seeds one fixed location at scenario start
type LocationSpec struct {
	ID            string  `json:"id"`
	LocationType  string  `json:"location_type"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	CapacityTotal *int    `json:"capacity_total,omitempty"`
	CapacityUsed  *int    `json:"capacity_used,omitempty"`
	Status        string  `json:"status"`
	Accessibility string  `json:"accessibility"`
}

// Scenario is a complete scripted demo
type Scenario struct {
	ScenarioID       string                    `json:"scenario_id"`
	ScenarioName     string                    `json:"scenario_name"`
	Description      string                    `json:"description"`
	CityName         string                    `json:"city_name"`
	DemoCompression  int                       `json:"demo_compression"`
	InitialResources map[string][]ResourceSpec `json:"initial_resources"`
	InitialLocations []LocationSpec            `json:"initial_locations"`
	Events           []Event                   `json:"events"`
}

// Loader resolves a scenario id to a scenario
type Loader interface {
	Load(scenarioID string) (*Scenario, error)
}

// FileLoader reads scenarios from a directory of JSON files, falling back to
// the embedded earthquake scenario when the id has no file
type FileLoader struct {
	Dir string
}

// Load tries <dir>/<id>.json, then the directory's default file, then the
// embedded scenario
func (l FileLoader) Load(scenarioID string) (*Scenario, error) {
	if l.Dir != "" {
		paths := []string{
			filepath.Join(l.Dir, scenarioID+".json"),
			filepath.Join(l.Dir, "scenario_earthquake.json"),
		}
		for _, path := range paths {
			raw, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var s Scenario
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("parse scenario %s: %w", path, err)
			}
			return &s, nil
		}
	}
	return Default()
}

// Default returns the embedded Metro City earthquake scenario
func Default() (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(defaultScenarioJSON, &s); err != nil {
		return nil, fmt.Errorf("parse embedded scenario: %w", err)
	}
	return &s, nil
}
