// Package config holds runtime settings loaded from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the process-wide runtime configuration
type Settings struct {
	// API keys. Empty keys disable the corresponding integration and the
	// analyzers run on their deterministic fallbacks.
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	// GeminiModel is the generation model used by all analyzers
	GeminiModel string

	// HTTP server
	HTTPPort    int
	CORSOrigins []string

	// SimulationSpeed is the default playback multiplier
	SimulationSpeed float64

	// PlanningCooldown is the minimum interval between planning runs
	PlanningCooldown time.Duration

	// ScenarioDir optionally points at a directory of scenario JSON files
	ScenarioDir string

	// WSWriteTimeout bounds a single websocket send
	WSWriteTimeout time.Duration
}

// LoadFromEnv builds Settings from environment variables, applying defaults
// for anything unset
func LoadFromEnv() (Settings, error) {
	port, err := strconv.Atoi(getEnvOrDefault("HTTP_PORT", "8000"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}

	speed, err := strconv.ParseFloat(getEnvOrDefault("SIMULATION_SPEED", "1.0"), 64)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid SIMULATION_SPEED: %w", err)
	}

	cooldownSeconds, err := strconv.Atoi(getEnvOrDefault("PLANNING_COOLDOWN_SECONDS", "20"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid PLANNING_COOLDOWN_SECONDS: %w", err)
	}

	return Settings{
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		GeminiModel:      getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		HTTPPort:         port,
		CORSOrigins:      parseOrigins(os.Getenv("CORS_ORIGINS")),
		SimulationSpeed:  speed,
		PlanningCooldown: time.Duration(cooldownSeconds) * time.Second,
		ScenarioDir:      os.Getenv("SCENARIO_DIR"),
		WSWriteTimeout:   10 * time.Second,
	}, nil
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
