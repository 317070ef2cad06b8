// Package api exposes the coordinator over HTTP: REST routes for graph
// state, signal ingestion, decisions, simulation control and voice, plus a
// WebSocket endpoint for live dashboard updates.
package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
	"github.com/crisiscore-hq/crisiscore/pkg/config"
	"github.com/crisiscore-hq/crisiscore/pkg/coordinator"
	"github.com/crisiscore-hq/crisiscore/pkg/copilot"
	"github.com/crisiscore-hq/crisiscore/pkg/voice"
)

// Server wires the HTTP surface to the coordinator and its helpers.
type Server struct {
	echo        *echo.Echo
	cfg         config.Settings
	coordinator *coordinator.Coordinator
	copilot     *copilot.Copilot
	synthesizer *voice.Synthesizer
	reporter    *voice.Reporter
	hub         *broadcast.Hub
}

// NewServer creates the API server and registers all routes.
func NewServer(
	cfg config.Settings,
	coord *coordinator.Coordinator,
	cop *copilot.Copilot,
	synth *voice.Synthesizer,
	reporter *voice.Reporter,
	hub *broadcast.Hub,
) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		cfg:         cfg,
		coordinator: coord,
		copilot:     cop,
		synthesizer: synth,
		reporter:    reporter,
		hub:         hub,
	}

	e.Use(securityHeaders())
	e.Use(corsHeaders(cfg.CORSOrigins))

	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler for serving and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/api/health", s.healthHandler)

	// Graph state
	e.GET("/api/graph", s.graphHandler)
	e.GET("/api/graph/incidents", s.incidentsHandler)
	e.GET("/api/graph/incidents/:id", s.incidentHandler)
	e.GET("/api/graph/resources", s.resourcesHandler)
	e.GET("/api/graph/stats", s.statsHandler)

	// Signal ingestion
	e.POST("/api/signals/image", s.imageSignalHandler)
	e.POST("/api/signals/audio", s.audioSignalHandler)
	e.POST("/api/signals/text", s.textSignalHandler)

	// Human decisions
	e.GET("/api/decisions/pending", s.pendingDecisionsHandler)
	e.POST("/api/decisions/contradiction/:id", s.resolveContradictionHandler)
	e.POST("/api/decisions/action/:id/approve", s.approveActionHandler)
	e.POST("/api/decisions/action/:id/reject", s.rejectActionHandler)

	// Simulation control
	e.POST("/api/simulation/start", s.startSimulationHandler)
	e.POST("/api/simulation/pause", s.pauseSimulationHandler)
	e.POST("/api/simulation/resume", s.resumeSimulationHandler)
	e.POST("/api/simulation/reset", s.resetSimulationHandler)
	e.GET("/api/simulation/status", s.simulationStatusHandler)

	// Audit and timeline
	e.GET("/api/audit/decision/:id", s.decisionAuditHandler)
	e.GET("/api/audit/incident/:id", s.incidentAuditHandler)
	e.GET("/api/timeline", s.timelineHandler)

	// Contradiction debate
	e.POST("/api/debate/:id/start", s.startDebateHandler)

	// Resource allocation
	e.GET("/api/resources/allocation", s.allocationStateHandler)
	e.POST("/api/resources/assign", s.assignResourceHandler)
	e.POST("/api/resources/unassign/:id", s.unassignResourceHandler)
	e.POST("/api/resources/generate-plan", s.generatePlanHandler)
	e.POST("/api/resources/plans/:id/approve", s.approvePlanHandler)

	// Camps
	e.POST("/api/camps/generate", s.generateCampsHandler)
	e.GET("/api/camps", s.listCampsHandler)
	e.POST("/api/camps/:id/approve", s.approveCampHandler)
	e.POST("/api/camps/:id/reject", s.rejectCampHandler)

	// Co-pilot and voice
	e.POST("/api/copilot/ask", s.askCopilotHandler)
	e.GET("/api/voice/report", s.voiceReportHandler)
	e.POST("/api/voice/synthesize", s.synthesizeHandler)
	e.POST("/api/voice/transcribe", s.transcribeHandler)
	e.GET("/api/voice/reports", s.voiceReportsHandler)

	// Live updates
	e.GET("/ws", s.wsHandler)
}

// healthHandler handles GET /api/health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "CrisisCore",
	})
}
