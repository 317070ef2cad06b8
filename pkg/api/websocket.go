package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
)

// wsConnection adapts one WebSocket client into a broadcast sink.
type wsConnection struct {
	id           string
	conn         *websocket.Conn
	ctx          context.Context
	writeTimeout time.Duration
}

func (c *wsConnection) ID() string { return c.id }

// Send writes raw bytes to the client with a write timeout. A failed write
// makes the hub drop this sink.
func (c *wsConnection) Send(data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// clientMessage is the inbound wire format from dashboard clients.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// decisionPayload carries an operator verdict sent over the socket.
type decisionPayload struct {
	ItemType  string `json:"item_type"`
	ItemID    string `json:"item_id"`
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason"`
}

// handleConnection manages one WebSocket client: registers it with the hub,
// pushes the initial state, then processes client messages until the
// connection closes.
func (s *Server) handleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	ws := &wsConnection{
		id:           uuid.New().String(),
		conn:         conn,
		ctx:          ctx,
		writeTimeout: s.cfg.WSWriteTimeout,
	}

	s.hub.Register(ws)
	defer s.hub.Unregister(ws.id)
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.sendEnvelope(ws, "initial_state", s.coordinator.Graph().Snapshot())
	s.sendEnvelope(ws, "sim_status", s.coordinator.SimulationStatus())

	// Read loop: process client messages until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", ws.id, "error", err)
			continue
		}

		s.handleClientMessage(ws, &msg)
	}
}

// handleClientMessage dispatches one inbound message. Handler errors are
// logged so a bad message cannot kill the connection.
func (s *Server) handleClientMessage(ws *wsConnection, msg *clientMessage) {
	switch msg.Type {
	case "human_decision":
		var payload decisionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("Invalid human_decision payload",
				"connection_id", ws.id, "error", err)
			return
		}
		if payload.DecidedBy == "" {
			payload.DecidedBy = "operator"
		}

		var err error
		switch {
		case payload.ItemType == "contradiction":
			_, err = s.coordinator.ResolveContradiction(payload.ItemID, payload.Decision, payload.DecidedBy)
		case payload.ItemType == "action" && payload.Decision == "approved":
			_, err = s.coordinator.ApproveAction(payload.ItemID, payload.DecidedBy)
		case payload.ItemType == "action" && payload.Decision == "rejected":
			_, err = s.coordinator.RejectAction(payload.ItemID, payload.Reason, payload.DecidedBy)
		}
		if err != nil {
			slog.Warn("WebSocket decision failed",
				"connection_id", ws.id, "item_id", payload.ItemID, "error", err)
		}

	case "request_refresh":
		s.sendEnvelope(ws, "graph_update", s.coordinator.Graph().Snapshot())

	case "start_simulation":
		var payload StartSimulationRequest
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				slog.Warn("Invalid start_simulation payload",
					"connection_id", ws.id, "error", err)
				return
			}
		}
		if payload.ScenarioID == "" {
			payload.ScenarioID = defaultScenarioID
		}
		if payload.Speed <= 0 {
			payload.Speed = s.cfg.SimulationSpeed
		}
		if _, err := s.coordinator.StartSimulation(payload.ScenarioID, payload.Speed); err != nil {
			slog.Warn("WebSocket simulation start failed",
				"connection_id", ws.id, "scenario_id", payload.ScenarioID, "error", err)
		}

	case "pause_simulation":
		s.coordinator.PauseSimulation()

	case "resume_simulation":
		s.coordinator.ResumeSimulation()

	case "reset_simulation":
		s.coordinator.ResetSimulation()
	}
}

// sendEnvelope delivers a typed message to a single client, bypassing the hub.
func (s *Server) sendEnvelope(ws *wsConnection, messageType string, payload any) {
	data, err := json.Marshal(broadcast.Envelope{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", ws.id, "message_type", messageType, "error", err)
		return
	}
	if err := ws.Send(data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", ws.id, "message_type", messageType, "error", err)
	}
}
