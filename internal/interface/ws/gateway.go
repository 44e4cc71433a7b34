// Package ws implements the websocket gateway: student devices stream
// attention events in, teacher dashboards stream alerts and presence
// counts out. Joining and leaving a socket drives the presence tracker
// and the ENTER/EXIT notifications.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/application/command"
	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/messaging"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/metrics"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Gateway terminates the websocket connections.
type Gateway struct {
	ingest    *command.IngestEventHandler
	tracker   monitoring.PresenceTracker
	directory classgroup.Directory
	bus       messaging.Bus
	metrics   *metrics.Metrics
	log       *zap.Logger

	upgrader websocket.Upgrader
}

// NewGateway creates the websocket gateway. A nil metrics disables
// instrumentation.
func NewGateway(
	ingest *command.IngestEventHandler,
	tracker monitoring.PresenceTracker,
	directory classgroup.Directory,
	bus messaging.Bus,
	m *metrics.Metrics,
	log *zap.Logger,
) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		ingest:    ingest,
		tracker:   tracker,
		directory: directory,
		bus:       bus,
		metrics:   m,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the gateway routes.
func (g *Gateway) Register(router *mux.Router) {
	router.HandleFunc("/ws/sessions/{id}", g.handleDevice).Methods(http.MethodGet)
	router.HandleFunc("/ws/sessions/{id}/dashboard", g.handleDashboard).Methods(http.MethodGet)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEVICE CONNECTIONS (students)
// ══════════════════════════════════════════════════════════════════════════════

// deviceFrame is one inbound message from a student device.
type deviceFrame struct {
	Type       string    `json:"type"`
	DetectedAt time.Time `json:"detected_at"`
}

// handleDevice serves a student device connection for one session. The
// connect itself is the ENTER event; the disconnect is the EXIT.
func (g *Gateway) handleDevice(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(mux.Vars(r)["id"])
	participantID := shared.ParticipantID(r.URL.Query().Get("participant_id"))

	if !sessionID.IsValid() || !participantID.IsValid() {
		http.Error(w, "session and participant_id are required", http.StatusBadRequest)
		return
	}

	// Validate before upgrading so bad requests fail with HTTP statuses.
	if _, err := g.directory.ResolveSession(r.Context(), sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	participant, err := g.directory.ResolveParticipant(r.Context(), participantID)
	if err != nil {
		http.Error(w, "unknown participant", http.StatusNotFound)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := shared.ConnectionID(uuid.NewString())
	g.tracker.Join(connID, sessionID, monitoring.ConnectedParticipant{
		ParticipantID: participant.ID,
		DisplayName:   participant.DisplayName,
		Number:        participant.Number,
	})

	g.metrics.DeviceConnected()

	ctx := context.Background()
	g.announce(ctx, sessionID, participantID, monitoring.EventEnter)
	g.publishCount(ctx, sessionID)

	g.log.Info("device connected",
		logger.SessionID(sessionID.String()),
		logger.ParticipantID(participantID.String()),
		logger.ConnectionID(connID.String()),
	)

	defer func() {
		conn.Close()
		g.metrics.DeviceDisconnected()
		if p, sid, ok := g.tracker.Leave(connID); ok {
			g.announce(ctx, sid, p.ParticipantID, monitoring.EventExit)
			g.publishCount(ctx, sid)
			g.log.Info("device disconnected",
				logger.SessionID(sid.String()),
				logger.ParticipantID(p.ParticipantID.String()),
			)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame deviceFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("device read error", logger.ConnectionID(connID.String()), zap.Error(err))
			}
			return
		}

		res, err := g.ingest.Handle(ctx, command.IngestEventCommand{
			SessionID:     sessionID,
			ParticipantID: participantID,
			Type:          monitoring.EventType(frame.Type),
			DetectedAt:    frame.DetectedAt,
		})
		if err != nil {
			g.log.Warn("device event rejected",
				logger.ParticipantID(participantID.String()),
				logger.EventType(frame.Type),
				zap.Error(err),
			)
			continue
		}
		g.metrics.ObserveIngest(frame.Type, res.BroadcastOK)
	}
}

// announce routes an ENTER/EXIT through the normal ingestion path so it
// lands in the event log and on the dashboard like any other alert.
func (g *Gateway) announce(ctx context.Context, sessionID shared.SessionID, participantID shared.ParticipantID, t monitoring.EventType) {
	_, err := g.ingest.Handle(ctx, command.IngestEventCommand{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Type:          t,
	})
	if err != nil {
		g.log.Warn("presence announcement failed",
			logger.SessionID(sessionID.String()),
			logger.EventType(t.String()),
			zap.Error(err),
		)
	}
}

// publishCount broadcasts the fresh connection count to the session topic.
func (g *Gateway) publishCount(ctx context.Context, sessionID shared.SessionID) {
	update := monitoring.NewPresenceUpdate(g.tracker.CountFor(sessionID))
	if err := g.bus.Publish(ctx, monitoring.SessionTopic(sessionID), update); err != nil {
		g.log.Warn("presence count broadcast failed",
			logger.SessionID(sessionID.String()),
			zap.Error(err),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD CONNECTIONS (teachers)
// ══════════════════════════════════════════════════════════════════════════════

// handleDashboard serves a teacher dashboard connection: a read-only feed
// of the session topic plus the mode topic.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(mux.Vars(r)["id"])
	if !sessionID.IsValid() {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	if _, err := g.directory.ResolveSession(r.Context(), sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	alerts, cancelAlerts, err := g.bus.Subscribe(r.Context(), monitoring.SessionTopic(sessionID))
	if err != nil {
		http.Error(w, "subscription unavailable", http.StatusServiceUnavailable)
		return
	}
	modes, cancelModes, err := g.bus.Subscribe(r.Context(), monitoring.SessionModeTopic(sessionID))
	if err != nil {
		cancelAlerts()
		http.Error(w, "subscription unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancelAlerts()
		cancelModes()
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	g.log.Info("dashboard connected", logger.SessionID(sessionID.String()))

	done := make(chan struct{})
	go func() {
		// Drain the socket so close frames and pongs are processed.
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancelAlerts()
		cancelModes()
		conn.Close()
		g.log.Info("dashboard disconnected", logger.SessionID(sessionID.String()))
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-alerts:
			if !ok || !g.forward(conn, msg) {
				return
			}
		case msg, ok := <-modes:
			if !ok || !g.forward(conn, msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forward writes one bus message to the socket. Payloads are already
// JSON, so they go out verbatim.
func (g *Gateway) forward(conn *websocket.Conn, msg messaging.Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
		g.log.Warn("dashboard write failed", logger.Topic(msg.Topic), zap.Error(err))
		return false
	}
	return true
}
