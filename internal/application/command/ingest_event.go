// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST EVENT COMMAND
// Takes one attention event from a student device, persists it to the event
// log, and routes an enriched alert to the session's dashboard topic.
// ══════════════════════════════════════════════════════════════════════════════

// IngestEventCommand contains one reported attention change.
type IngestEventCommand struct {
	// SessionID is the monitored session the event belongs to.
	SessionID shared.SessionID

	// ParticipantID is the reporting student.
	ParticipantID shared.ParticipantID

	// Type is the kind of attention change.
	Type monitoring.EventType

	// DetectedAt is when the device detected the change. Zero means the
	// device did not supply a timestamp and the ingestion clock is used.
	DetectedAt time.Time
}

// IngestEventResult describes what was persisted and broadcast.
type IngestEventResult struct {
	// EventID is the ID of the persisted event.
	EventID string

	// Notification is the alert routed to the dashboard topic.
	Notification *monitoring.Notification

	// BroadcastOK is false when persisting succeeded but publishing did
	// not. The event is durable either way.
	BroadcastOK bool
}

// IngestEventHandler handles the IngestEventCommand.
type IngestEventHandler struct {
	events      monitoring.EventLogRepository
	directory   classgroup.Directory
	broadcaster monitoring.Broadcaster
	log         *zap.Logger

	now func() time.Time
}

// NewIngestEventHandler creates a new IngestEventHandler.
func NewIngestEventHandler(
	events monitoring.EventLogRepository,
	directory classgroup.Directory,
	broadcaster monitoring.Broadcaster,
	log *zap.Logger,
) *IngestEventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestEventHandler{
		events:      events,
		directory:   directory,
		broadcaster: broadcaster,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the ingestion clock. Test hook.
func (h *IngestEventHandler) WithClock(now func() time.Time) *IngestEventHandler {
	h.now = now
	return h
}

// Handle validates, persists, then broadcasts. Persisting is the
// transaction boundary: a publish failure after a successful append is
// reported in the result, never rolled back.
func (h *IngestEventHandler) Handle(ctx context.Context, cmd IngestEventCommand) (*IngestEventResult, error) {
	if !cmd.SessionID.IsValid() {
		return nil, shared.NewDomainError("command", "IngestEvent", shared.ErrInvalidID, "session ID cannot be empty")
	}

	// Unknown participants are rejected before anything is written.
	participant, err := h.directory.ResolveParticipant(ctx, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	event, err := monitoring.NewAttentionEvent(uuid.NewString(), cmd.ParticipantID, cmd.Type, cmd.DetectedAt, now)
	if err != nil {
		return nil, err
	}

	if err := h.events.Append(ctx, event); err != nil {
		return nil, err
	}

	notification, err := h.buildNotification(ctx, cmd.SessionID, participant.DisplayName, event)
	if err != nil {
		return nil, err
	}

	result := &IngestEventResult{
		EventID:      event.ID,
		Notification: notification,
		BroadcastOK:  true,
	}

	topic := monitoring.SessionTopic(cmd.SessionID)
	if err := h.broadcaster.Publish(ctx, topic, notification); err != nil {
		result.BroadcastOK = false
		h.log.Warn("alert broadcast failed",
			logger.SessionID(cmd.SessionID.String()),
			logger.ParticipantID(cmd.ParticipantID.String()),
			logger.EventType(event.Type.String()),
			zap.Error(err),
		)
	}

	return result, nil
}

// buildNotification enriches the raw event with the display name, the
// message template, and the cumulative day tallies. Day bounds come from
// the event's own timestamp so a report near midnight lands in its own
// calendar day.
func (h *IngestEventHandler) buildNotification(ctx context.Context, sessionID shared.SessionID, displayName string, event *monitoring.AttentionEvent) (*monitoring.Notification, error) {
	dayStart, dayEnd := timeutil.DayBounds(event.DetectedAt)

	awayCount, err := h.events.CountUnsettledByType(ctx, event.ParticipantID, monitoring.EventAway, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	unfocusCount, err := h.events.CountUnsettledByType(ctx, event.ParticipantID, monitoring.EventUnfocus, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return &monitoring.Notification{
		SessionID:         sessionID,
		ParticipantID:     event.ParticipantID,
		ParticipantName:   displayName,
		Type:              event.Type,
		Message:           monitoring.MessageFor(event.Type, displayName),
		AlertTime:         event.DetectedAt,
		TotalAwayCount:    awayCount,
		TotalUnfocusCount: unfocusCount,
	}, nil
}
