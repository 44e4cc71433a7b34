package monitoring

import (
	"fmt"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Notification is the broadcast payload sent to a session's subscribers
// when an attention event is ingested.
type Notification struct {
	// SessionID is the session whose topic receives the broadcast.
	SessionID shared.SessionID `json:"session_id"`

	// ParticipantID identifies the student the alert is about.
	ParticipantID shared.ParticipantID `json:"participant_id"`

	// ParticipantName is the student's display name.
	ParticipantName string `json:"participant_name"`

	// Type is the attention event type that triggered the alert.
	Type EventType `json:"type"`

	// Message is the human-readable alert line shown on the dashboard.
	Message string `json:"message"`

	// AlertTime is the timestamp used for the event (detected-at).
	AlertTime time.Time `json:"alert_time"`

	// TotalAwayCount is the participant's same-day cumulative AWAY count,
	// over unsettled events only.
	TotalAwayCount int64 `json:"total_away_count"`

	// TotalUnfocusCount is the same-day cumulative UNFOCUS count.
	TotalUnfocusCount int64 `json:"total_unfocus_count"`
}

// messageTemplates maps each event type to its dashboard message. The
// participant name is spliced in front; unknown types get the generic line.
var messageTemplates = map[EventType]string{
	EventAway:     "left the session",
	EventUnfocus:  "is not focused",
	EventFocus:    "is focused",
	EventRestroom: "is at the restroom",
	EventActivity: "is in an activity",
	EventEnter:    "entered the session",
	EventExit:     "exited the session",
}

// MessageFor renders the dashboard message for an event type.
func MessageFor(t EventType, participantName string) string {
	tmpl, ok := messageTemplates[t]
	if !ok {
		tmpl = "has an alert"
	}
	return fmt.Sprintf("%s %s", participantName, tmpl)
}

// PresenceUpdate is broadcast on join/leave so dashboards can refresh the
// connected-participant count without re-querying.
type PresenceUpdate struct {
	Type  string `json:"type"` // always "USER_COUNT"
	Count int    `json:"count"`
}

// NewPresenceUpdate builds a presence-count broadcast payload.
func NewPresenceUpdate(count int) PresenceUpdate {
	return PresenceUpdate{Type: "USER_COUNT", Count: count}
}

// Session topic naming. Alerts and presence counts share the session topic;
// mode changes go out on the dedicated mode topic.
func SessionTopic(id shared.SessionID) string     { return "session/" + id.String() }
func SessionModeTopic(id shared.SessionID) string { return "session/" + id.String() + "/mode" }
