package shared

// Identifier types shared across domain packages. Typed strings keep the
// signatures honest without dragging a package dependency in either direction.

// SessionID identifies one monitored class meeting.
type SessionID string

// IsValid checks if the session ID is valid.
func (s SessionID) IsValid() bool { return s != "" }

// String returns the string representation of SessionID.
func (s SessionID) String() string { return string(s) }

// ParticipantID identifies a student enrolled in a session's class.
type ParticipantID string

// IsValid checks if the participant ID is valid.
func (p ParticipantID) IsValid() bool { return p != "" }

// String returns the string representation of ParticipantID.
func (p ParticipantID) String() string { return string(p) }

// ClassID identifies a class group.
type ClassID string

// IsValid checks if the class ID is valid.
func (c ClassID) IsValid() bool { return c != "" }

// String returns the string representation of ClassID.
func (c ClassID) String() string { return string(c) }

// ConnectionID identifies a live device connection. Connection IDs are
// ephemeral and never persisted.
type ConnectionID string

// IsValid checks if the connection ID is valid.
func (c ConnectionID) IsValid() bool { return c != "" }

// String returns the string representation of ConnectionID.
func (c ConnectionID) String() string { return string(c) }
