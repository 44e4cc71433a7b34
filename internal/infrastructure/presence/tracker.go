// Package presence implements in-memory live-connection tracking for
// monitored sessions. State is intentionally volatile: it describes open
// connections, which do not survive a process restart either.
package presence

import (
	"sync"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Tracker implements monitoring.PresenceTracker.
//
// Three indices answer the three lookups: connection → session (leave),
// connection → participant (who-left notifications), session → entries
// (roster and count). One mutex guards all three so a join/leave is
// observed as a single step; readers never see a participant counted but
// not listed.
type Tracker struct {
	mu sync.RWMutex

	connSession     map[shared.ConnectionID]shared.SessionID
	connParticipant map[shared.ConnectionID]monitoring.ConnectedParticipant
	sessionConns    map[shared.SessionID]map[shared.ConnectionID]monitoring.ConnectedParticipant
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		connSession:     make(map[shared.ConnectionID]shared.SessionID),
		connParticipant: make(map[shared.ConnectionID]monitoring.ConnectedParticipant),
		sessionConns:    make(map[shared.SessionID]map[shared.ConnectionID]monitoring.ConnectedParticipant),
	}
}

// Join registers a connection with its session and participant. A re-join
// on the same connection ID overwrites the prior entry, detaching it from
// its old session first if the session changed.
func (t *Tracker) Join(connID shared.ConnectionID, sessionID shared.SessionID, p monitoring.ConnectedParticipant) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.connSession[connID]; ok && prev != sessionID {
		t.detachLocked(connID, prev)
	}

	t.connSession[connID] = sessionID
	t.connParticipant[connID] = p

	conns, ok := t.sessionConns[sessionID]
	if !ok {
		conns = make(map[shared.ConnectionID]monitoring.ConnectedParticipant)
		t.sessionConns[sessionID] = conns
	}
	conns[connID] = p
}

// Leave removes a connection and reports who left. Unknown connections are
// a no-op with ok=false.
func (t *Tracker) Leave(connID shared.ConnectionID) (monitoring.ConnectedParticipant, shared.SessionID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessionID, ok := t.connSession[connID]
	if !ok {
		return monitoring.ConnectedParticipant{}, "", false
	}
	p := t.connParticipant[connID]

	delete(t.connSession, connID)
	delete(t.connParticipant, connID)
	t.detachLocked(connID, sessionID)

	return p, sessionID, true
}

// CountFor returns the number of live connections in a session.
func (t *Tracker) CountFor(sessionID shared.SessionID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessionConns[sessionID])
}

// ListFor returns the participants currently connected to a session.
func (t *Tracker) ListFor(sessionID shared.SessionID) []monitoring.ConnectedParticipant {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := t.sessionConns[sessionID]
	out := make([]monitoring.ConnectedParticipant, 0, len(conns))
	for _, p := range conns {
		out = append(out, p)
	}
	return out
}

// detachLocked removes a connection from a session's set, dropping the set
// once empty so idle sessions do not accumulate.
func (t *Tracker) detachLocked(connID shared.ConnectionID, sessionID shared.SessionID) {
	conns, ok := t.sessionConns[sessionID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(t.sessionConns, sessionID)
	}
}
