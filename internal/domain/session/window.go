// Package session contains the settlement domain: the time window of one
// class meeting, the per-participant focus reduction, and the settlement
// records it produces. This is a pure domain layer with zero external
// dependencies.
package session

import (
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Domain errors for the session package.
var (
	ErrSessionNotFound      = shared.NewDomainError("session", "Resolve", shared.ErrNotFound, "session not found")
	ErrInvalidWindow        = shared.NewDomainError("session", "Validate", shared.ErrValidation, "window end precedes start")
	ErrSettlementInProgress = shared.NewDomainError("session", "Settle", shared.ErrConflict, "settlement already running for this session")
	ErrRecordNotFound       = shared.NewDomainError("session", "Find", shared.ErrNotFound, "settlement record not found")
)

// Window is the settled time span of one class meeting, supplied by the
// caller on session end. Both bounds are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates the bounds. A zero-length window is legal; an
// inverted one is not.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TotalSeconds returns the window length in seconds, floored at 1 so a
// degenerate zero-length window never divides by zero.
func (w Window) TotalSeconds() int64 {
	secs := int64(w.End.Sub(w.Start) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
