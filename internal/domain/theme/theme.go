// Package theme contains the unlockable-theme catalogue. A participant's
// unlocked set derives from their current level; nothing here is written
// per student beyond the unlock marker.
package theme

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// ErrThemeNotFound is returned for unknown theme IDs.
var ErrThemeNotFound = shared.NewDomainError("theme", "Find", shared.ErrNotFound, "theme not found")

// Theme is one dashboard/device theme a participant can unlock.
type Theme struct {
	ID            string
	Name          string
	RequiredLevel student.Level
}

// UnlockedBy reports whether a participant of the given level has access.
func (t Theme) UnlockedBy(level student.Level) bool {
	return level >= t.RequiredLevel
}

// Repository defines storage operations for the theme catalogue.
type Repository interface {
	// ListAll returns the full catalogue ordered by required level.
	ListAll(ctx context.Context) ([]*Theme, error)

	// ListUnlocked returns the themes available at the given level.
	ListUnlocked(ctx context.Context, level student.Level) ([]*Theme, error)
}
