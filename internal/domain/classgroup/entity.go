// Package classgroup contains the class-group model: the roster a session
// resolves its participants from, and the invite codes students use to
// join. This is a pure domain layer with zero external dependencies.
package classgroup

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// Domain errors for the classgroup package.
var (
	ErrClassNotFound      = shared.NewDomainError("classgroup", "Find", shared.ErrNotFound, "class group not found")
	ErrInviteCodeTaken    = shared.NewDomainError("classgroup", "Create", shared.ErrAlreadyExists, "invite code already in use")
	ErrInviteCodeNotFound = shared.NewDomainError("classgroup", "Join", shared.ErrNotFound, "invite code not found")
)

// ClassGroup is one teacher's class: a grade/class-number pair plus the
// invite code students use to enroll.
type ClassGroup struct {
	// ID is the unique identifier of the class group.
	ID shared.ClassID

	// TeacherID is the owning teacher's principal ID (issued by the
	// external Identity service).
	TeacherID string

	// Grade and ClassNum identify the class within the school.
	Grade    int
	ClassNum int

	// InviteCode admits students to the class. Unique across classes.
	InviteCode string

	// Mode toggles controlled by the teacher.
	AllowDigitalMode bool
	AllowNormalMode  bool
	AllowThemeChange bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInviteCode generates an invite code: one capital letter followed by
// four digits, e.g. "A1234". Uniqueness is the caller's problem: retry on
// ErrInviteCodeTaken.
func NewInviteCode(r *rand.Rand) string {
	letter := rune('A' + r.Intn(26))
	return fmt.Sprintf("%c%04d", letter, r.Intn(10000))
}
