package command

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASS MANAGEMENT COMMANDS
// Teacher-side class lifecycle: create a class with a fresh invite code,
// enroll students by code, and toggle session modes with a live broadcast
// to connected devices.
// ══════════════════════════════════════════════════════════════════════════════

// inviteCodeAttempts bounds the collision-retry loop on class creation.
const inviteCodeAttempts = 10

// ErrInviteCodeExhausted is returned when invite-code generation keeps
// colliding. Practically unreachable below hundreds of thousands of classes.
var ErrInviteCodeExhausted = shared.NewDomainError(
	"command", "CreateClass", shared.ErrConflict, "could not generate a unique invite code")

// CreateClassCommand contains the new class's attributes.
type CreateClassCommand struct {
	TeacherID string
	Grade     int
	ClassNum  int
}

// CreateClassHandler handles the CreateClassCommand.
type CreateClassHandler struct {
	classes classgroup.Repository
	log     *zap.Logger

	rng *rand.Rand
	now func() time.Time
}

// NewCreateClassHandler creates a new CreateClassHandler.
func NewCreateClassHandler(classes classgroup.Repository, log *zap.Logger) *CreateClassHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreateClassHandler{
		classes: classes,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle creates the class, retrying invite-code collisions.
func (h *CreateClassHandler) Handle(ctx context.Context, cmd CreateClassCommand) (*classgroup.ClassGroup, error) {
	if cmd.TeacherID == "" {
		return nil, shared.NewDomainError("command", "CreateClass", shared.ErrInvalidID, "teacher ID cannot be empty")
	}
	if cmd.Grade <= 0 || cmd.ClassNum <= 0 {
		return nil, shared.NewDomainError("command", "CreateClass", shared.ErrValidation, "grade and class number must be positive")
	}

	now := h.now()
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		c := &classgroup.ClassGroup{
			ID:               shared.ClassID(uuid.NewString()),
			TeacherID:        cmd.TeacherID,
			Grade:            cmd.Grade,
			ClassNum:         cmd.ClassNum,
			InviteCode:       classgroup.NewInviteCode(h.rng),
			AllowDigitalMode: true,
			AllowNormalMode:  true,
			AllowThemeChange: true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err := h.classes.Create(ctx, c)
		if err == nil {
			h.log.Info("class created",
				logger.ClassID(c.ID.String()),
				zap.String("invite_code", c.InviteCode),
			)
			return c, nil
		}
		if errors.Is(err, classgroup.ErrInviteCodeTaken) {
			continue
		}
		return nil, err
	}
	return nil, ErrInviteCodeExhausted
}

// ══════════════════════════════════════════════════════════════════════════════

// JoinClassCommand enrolls a student by invite code.
type JoinClassCommand struct {
	InviteCode  string
	DisplayName string
	Number      int
}

// JoinClassHandler handles the JoinClassCommand.
type JoinClassHandler struct {
	classes      classgroup.Repository
	participants student.Repository
	log          *zap.Logger

	now func() time.Time
}

// NewJoinClassHandler creates a new JoinClassHandler.
func NewJoinClassHandler(classes classgroup.Repository, participants student.Repository, log *zap.Logger) *JoinClassHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &JoinClassHandler{
		classes:      classes,
		participants: participants,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle resolves the invite code and enrolls the student at the floor
// level with zero XP.
func (h *JoinClassHandler) Handle(ctx context.Context, cmd JoinClassCommand) (*student.Participant, error) {
	if cmd.InviteCode == "" {
		return nil, classgroup.ErrInviteCodeNotFound
	}
	if cmd.DisplayName == "" {
		return nil, shared.NewDomainError("command", "JoinClass", shared.ErrValidation, "display name cannot be empty")
	}

	c, err := h.classes.GetByInviteCode(ctx, cmd.InviteCode)
	if err != nil {
		return nil, err
	}

	now := h.now()
	p := &student.Participant{
		ID:           shared.ParticipantID(uuid.NewString()),
		ClassID:      c.ID,
		DisplayName:  cmd.DisplayName,
		Number:       cmd.Number,
		CurrentXP:    0,
		CurrentLevel: student.FloorLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.participants.Create(ctx, p); err != nil {
		return nil, err
	}

	h.log.Info("participant enrolled",
		logger.ClassID(c.ID.String()),
		logger.ParticipantID(p.ID.String()),
	)
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════

// SetClassModesCommand toggles the class's mode flags. Connected devices
// hear about the change on the session's mode topic.
type SetClassModesCommand struct {
	ClassID          shared.ClassID
	AllowDigitalMode bool
	AllowNormalMode  bool
	AllowThemeChange bool
}

// ModeChange is the payload broadcast on the mode topic.
type ModeChange struct {
	ClassID          shared.ClassID `json:"class_id"`
	AllowDigitalMode bool           `json:"allow_digital_mode"`
	AllowNormalMode  bool           `json:"allow_normal_mode"`
	AllowThemeChange bool           `json:"allow_theme_change"`
}

// SetClassModesHandler handles the SetClassModesCommand.
type SetClassModesHandler struct {
	classes     classgroup.Repository
	broadcaster monitoring.Broadcaster
	log         *zap.Logger

	now func() time.Time
}

// NewSetClassModesHandler creates a new SetClassModesHandler.
func NewSetClassModesHandler(classes classgroup.Repository, broadcaster monitoring.Broadcaster, log *zap.Logger) *SetClassModesHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SetClassModesHandler{
		classes:     classes,
		broadcaster: broadcaster,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle persists the toggles, then broadcasts. The broadcast is
// best-effort: a publish failure leaves the persisted state authoritative
// and devices resync on their next connect.
func (h *SetClassModesHandler) Handle(ctx context.Context, cmd SetClassModesCommand) (*classgroup.ClassGroup, error) {
	c, err := h.classes.GetByID(ctx, cmd.ClassID)
	if err != nil {
		return nil, err
	}

	c.AllowDigitalMode = cmd.AllowDigitalMode
	c.AllowNormalMode = cmd.AllowNormalMode
	c.AllowThemeChange = cmd.AllowThemeChange
	c.UpdatedAt = h.now()

	if err := h.classes.Update(ctx, c); err != nil {
		return nil, err
	}

	topic := monitoring.SessionModeTopic(shared.SessionID(c.ID))
	payload := ModeChange{
		ClassID:          c.ID,
		AllowDigitalMode: c.AllowDigitalMode,
		AllowNormalMode:  c.AllowNormalMode,
		AllowThemeChange: c.AllowThemeChange,
	}
	if err := h.broadcaster.Publish(ctx, topic, payload); err != nil {
		h.log.Warn("mode broadcast failed",
			logger.ClassID(c.ID.String()),
			logger.Topic(topic),
			zap.Error(err),
		)
	}

	return c, nil
}
