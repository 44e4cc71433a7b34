package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Applies a signed XP delta to a participant, re-derives the level from the
// threshold table, and appends an audit entry. Used by session settlement
// and by manual teacher grants.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains one XP award.
type AwardXPCommand struct {
	// ParticipantID is the student receiving the award.
	ParticipantID shared.ParticipantID

	// Amount is the signed XP delta. Negative amounts are legal and the
	// resulting total is not clamped at zero.
	Amount student.XP

	// Reason is the audit-trail cause of the award.
	Reason string
}

// AwardXPResult contains the participant's state after the award.
type AwardXPResult struct {
	// ParticipantID is the student the award was applied to.
	ParticipantID shared.ParticipantID

	// NewTotal is the cumulative XP after the award.
	NewTotal student.XP

	// NewLevel is the level derived from the new total.
	NewLevel student.Level

	// LeveledUp is true when the award crossed a threshold upward.
	LeveledUp bool
}

// XPAwarder is the settlement path's view of the gamification ledger.
type XPAwarder interface {
	Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error)
}

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	participants student.Repository
	levels       student.LevelRepository
	history      student.XPHistoryRepository
	log          *zap.Logger

	now func() time.Time
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(
	participants student.Repository,
	levels student.LevelRepository,
	history student.XPHistoryRepository,
	log *zap.Logger,
) *AwardXPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AwardXPHandler{
		participants: participants,
		levels:       levels,
		history:      history,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the ledger clock. Test hook.
func (h *AwardXPHandler) WithClock(now func() time.Time) *AwardXPHandler {
	h.now = now
	return h
}

// Handle applies the award. An empty level table leaves the participant at
// the floor level; the XP total is updated regardless.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if !cmd.ParticipantID.IsValid() {
		return nil, shared.NewDomainError("command", "AwardXP", shared.ErrInvalidID, "participant ID cannot be empty")
	}

	p, err := h.participants.GetByID(ctx, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}

	prevLevel := p.CurrentLevel
	p.AddXP(cmd.Amount)

	table, err := h.levels.LoadTable(ctx)
	if err == nil {
		p.UpdateLevel(table.LevelFor(p.CurrentXP))
	} else {
		p.UpdateLevel(student.FloorLevel)
		h.log.Warn("level table unavailable, holding floor level",
			logger.ParticipantID(cmd.ParticipantID.String()),
			zap.Error(err),
		)
	}

	now := h.now()
	p.UpdatedAt = now

	if err := h.participants.UpdateProgress(ctx, p); err != nil {
		return nil, err
	}

	change := &student.XPChange{
		ID:            uuid.NewString(),
		ParticipantID: cmd.ParticipantID,
		Amount:        cmd.Amount,
		NewTotal:      p.CurrentXP,
		Reason:        cmd.Reason,
		CreatedAt:     now,
	}
	if err := h.history.SaveChange(ctx, change); err != nil {
		return nil, err
	}

	h.log.Info("xp awarded",
		logger.ParticipantID(cmd.ParticipantID.String()),
		logger.XPAmount(cmd.Amount.Int()),
		zap.Int("new_total", p.CurrentXP.Int()),
		zap.Int("level", int(p.CurrentLevel)),
	)

	return &AwardXPResult{
		ParticipantID: cmd.ParticipantID,
		NewTotal:      p.CurrentXP,
		NewLevel:      p.CurrentLevel,
		LeveledUp:     p.CurrentLevel > prevLevel,
	}, nil
}
