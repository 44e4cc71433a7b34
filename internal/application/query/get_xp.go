package query

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP QUERY
// Reads a participant's gamification state: current total, level, the
// audit trail over a window, and the reason of the most recent change.
// ══════════════════════════════════════════════════════════════════════════════

// GetXPQuery contains the XP read request.
type GetXPQuery struct {
	// ParticipantID is the student whose ledger is read.
	ParticipantID shared.ParticipantID

	// From / To bound the history window. Both zero means no history.
	From time.Time
	To   time.Time
}

// XPChangeDTO is one audit entry.
type XPChangeDTO struct {
	Amount    int       `json:"amount"`
	NewTotal  int       `json:"new_total"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// GetXPResult contains the gamification read model.
type GetXPResult struct {
	ParticipantID shared.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
	CurrentXP     int                  `json:"current_xp"`
	CurrentLevel  int                  `json:"current_level"`

	// LastReason is the reason of the most recent change, "" when the
	// ledger is empty.
	LastReason string `json:"last_reason,omitempty"`

	// History holds the changes inside [From, To], newest first.
	History []XPChangeDTO `json:"history,omitempty"`
}

// GetXPHandler handles the GetXPQuery.
type GetXPHandler struct {
	participants student.Repository
	history      student.XPHistoryRepository
}

// NewGetXPHandler creates a new GetXPHandler.
func NewGetXPHandler(participants student.Repository, history student.XPHistoryRepository) *GetXPHandler {
	return &GetXPHandler{participants: participants, history: history}
}

// Handle executes the query.
func (h *GetXPHandler) Handle(ctx context.Context, q GetXPQuery) (*GetXPResult, error) {
	if !q.ParticipantID.IsValid() {
		return nil, shared.NewDomainError("query", "GetXP", shared.ErrInvalidID, "participant ID cannot be empty")
	}

	p, err := h.participants.GetByID(ctx, q.ParticipantID)
	if err != nil {
		return nil, err
	}

	result := &GetXPResult{
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		CurrentXP:     p.CurrentXP.Int(),
		CurrentLevel:  int(p.CurrentLevel),
	}

	result.LastReason, err = h.history.LastReason(ctx, q.ParticipantID)
	if err != nil {
		return nil, err
	}

	if !q.From.IsZero() || !q.To.IsZero() {
		to := q.To
		if to.IsZero() {
			to = time.Now().UTC()
		}
		changes, err := h.history.ListByParticipant(ctx, q.ParticipantID, q.From, to)
		if err != nil {
			return nil, err
		}
		result.History = make([]XPChangeDTO, 0, len(changes))
		for _, c := range changes {
			result.History = append(result.History, XPChangeDTO{
				Amount:    c.Amount.Int(),
				NewTotal:  c.NewTotal.Int(),
				Reason:    c.Reason,
				CreatedAt: c.CreatedAt,
			})
		}
	}

	return result, nil
}
