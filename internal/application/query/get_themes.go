package query

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/internal/domain/theme"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET THEMES QUERY
// Lists the theme catalogue for a participant, marking which entries their
// current level has unlocked.
// ══════════════════════════════════════════════════════════════════════════════

// GetThemesQuery identifies the participant.
type GetThemesQuery struct {
	ParticipantID shared.ParticipantID
}

// ThemeDTO is one catalogue entry with its unlock state.
type ThemeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiredLevel int    `json:"required_level"`
	Unlocked      bool   `json:"unlocked"`
}

// GetThemesResult contains the catalogue view.
type GetThemesResult struct {
	ParticipantID shared.ParticipantID `json:"participant_id"`
	CurrentLevel  int                  `json:"current_level"`
	Themes        []ThemeDTO           `json:"themes"`
}

// GetThemesHandler handles the GetThemesQuery.
type GetThemesHandler struct {
	participants student.Repository
	themes       theme.Repository
}

// NewGetThemesHandler creates a new GetThemesHandler.
func NewGetThemesHandler(participants student.Repository, themes theme.Repository) *GetThemesHandler {
	return &GetThemesHandler{participants: participants, themes: themes}
}

// Handle executes the query.
func (h *GetThemesHandler) Handle(ctx context.Context, q GetThemesQuery) (*GetThemesResult, error) {
	if !q.ParticipantID.IsValid() {
		return nil, shared.NewDomainError("query", "GetThemes", shared.ErrInvalidID, "participant ID cannot be empty")
	}

	p, err := h.participants.GetByID(ctx, q.ParticipantID)
	if err != nil {
		return nil, err
	}

	catalogue, err := h.themes.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &GetThemesResult{
		ParticipantID: p.ID,
		CurrentLevel:  int(p.CurrentLevel),
		Themes:        make([]ThemeDTO, 0, len(catalogue)),
	}
	for _, t := range catalogue {
		result.Themes = append(result.Themes, ThemeDTO{
			ID:            t.ID,
			Name:          t.Name,
			RequiredLevel: int(t.RequiredLevel),
			Unlocked:      t.UnlockedBy(p.CurrentLevel),
		})
	}
	return result, nil
}
