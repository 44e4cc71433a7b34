package query

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS REPORT QUERY
// Collects a whole class's settlement records for one calendar day,
// joined with the roster. Feeds the dashboard day view and the exported
// spreadsheet report.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassReportQuery identifies the class and day.
type GetClassReportQuery struct {
	ClassID shared.ClassID
	Date    time.Time
}

// ClassReportRow is one participant's line in the report.
type ClassReportRow struct {
	ParticipantID shared.ParticipantID        `json:"participant_id"`
	DisplayName   string                      `json:"display_name"`
	Number        int                         `json:"number"`
	Records       []*session.SettlementRecord `json:"records"`
}

// GetClassReportResult contains the day's report.
type GetClassReportResult struct {
	ClassID shared.ClassID   `json:"class_id"`
	Date    time.Time        `json:"date"`
	Rows    []ClassReportRow `json:"rows"`
}

// GetClassReportHandler handles the GetClassReportQuery.
type GetClassReportHandler struct {
	directory   classgroup.Directory
	settlements session.SettlementRepository
}

// NewGetClassReportHandler creates a new GetClassReportHandler.
func NewGetClassReportHandler(directory classgroup.Directory, settlements session.SettlementRepository) *GetClassReportHandler {
	return &GetClassReportHandler{directory: directory, settlements: settlements}
}

// Handle executes the query. Participants without records on the day
// still get a row, so the exported sheet shows the full roster.
func (h *GetClassReportHandler) Handle(ctx context.Context, q GetClassReportQuery) (*GetClassReportResult, error) {
	if !q.ClassID.IsValid() {
		return nil, shared.NewDomainError("query", "GetClassReport", shared.ErrInvalidID, "class ID cannot be empty")
	}

	roster, err := h.directory.ListParticipantsForClass(ctx, q.ClassID)
	if err != nil {
		return nil, err
	}

	ids := make([]shared.ParticipantID, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}

	date := timeutil.StartOfDay(q.Date)
	records, err := h.settlements.ListByParticipants(ctx, ids, date)
	if err != nil {
		return nil, err
	}

	byParticipant := make(map[shared.ParticipantID][]*session.SettlementRecord)
	for _, rec := range records {
		byParticipant[rec.ParticipantID] = append(byParticipant[rec.ParticipantID], rec)
	}

	result := &GetClassReportResult{
		ClassID: q.ClassID,
		Date:    date,
		Rows:    make([]ClassReportRow, 0, len(roster)),
	}
	for _, p := range roster {
		result.Rows = append(result.Rows, ClassReportRow{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Number:        p.Number,
			Records:       byParticipant[p.ID],
		})
	}
	return result, nil
}
