package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTLE SESSION COMMAND
// Runs when a class meeting ends: reduces each roster participant's
// unsettled event stream to a focus rate, persists the settlement records
// and event links atomically, and feeds the focus rates into the XP ledger.
// ══════════════════════════════════════════════════════════════════════════════

// XPReasonSettlement is the audit reason written for settlement awards.
const XPReasonSettlement = "focus settlement"

// SettleSessionCommand contains the parameters of one settlement run.
type SettleSessionCommand struct {
	// SessionID is the session being settled.
	SessionID shared.SessionID

	// Window is the meeting's time span, supplied by the caller.
	Window session.Window

	// Subject and PeriodNumber annotate the resulting records.
	Subject      string
	PeriodNumber int
}

// ParticipantOutcome is one participant's settled result.
type ParticipantOutcome struct {
	ParticipantID    shared.ParticipantID
	RecordID         string
	FocusRatePercent int
	OutOfSeatCount   int
	EventsConsumed   int
	XPAwarded        int
}

// SettleSessionResult describes a completed settlement run.
type SettleSessionResult struct {
	SessionID shared.SessionID
	Outcomes  []ParticipantOutcome
	SettledAt time.Time
}

// SettleSessionHandler handles the SettleSessionCommand. At most one run
// per session is in flight at a time; concurrent attempts fail fast with
// ErrSettlementInProgress instead of queueing.
type SettleSessionHandler struct {
	directory   classgroup.Directory
	events      monitoring.EventLogRepository
	settlements session.SettlementRepository
	ledger      XPAwarder
	log         *zap.Logger

	mu       sync.Mutex
	inFlight map[shared.SessionID]struct{}

	now func() time.Time
}

// NewSettleSessionHandler creates a new SettleSessionHandler.
func NewSettleSessionHandler(
	directory classgroup.Directory,
	events monitoring.EventLogRepository,
	settlements session.SettlementRepository,
	ledger XPAwarder,
	log *zap.Logger,
) *SettleSessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettleSessionHandler{
		directory:   directory,
		events:      events,
		settlements: settlements,
		ledger:      ledger,
		log:         log,
		inFlight:    make(map[shared.SessionID]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the settlement clock. Test hook.
func (h *SettleSessionHandler) WithClock(now func() time.Time) *SettleSessionHandler {
	h.now = now
	return h
}

// Handle executes the settlement run.
func (h *SettleSessionHandler) Handle(ctx context.Context, cmd SettleSessionCommand) (*SettleSessionResult, error) {
	if !cmd.SessionID.IsValid() {
		return nil, shared.NewDomainError("command", "SettleSession", shared.ErrInvalidID, "session ID cannot be empty")
	}
	if cmd.Window.End.Before(cmd.Window.Start) {
		return nil, session.ErrInvalidWindow
	}

	if err := h.acquire(cmd.SessionID); err != nil {
		return nil, err
	}
	defer h.release(cmd.SessionID)

	info, err := h.directory.ResolveSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	roster, err := h.directory.ListParticipantsForClass(ctx, info.ClassID)
	if err != nil {
		return nil, err
	}

	participantIDs := make([]shared.ParticipantID, len(roster))
	for i, p := range roster {
		participantIDs[i] = p.ID
	}

	unsettled, err := h.events.FindUnsettled(ctx, participantIDs)
	if err != nil {
		return nil, err
	}

	now := h.now()

	// Nothing unsettled means the window was already settled (or nothing
	// happened in it). Returning an empty run keeps retries idempotent:
	// no duplicate records, no repeated awards.
	if len(roster) == 0 || len(unsettled) == 0 {
		h.log.Info("nothing to settle",
			logger.SessionID(cmd.SessionID.String()),
			zap.Int("participants", len(roster)),
		)
		return &SettleSessionResult{
			SessionID: cmd.SessionID,
			Outcomes:  []ParticipantOutcome{},
			SettledAt: now,
		}, nil
	}

	byParticipant := make(map[shared.ParticipantID][]*monitoring.AttentionEvent)
	for _, e := range unsettled {
		byParticipant[e.ParticipantID] = append(byParticipant[e.ParticipantID], e)
	}

	records := make([]*session.SettlementRecord, 0, len(roster))
	consumed := make(map[string][]string, len(roster))
	outcomes := make([]ParticipantOutcome, 0, len(roster))

	// Every roster participant gets a record: no events means no observed
	// loss, which settles as a full focus rate.
	for _, p := range roster {
		events := byParticipant[p.ID]
		out := session.Reduce(events, cmd.Window)

		rec := session.NewSettlementRecord(
			uuid.NewString(), p.ID, cmd.Window, cmd.Subject, cmd.PeriodNumber, out, now)
		records = append(records, rec)

		eventIDs := make([]string, len(events))
		for i, e := range events {
			eventIDs[i] = e.ID
		}
		consumed[rec.ID] = eventIDs

		outcomes = append(outcomes, ParticipantOutcome{
			ParticipantID:    p.ID,
			RecordID:         rec.ID,
			FocusRatePercent: out.FocusRatePercent,
			OutOfSeatCount:   out.OutOfSeatCount,
			EventsConsumed:   len(events),
		})
	}

	if err := h.settlements.SettleBatch(ctx, records, consumed); err != nil {
		return nil, err
	}

	// XP awards run after the settlement commit. A failed award does not
	// undo the run; it is logged and the remaining participants still get
	// theirs.
	for i := range outcomes {
		_, err := h.ledger.Handle(ctx, AwardXPCommand{
			ParticipantID: outcomes[i].ParticipantID,
			Amount:        student.XP(outcomes[i].FocusRatePercent),
			Reason:        XPReasonSettlement,
		})
		if err != nil {
			h.log.Error("settlement xp award failed",
				logger.SessionID(cmd.SessionID.String()),
				logger.ParticipantID(outcomes[i].ParticipantID.String()),
				zap.Error(err),
			)
			continue
		}
		outcomes[i].XPAwarded = outcomes[i].FocusRatePercent
	}

	h.log.Info("session settled",
		logger.SessionID(cmd.SessionID.String()),
		logger.Window(cmd.Window.Start, cmd.Window.End),
		zap.Int("participants", len(roster)),
		zap.Int("events_consumed", len(unsettled)),
	)

	return &SettleSessionResult{
		SessionID: cmd.SessionID,
		Outcomes:  outcomes,
		SettledAt: now,
	}, nil
}

func (h *SettleSessionHandler) acquire(id shared.SessionID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inFlight[id]; busy {
		return session.ErrSettlementInProgress
	}
	h.inFlight[id] = struct{}{}
	return nil
}

func (h *SettleSessionHandler) release(id shared.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inFlight, id)
}
