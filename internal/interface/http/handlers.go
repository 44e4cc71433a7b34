package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/application/command"
	"github.com/classpulse/classpulse-backend/internal/application/query"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/external/school"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/metrics"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/report"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.deps.PingStorage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.PingStorage(ctx); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["storage"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

type createClassRequest struct {
	Grade    int `json:"grade"`
	ClassNum int `json:"class_num"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	teacherID := principalFrom(r.Context())
	if s.deps.School != nil && teacherID != "" {
		valid, err := s.deps.School.VerifyTeacher(r.Context(), teacherID)
		if err != nil {
			s.log.Warn("teacher verification unavailable", zap.Error(err))
		} else if !valid {
			writeError(w, http.StatusForbidden, "unknown_teacher", "teacher is not on the school roster")
			return
		}
	}

	c, err := s.deps.CreateClass.Handle(r.Context(), command.CreateClassCommand{
		TeacherID: teacherID,
		Grade:     req.Grade,
		ClassNum:  req.ClassNum,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type joinClassRequest struct {
	InviteCode  string `json:"invite_code"`
	DisplayName string `json:"display_name"`
	Number      int    `json:"number"`
}

func (s *Server) handleJoinClass(w http.ResponseWriter, r *http.Request) {
	var req joinClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	p, err := s.deps.JoinClass.Handle(r.Context(), command.JoinClassCommand{
		InviteCode:  req.InviteCode,
		DisplayName: req.DisplayName,
		Number:      req.Number,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type setModesRequest struct {
	AllowDigitalMode bool `json:"allow_digital_mode"`
	AllowNormalMode  bool `json:"allow_normal_mode"`
	AllowThemeChange bool `json:"allow_theme_change"`
}

func (s *Server) handleSetClassModes(w http.ResponseWriter, r *http.Request) {
	var req setModesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	c, err := s.deps.SetClassModes.Handle(r.Context(), command.SetClassModesCommand{
		ClassID:          shared.ClassID(mux.Vars(r)["id"]),
		AllowDigitalMode: req.AllowDigitalMode,
		AllowNormalMode:  req.AllowNormalMode,
		AllowThemeChange: req.AllowThemeChange,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClassReport(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	result, err := s.deps.GetClassReport.Handle(r.Context(), query.GetClassReportQuery{
		ClassID: shared.ClassID(mux.Vars(r)["id"]),
		Date:    date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		filename := fmt.Sprintf("focus-report-%s.xlsx", date.Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		if err := report.WriteClassReport(w, result); err != nil {
			s.log.Error("report export failed", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

type ingestEventRequest struct {
	ParticipantID string    `json:"participant_id"`
	Type          string    `json:"type"`
	DetectedAt    time.Time `json:"detected_at"`
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	result, err := s.deps.IngestEvent.Handle(r.Context(), command.IngestEventCommand{
		SessionID:     shared.SessionID(mux.Vars(r)["id"]),
		ParticipantID: shared.ParticipantID(req.ParticipantID),
		Type:          monitoring.EventType(req.Type),
		DetectedAt:    req.DetectedAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.deps.Metrics.ObserveIngest(req.Type, result.BroadcastOK)
	writeJSON(w, http.StatusAccepted, result)
}

type settleSessionRequest struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Subject      string    `json:"subject"`
	PeriodNumber int       `json:"period_number"`
}

func (s *Server) handleSettleSession(w http.ResponseWriter, r *http.Request) {
	var req settleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	window, err := session.NewWindow(req.Start, req.End)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Session IDs are class group IDs, so the timetable lookup keys on the
	// same value. Missing annotations are filled from the schedule when the
	// school service is configured.
	if s.deps.School != nil && req.Subject == "" {
		entries, err := s.deps.School.GetTimetable(r.Context(), shared.ClassID(mux.Vars(r)["id"]), req.Start)
		if err != nil {
			s.log.Warn("timetable lookup failed", zap.Error(err))
		} else if cur := school.CurrentPeriod(entries, req.Start); cur != nil {
			req.Subject = cur.Subject
			req.PeriodNumber = cur.PeriodNumber
		}
	}

	started := time.Now()
	result, err := s.deps.SettleSession.Handle(r.Context(), command.SettleSessionCommand{
		SessionID:    shared.SessionID(mux.Vars(r)["id"]),
		Window:       window,
		Subject:      req.Subject,
		PeriodNumber: req.PeriodNumber,
	})
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, session.ErrSettlementInProgress) {
			outcome = metrics.OutcomeConflict
		}
		s.deps.Metrics.ObserveSettlementRun(outcome, time.Since(started))
		writeDomainError(w, err)
		return
	}

	s.deps.Metrics.ObserveSettlementRun(metrics.OutcomeOK, time.Since(started))
	for _, o := range result.Outcomes {
		s.deps.Metrics.ObserveFocusRate(o.FocusRatePercent)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetPresence.Handle(r.Context(), query.GetPresenceQuery{
		SessionID: shared.SessionID(mux.Vars(r)["id"]),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	period := query.StatisticsPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = query.PeriodDaily
	}

	var reference time.Time
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		reference = parsed
	}

	result, err := s.deps.GetStatistics.Handle(r.Context(), query.GetStatisticsQuery{
		ParticipantID: shared.ParticipantID(mux.Vars(r)["id"]),
		Period:        period,
		Reference:     reference,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetXP(w http.ResponseWriter, r *http.Request) {
	q := query.GetXPQuery{ParticipantID: shared.ParticipantID(mux.Vars(r)["id"])}

	if d := r.URL.Query().Get("from"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		q.From = parsed
	}
	if d := r.URL.Query().Get("to"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return
		}
		q.To = parsed.AddDate(0, 0, 1)
	}

	result, err := s.deps.GetXP.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type awardXPRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardXPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	result, err := s.deps.AwardXP.Handle(r.Context(), command.AwardXPCommand{
		ParticipantID: shared.ParticipantID(mux.Vars(r)["id"]),
		Amount:        student.XP(req.Amount),
		Reason:        req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetThemes(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetThemes.Handle(r.Context(), query.GetThemesQuery{
		ParticipantID: shared.ParticipantID(mux.Vars(r)["id"]),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
