// Package school implements the client for the school information
// service: timetable lookups used to annotate settlement records with
// subject and period, and teacher principal checks.
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the school service client.
type ClientConfig struct {
	// BaseURL is the school service base URL.
	BaseURL string

	// APIKey authenticates this backend to the school service.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// RetryMaxElapsed bounds the retry loop for one logical call.
	RetryMaxElapsed time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:         baseURL,
		Timeout:         10 * time.Second,
		RetryMaxElapsed: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the school service API client.
type Client struct {
	config ClientConfig
	http   *resty.Client
	log    *zap.Logger
}

// NewClient creates a new school service client.
func NewClient(config ClientConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	http := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		http.SetHeader("X-API-Key", config.APIKey)
	}

	return &Client{config: config, http: http, log: log}
}

// TimetableEntry is one scheduled period of a class's day.
type TimetableEntry struct {
	Subject      string `json:"subject"`
	PeriodNumber int    `json:"period_number"`
	StartTime    string `json:"start_time"` // "09:00"
	EndTime      string `json:"end_time"`   // "09:50"
}

type timetableResponse struct {
	Entries []TimetableEntry `json:"entries"`
}

// GetTimetable fetches a class's timetable for one calendar day. Retries
// transient failures with exponential backoff; the context cancels the
// whole loop.
func (c *Client) GetTimetable(ctx context.Context, classID shared.ClassID, date time.Time) ([]TimetableEntry, error) {
	var out timetableResponse

	operation := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("class_id", classID.String()).
			SetQueryParam("date", date.Format("2006-01-02")).
			SetResult(&out).
			Get("/api/v1/timetable")
		if err != nil {
			return err
		}
		if resp.IsError() {
			if resp.StatusCode() >= 500 {
				return fmt.Errorf("school: timetable: status %d", resp.StatusCode())
			}
			// Client errors will not improve with retries.
			return backoff.Permanent(fmt.Errorf("school: timetable: status %d", resp.StatusCode()))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.config.RetryMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, shared.WrapError("school", "GetTimetable", shared.ErrExternalService, "timetable fetch failed", err)
	}

	return out.Entries, nil
}

// CurrentPeriod picks the timetable entry covering the given wall-clock
// time, or nil when nothing is scheduled.
func CurrentPeriod(entries []TimetableEntry, at time.Time) *TimetableEntry {
	clock := at.Format("15:04")
	for i := range entries {
		if entries[i].StartTime <= clock && clock <= entries[i].EndTime {
			return &entries[i]
		}
	}
	return nil
}

type verifyTeacherResponse struct {
	Valid bool `json:"valid"`
}

// VerifyTeacher checks a teacher principal ID against the school roster.
func (c *Client) VerifyTeacher(ctx context.Context, teacherID string) (bool, error) {
	var out verifyTeacherResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/teachers/" + teacherID + "/verify")
	if err != nil {
		return false, shared.WrapError("school", "VerifyTeacher", shared.ErrExternalService, "verify request failed", err)
	}
	if resp.IsError() {
		return false, shared.WrapError("school", "VerifyTeacher", shared.ErrExternalService,
			fmt.Sprintf("status %d", resp.StatusCode()), nil)
	}
	return out.Valid, nil
}
