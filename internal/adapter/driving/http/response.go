package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps an application or store error onto its HTTP status.
// Unexpected errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrInsufficientCredit):
		writeError(w, http.StatusPaymentRequired, "insufficient credit")
	case errors.Is(err, driven.ErrOwnerNotFound):
		writeError(w, http.StatusNotFound, "workspace owner or credit account not found")
	case errors.Is(err, driven.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "case not found")
	case errors.Is(err, driven.ErrPollConfigNotFound):
		writeError(w, http.StatusNotFound, "poll configuration not found")
	case errors.Is(err, driven.ErrExtractionNotFound):
		writeError(w, http.StatusNotFound, "extraction not found")
	case errors.Is(err, driven.ErrCaseAlreadyFollowed):
		writeError(w, http.StatusConflict, "case already followed")
	default:
		logger.Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// DebitResponse reports the balance left after a debit.
type DebitResponse struct {
	AccountID int64 `json:"account_id"`
	OwnerID   int64 `json:"owner_id"`
	Balance   int64 `json:"balance"`
}

// CreditAccountResponse is the JSON representation of a credit account.
type CreditAccountResponse struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	Kind      string `json:"kind"`
	Balance   int64  `json:"balance"`
	UpdatedAt string `json:"updated_at"`
}

// CreditUsageResponse is the JSON representation of a usage ledger row.
type CreditUsageResponse struct {
	ID           int64  `json:"id"`
	ActingUserID int64  `json:"acting_user_id"`
	Amount       int64  `json:"amount"`
	Category     string `json:"category"`
	CreatedAt    string `json:"created_at"`
}

// ExtractionResponse is the JSON representation of a saved extraction.
type ExtractionResponse struct {
	ID          int64           `json:"id"`
	WorkspaceID int64           `json:"workspace_id"`
	FileName    string          `json:"file_name"`
	Data        json.RawMessage `json:"data"`
	UsageTokens int64           `json:"usage_tokens"`
	Agent       string          `json:"agent"`
	CreatedAt   string          `json:"created_at"`
}

// CaseResponse is the JSON representation of a followed case. The stored
// snapshot is not exposed.
type CaseResponse struct {
	ID           int64       `json:"id"`
	WorkspaceID  int64       `json:"workspace_id"`
	Court        string      `json:"court"`
	CNR          string      `json:"cnr,omitempty"`
	FilingNumber string      `json:"filing_number,omitempty"`
	DiaryNumber  string      `json:"diary_number,omitempty"`
	CaseYear     string      `json:"case_year,omitempty"`
	BenchID      string      `json:"bench_id,omitempty"`
	CaseData     model.Value `json:"case_data"`
	Polled       bool        `json:"polled"`
	FollowedAt   string      `json:"followed_at"`
}

// PollConfigResponse is the JSON representation of a poll schedule.
type PollConfigResponse struct {
	WorkspaceID int64    `json:"workspace_id"`
	Role        string   `json:"role"`
	Days        int      `json:"days"`
	Hours       int      `json:"hours"`
	Minutes     int      `json:"minutes"`
	Recipients  []string `json:"recipients"`
	Every       int      `json:"every"`
	Unit        string   `json:"unit"`
	Cron        string   `json:"cron"`
	Scheduled   bool     `json:"scheduled"`
	UpdatedAt   string   `json:"updated_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toCreditAccountResponse(a model.CreditAccount) CreditAccountResponse {
	return CreditAccountResponse{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Kind:      string(a.Kind),
		Balance:   a.Balance,
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func toCreditUsageResponse(u model.CreditUsage) CreditUsageResponse {
	return CreditUsageResponse{
		ID:           u.ID,
		ActingUserID: u.ActingUserID,
		Amount:       u.Amount,
		Category:     u.Category,
		CreatedAt:    formatTime(u.CreatedAt),
	}
}

func toExtractionResponse(d model.ExtractedDocument) ExtractionResponse {
	data := d.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return ExtractionResponse{
		ID:          d.ID,
		WorkspaceID: d.WorkspaceID,
		FileName:    d.FileName,
		Data:        data,
		UsageTokens: d.UsageTokens,
		Agent:       d.Agent,
		CreatedAt:   formatTime(d.CreatedAt),
	}
}

func toCaseResponse(c model.FollowedCase) CaseResponse {
	caseData := c.CaseData
	if caseData == nil {
		caseData = model.Null{}
	}
	return CaseResponse{
		ID:           c.ID,
		WorkspaceID:  c.WorkspaceID,
		Court:        c.Court,
		CNR:          c.CNR,
		FilingNumber: c.FilingNumber,
		DiaryNumber:  c.DiaryNumber,
		CaseYear:     c.CaseYear,
		BenchID:      c.BenchID,
		CaseData:     caseData,
		Polled:       len(c.Snapshot) > 0,
		FollowedAt:   formatTime(c.FollowedAt),
	}
}

func toPollConfigResponse(cfg model.PollConfig, rec application.Recurrence, scheduled bool) PollConfigResponse {
	recipients := cfg.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return PollConfigResponse{
		WorkspaceID: cfg.WorkspaceID,
		Role:        cfg.Role,
		Days:        cfg.Days,
		Hours:       cfg.Hours,
		Minutes:     cfg.Minutes,
		Recipients:  recipients,
		Every:       rec.Every,
		Unit:        string(rec.Unit),
		Cron:        rec.Expr,
		Scheduled:   scheduled,
		UpdatedAt:   formatTime(cfg.UpdatedAt),
	}
}
