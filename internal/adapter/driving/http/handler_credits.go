package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// DebitExtractionRequest is the JSON body of an extraction credit debit.
type DebitExtractionRequest struct {
	Amount   int64  `json:"amount"`
	Category string `json:"category"`
}

// ProvisionWorkspaceRequest is the JSON body of an admin workspace creation.
type ProvisionWorkspaceRequest struct {
	OwnerName     string `json:"owner_name"`
	OwnerEmail    string `json:"owner_email"`
	WorkspaceName string `json:"workspace_name"`
}

// ProvisionWorkspaceResponse carries the new owner, workspace, and a bearer
// token for the owner.
type ProvisionWorkspaceResponse struct {
	OwnerID     int64  `json:"owner_id"`
	WorkspaceID int64  `json:"workspace_id"`
	Token       string `json:"token"`
}

// provisionTokenTTL is the lifetime of the token handed out on provisioning.
const provisionTokenTTL = 30 * 24 * time.Hour

// AwardCreditRequest is the JSON body of an admin balance update.
type AwardCreditRequest struct {
	OwnerID int64 `json:"owner_id"`
	Balance int64 `json:"balance"`
}

// DebitResearch charges one research credit to the caller's workspace owner.
func (h *Handler) DebitResearch(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	result, err := h.credits.DebitResearch(r.Context(), p.WorkspaceID, p.UserID)
	if err != nil {
		writeServiceError(w, h.logger, "failed to debit research credit", err)
		return
	}

	writeJSON(w, http.StatusOK, DebitResponse{
		AccountID: result.AccountID,
		OwnerID:   result.Owner.ID,
		Balance:   result.Balance,
	})
}

// DebitExtraction charges extraction credit to the caller's workspace owner.
// An empty body debits the default single credit.
func (h *Handler) DebitExtraction(w http.ResponseWriter, r *http.Request) {
	var req DebitExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := principal(r)
	result, err := h.credits.DebitExtraction(r.Context(), p.WorkspaceID, p.UserID, req.Amount, req.Category)
	if err != nil {
		writeServiceError(w, h.logger, "failed to debit extraction credit", err)
		return
	}

	writeJSON(w, http.StatusOK, DebitResponse{
		AccountID: result.AccountID,
		OwnerID:   result.Owner.ID,
		Balance:   result.Balance,
	})
}

// GetBalance returns the caller's workspace owner account of the given kind.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	kind, ok := creditKindParam(w, r)
	if !ok {
		return
	}

	account, err := h.credits.Balance(r.Context(), principal(r).WorkspaceID, kind)
	if err != nil {
		writeServiceError(w, h.logger, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toCreditAccountResponse(account))
}

// ListUsage returns the most recent usage rows of the caller's workspace
// owner account. The optional limit query parameter caps the result.
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	kind, ok := creditKindParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	account, err := h.credits.Balance(r.Context(), principal(r).WorkspaceID, kind)
	if err != nil {
		writeServiceError(w, h.logger, "failed to resolve credit account", err)
		return
	}

	usage, err := h.credits.Usage(r.Context(), account.OwnerID, kind, limit)
	if err != nil {
		writeServiceError(w, h.logger, "failed to list credit usage", err)
		return
	}

	resp := make([]CreditUsageResponse, 0, len(usage))
	for _, u := range usage {
		resp = append(resp, toCreditUsageResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AwardCredit sets an owner's balance of the given kind.
func (h *Handler) AwardCredit(w http.ResponseWriter, r *http.Request) {
	kind, ok := creditKindParam(w, r)
	if !ok {
		return
	}

	var req AwardCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID <= 0 {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	account, err := h.credits.Award(r.Context(), req.OwnerID, kind, req.Balance)
	if err != nil {
		writeServiceError(w, h.logger, "failed to award credit", err)
		return
	}

	h.logger.Info("credit awarded",
		zap.Int64("owner_id", account.OwnerID),
		zap.String("kind", string(account.Kind)),
		zap.Int64("balance", account.Balance),
	)
	writeJSON(w, http.StatusOK, toCreditAccountResponse(account))
}

// ProvisionWorkspace creates an owner and workspace with opened credit
// accounts, returning a token the owner can authenticate with.
func (h *Handler) ProvisionWorkspace(w http.ResponseWriter, r *http.Request) {
	var req ProvisionWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, ws, err := h.credits.ProvisionWorkspace(r.Context(), req.OwnerName, req.OwnerEmail, req.WorkspaceName)
	if err != nil {
		writeServiceError(w, h.logger, "failed to provision workspace", err)
		return
	}

	token, err := h.auth.IssueToken(owner.ID, ws.ID, provisionTokenTTL)
	if err != nil {
		writeServiceError(w, h.logger, "failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusCreated, ProvisionWorkspaceResponse{
		OwnerID:     owner.ID,
		WorkspaceID: ws.ID,
		Token:       token,
	})
}

func creditKindParam(w http.ResponseWriter, r *http.Request) (model.CreditKind, bool) {
	kind := model.CreditKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown credit kind")
		return "", false
	}
	return kind, true
}
