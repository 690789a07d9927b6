package httphandler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

const maxFollowBodyBytes = 1 << 20

// FollowCaseRequest is the JSON body of a follow request. CaseData is the case
// record as shown to the user; the whole body is kept as the audit payload.
type FollowCaseRequest struct {
	Court       string          `json:"court"`
	CaseID      string          `json:"caseId"`
	CNR         string          `json:"cnr"`
	DiaryNumber string          `json:"diaryNumber"`
	CaseYear    string          `json:"caseYear"`
	BenchID     string          `json:"benchId"`
	CaseData    json.RawMessage `json:"caseData"`
}

// FollowCase starts tracking a case for the workspace.
func (h *Handler) FollowCase(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFollowBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var req FollowCaseRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload, err := model.ParseValue(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var caseData model.Value
	if len(req.CaseData) > 0 {
		if caseData, err = model.ParseValue(req.CaseData); err != nil {
			writeError(w, http.StatusBadRequest, "invalid caseData")
			return
		}
	}

	saved, err := h.cases.Follow(r.Context(), application.FollowRequest{
		WorkspaceID: principal(r).WorkspaceID,
		Court:       req.Court,
		CaseID:      req.CaseID,
		CNR:         req.CNR,
		DiaryNumber: req.DiaryNumber,
		CaseYear:    req.CaseYear,
		BenchID:     req.BenchID,
		CaseData:    caseData,
		Payload:     payload,
	})
	if err != nil {
		writeServiceError(w, h.logger, "failed to follow case", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCaseResponse(saved))
}

// UnfollowCase stops tracking a case. The court, caseId, and (for CAT) benchId
// query parameters identify it.
func (h *Handler) UnfollowCase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	court := q.Get("court")
	if court == "" {
		writeError(w, http.StatusBadRequest, "court is required")
		return
	}

	err := h.cases.Unfollow(r.Context(), principal(r).WorkspaceID, court, q.Get("caseId"), q.Get("benchId"))
	if err != nil {
		writeServiceError(w, h.logger, "failed to unfollow case", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCases returns the workspace's followed cases, optionally filtered by the
// court query parameter.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.cases.List(r.Context(), principal(r).WorkspaceID, r.URL.Query().Get("court"))
	if err != nil {
		writeServiceError(w, h.logger, "failed to list cases", err)
		return
	}

	resp := make([]CaseResponse, 0, len(cases))
	for _, c := range cases {
		resp = append(resp, toCaseResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
