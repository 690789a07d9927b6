package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ericfisherdev/casewatch/internal/application"
)

// ConfigurePollRequest is the JSON body of a poll schedule update.
type ConfigurePollRequest struct {
	Days       int      `json:"days"`
	Hours      int      `json:"hours"`
	Minutes    int      `json:"minutes"`
	Recipients []string `json:"recipients"`
}

// GetPollConfig returns the schedule of the workspace for the role.
func (h *Handler) GetPollConfig(w http.ResponseWriter, r *http.Request) {
	workspaceID := principal(r).WorkspaceID
	role := chi.URLParam(r, "role")

	cfg, rec, err := h.polls.GetConfig(r.Context(), workspaceID, role)
	if err != nil {
		writeServiceError(w, h.logger, "failed to get poll config", err)
		return
	}

	writeJSON(w, http.StatusOK, toPollConfigResponse(cfg, rec, h.polls.Scheduled(workspaceID, cfg.Role)))
}

// ConfigurePoll saves the schedule and (re)installs its timer.
func (h *Handler) ConfigurePoll(w http.ResponseWriter, r *http.Request) {
	var req ConfigurePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workspaceID := principal(r).WorkspaceID
	cfg, rec, err := h.polls.Configure(r.Context(), application.ConfigureRequest{
		WorkspaceID: workspaceID,
		Role:        chi.URLParam(r, "role"),
		Days:        req.Days,
		Hours:       req.Hours,
		Minutes:     req.Minutes,
		Recipients:  req.Recipients,
	})
	if err != nil {
		writeServiceError(w, h.logger, "failed to configure polling", err)
		return
	}

	writeJSON(w, http.StatusOK, toPollConfigResponse(cfg, rec, h.polls.Scheduled(workspaceID, cfg.Role)))
}

// StopPoll removes the schedule and its timer.
func (h *Handler) StopPoll(w http.ResponseWriter, r *http.Request) {
	if err := h.polls.Stop(r.Context(), principal(r).WorkspaceID, chi.URLParam(r, "role")); err != nil {
		writeServiceError(w, h.logger, "failed to stop polling", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
