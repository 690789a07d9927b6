package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// SaveExtractionsRequest is the JSON body of a batch extraction save.
type SaveExtractionsRequest struct {
	Agent string                  `json:"agent"`
	Items []ExtractionItemRequest `json:"items"`
}

// ExtractionItemRequest is one extracted file in a batch.
type ExtractionItemRequest struct {
	FileName     string          `json:"file_name"`
	Data         json.RawMessage `json:"data"`
	OutputTokens int64           `json:"output_tokens"`
	RawResponse  string          `json:"raw_response"`
}

// SaveExtractions stores a batch of extraction results, charging extraction
// credit per item. Items saved before a failure stay saved and are returned.
func (h *Handler) SaveExtractions(w http.ResponseWriter, r *http.Request) {
	var req SaveExtractionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := principal(r)
	items := make([]application.ExtractionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.ExtractionItem{
			FileName:     it.FileName,
			Data:         it.Data,
			OutputTokens: it.OutputTokens,
			RawResponse:  it.RawResponse,
		})
	}

	docs, err := h.extractions.SaveExtractions(r.Context(), application.SaveExtractionsRequest{
		WorkspaceID:  p.WorkspaceID,
		ActingUserID: p.UserID,
		Agent:        req.Agent,
		Items:        items,
	})
	if err != nil {
		if len(docs) > 0 {
			h.logger.Warn("extraction batch partially saved", zap.Int("saved", len(docs)), zap.Int("requested", len(items)))
		}
		writeServiceError(w, h.logger, "failed to save extractions", err)
		return
	}

	resp := make([]ExtractionResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toExtractionResponse(d))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetExtraction returns one extraction of the caller's workspace.
func (h *Handler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid extraction id")
		return
	}

	doc, err := h.extractions.GetExtraction(r.Context(), id)
	if err == nil && doc.WorkspaceID != principal(r).WorkspaceID {
		err = driven.ErrExtractionNotFound
	}
	if err != nil {
		if errors.Is(err, driven.ErrExtractionNotFound) {
			writeError(w, http.StatusNotFound, "extraction not found")
			return
		}
		writeServiceError(w, h.logger, "failed to get extraction", err)
		return
	}

	writeJSON(w, http.StatusOK, toExtractionResponse(doc))
}

// ListExtractions returns the workspace's extractions, newest first.
func (h *Handler) ListExtractions(w http.ResponseWriter, r *http.Request) {
	docs, err := h.extractions.ListExtractions(r.Context(), principal(r).WorkspaceID)
	if err != nil {
		writeServiceError(w, h.logger, "failed to list extractions", err)
		return
	}

	resp := make([]ExtractionResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toExtractionResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}
