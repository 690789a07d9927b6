package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"go.uber.org/zap"
)

// ExtractionItem is one AI extraction result to be stored and charged.
type ExtractionItem struct {
	FileName     string
	Data         json.RawMessage
	OutputTokens int64
	RawResponse  string
}

// SaveExtractionsRequest carries a batch of extraction results for one workspace.
type SaveExtractionsRequest struct {
	WorkspaceID  int64
	ActingUserID int64
	Agent        string
	Items        []ExtractionItem
}

// ExtractionService stores extraction results, charging extraction credits
// per item.
type ExtractionService struct {
	store  driven.ExtractionStore
	logger *zap.Logger
}

// NewExtractionService creates an ExtractionService.
func NewExtractionService(store driven.ExtractionStore, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{store: store, logger: logger}
}

// SaveExtractions saves items in order. Each item is charged its output
// token count and stored in one transaction. The batch stops at the first
// item the owner cannot pay for; items saved before it stay saved and are
// returned with the error.
func (s *ExtractionService) SaveExtractions(ctx context.Context, req SaveExtractionsRequest) ([]model.ExtractedDocument, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no extraction items", ErrValidation)
	}
	for i, item := range req.Items {
		if item.FileName == "" {
			return nil, fmt.Errorf("%w: item %d has no file name", ErrValidation, i)
		}
		if item.OutputTokens < 0 {
			return nil, fmt.Errorf("%w: item %d has negative output tokens", ErrValidation, i)
		}
		if len(item.Data) > 0 && !json.Valid(item.Data) {
			return nil, fmt.Errorf("%w: item %d data is not valid JSON", ErrValidation, i)
		}
	}

	saved := make([]model.ExtractedDocument, 0, len(req.Items))
	for _, item := range req.Items {
		amount := item.OutputTokens
		if amount == 0 {
			amount = 1
		}

		doc, result, err := s.store.SaveCharged(ctx, model.ExtractedDocument{
			WorkspaceID: req.WorkspaceID,
			FileName:    item.FileName,
			Data:        item.Data,
			UsageTokens: item.OutputTokens,
			RawResponse: item.RawResponse,
			Agent:       req.Agent,
		}, model.DebitRequest{
			WorkspaceID:  req.WorkspaceID,
			ActingUserID: req.ActingUserID,
			Kind:         model.CreditExtraction,
			Amount:       amount,
			Category:     model.UsageSmartExtraction,
		})
		if err != nil {
			if errors.Is(err, driven.ErrInsufficientCredit) {
				s.logger.Warn("extraction batch stopped on insufficient credit",
					zap.Int64("workspace_id", req.WorkspaceID),
					zap.Int("saved", len(saved)),
					zap.Int("requested", len(req.Items)),
				)
			}
			return saved, fmt.Errorf("save extraction %q (%d of %d saved): %w", item.FileName, len(saved), len(req.Items), err)
		}

		s.logger.Debug("extraction saved",
			zap.Int64("workspace_id", req.WorkspaceID),
			zap.Int64("document_id", doc.ID),
			zap.Int64("balance", result.Balance),
		)
		saved = append(saved, doc)
	}

	return saved, nil
}

// ListExtractions returns the workspace's extracted documents, newest first.
func (s *ExtractionService) ListExtractions(ctx context.Context, workspaceID int64) ([]model.ExtractedDocument, error) {
	return s.store.ListByWorkspace(ctx, workspaceID)
}

// GetExtraction returns one extracted document.
func (s *ExtractionService) GetExtraction(ctx context.Context, id int64) (model.ExtractedDocument, error) {
	return s.store.GetByID(ctx, id)
}
