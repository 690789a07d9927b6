package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// ErrExtractionNotFound indicates the requested extracted document does not exist.
var ErrExtractionNotFound = errors.New("extraction not found")

// ExtractionStore defines the driven port for extracted document persistence.
type ExtractionStore interface {
	// SaveCharged stores doc and debits the ledger in one transaction. On
	// ErrInsufficientCredit or ErrOwnerNotFound nothing is stored.
	SaveCharged(ctx context.Context, doc model.ExtractedDocument, debit model.DebitRequest) (model.ExtractedDocument, model.DebitResult, error)
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.ExtractedDocument, error)
	// GetByID returns ErrExtractionNotFound if the document does not exist.
	GetByID(ctx context.Context, id int64) (model.ExtractedDocument, error)
}
