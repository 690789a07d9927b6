package driven

import (
	"context"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// CaseDataProvider defines the driven port for the external court case data
// service. Implementations return an error for transport failures, non-success
// responses, malformed bodies, and provider-reported failures.
type CaseDataProvider interface {
	FetchCase(ctx context.Context, id model.CaseIdentifier) (*model.Object, error)
}
