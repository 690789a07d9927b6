package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// ErrPollConfigNotFound indicates no schedule exists for the (workspace, role) key.
var ErrPollConfigNotFound = errors.New("poll config not found")

// PollConfigStore defines the driven port for polling schedule persistence.
// There is at most one config per (workspace, role).
type PollConfigStore interface {
	Upsert(ctx context.Context, cfg model.PollConfig) (model.PollConfig, error)
	// Get returns (nil, nil) if no config exists for the key.
	Get(ctx context.Context, workspaceID int64, role string) (*model.PollConfig, error)
	// Delete returns ErrPollConfigNotFound if no config existed.
	Delete(ctx context.Context, workspaceID int64, role string) error
	ListAll(ctx context.Context) ([]model.PollConfig, error)
}
