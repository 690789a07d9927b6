package driven

import (
	"context"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// WorkspaceStore defines the driven port for the users and workspaces the
// ledger resolves owners through. Account management itself lives outside
// this service; the create methods exist for provisioning and tests.
type WorkspaceStore interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	CreateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error)
	// GetOwner returns ErrOwnerNotFound if the workspace or its owner is missing.
	GetOwner(ctx context.Context, workspaceID int64) (model.User, error)
}
