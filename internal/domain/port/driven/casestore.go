package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// Sentinel errors returned by CaseStore implementations.
var (
	// ErrCaseAlreadyFollowed indicates the workspace already follows a case with
	// the same natural identifier in the same court.
	ErrCaseAlreadyFollowed = errors.New("case already followed")

	// ErrCaseNotFound indicates the requested followed case does not exist.
	ErrCaseNotFound = errors.New("followed case not found")
)

// CaseStore defines the driven port for followed case persistence.
type CaseStore interface {
	// Add returns ErrCaseAlreadyFollowed on a duplicate natural key.
	Add(ctx context.Context, fc model.FollowedCase) (model.FollowedCase, error)
	// Remove deletes by natural key. Returns ErrCaseNotFound if nothing matched.
	Remove(ctx context.Context, workspaceID int64, court, caseKey string) error
	// RemoveByID deletes the workspace's case with the given row id. Returns
	// ErrCaseNotFound if nothing matched.
	RemoveByID(ctx context.Context, workspaceID, caseID int64) error
	// ListByWorkspace returns cases newest first. An empty court matches all courts.
	ListByWorkspace(ctx context.Context, workspaceID int64, court string) ([]model.FollowedCase, error)
	UpdateSnapshot(ctx context.Context, caseID int64, snapshot []byte) error
	ClearSnapshot(ctx context.Context, caseID int64) error
}
