package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WorkspaceStore = (*WorkspaceRepo)(nil)

// WorkspaceRepo is the SQLite implementation of the WorkspaceStore port interface.
type WorkspaceRepo struct {
	db *DB
}

// NewWorkspaceRepo creates a new WorkspaceRepo backed by the given DB.
func NewWorkspaceRepo(db *DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

// CreateUser inserts a user and returns it with its assigned ID.
func (r *WorkspaceRepo) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	const query = `INSERT INTO users (name, email) VALUES (?, ?) RETURNING id`

	if err := r.db.Writer.QueryRowContext(ctx, query, user.Name, user.Email).Scan(&user.ID); err != nil {
		return model.User{}, fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return user, nil
}

// CreateWorkspace inserts a workspace owned by ws.OwnerID.
func (r *WorkspaceRepo) CreateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error) {
	const query = `INSERT INTO workspaces (name, owner_id) VALUES (?, ?) RETURNING id`

	if err := r.db.Writer.QueryRowContext(ctx, query, ws.Name, ws.OwnerID).Scan(&ws.ID); err != nil {
		if isForeignKeyViolation(err) {
			return model.Workspace{}, fmt.Errorf("create workspace %q: %w", ws.Name, driven.ErrOwnerNotFound)
		}
		return model.Workspace{}, fmt.Errorf("create workspace %q: %w", ws.Name, err)
	}
	return ws, nil
}

// GetOwner resolves the owner of a workspace.
func (r *WorkspaceRepo) GetOwner(ctx context.Context, workspaceID int64) (model.User, error) {
	const query = `
		SELECT u.id, u.name, u.email
		FROM workspaces w
		JOIN users u ON u.id = w.owner_id
		WHERE w.id = ?
	`

	var owner model.User
	err := r.db.Reader.QueryRowContext(ctx, query, workspaceID).Scan(&owner.ID, &owner.Name, &owner.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("workspace %d: %w", workspaceID, driven.ErrOwnerNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get owner of workspace %d: %w", workspaceID, err)
	}
	return owner, nil
}
