package sqlite

import (
	"context"
	"testing"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRepo_GetOwner(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := NewWorkspaceRepo(db)

	got, err := repo.GetOwner(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestWorkspaceRepo_GetOwner_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWorkspaceRepo(db)

	_, err := repo.GetOwner(context.Background(), 99)
	require.ErrorIs(t, err, driven.ErrOwnerNotFound)
}

func TestWorkspaceRepo_CreateWorkspace_UnknownOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWorkspaceRepo(db)

	_, err := repo.CreateWorkspace(context.Background(), model.Workspace{Name: "orphan", OwnerID: 12})
	require.ErrorIs(t, err, driven.ErrOwnerNotFound)
}

func TestWorkspaceRepo_CreateUser_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWorkspaceRepo(db)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, model.User{Name: "A", Email: "same@example.com"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, model.User{Name: "B", Email: "same@example.com"})
	require.Error(t, err)
}
