package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestAccounts(t *testing.T, db *DB, ownerID, research, extraction int64) *CreditRepo {
	t.Helper()
	repo := NewCreditRepo(db)
	err := repo.OpenAccounts(context.Background(), ownerID, map[model.CreditKind]int64{
		model.CreditResearch:   research,
		model.CreditExtraction: extraction,
	})
	require.NoError(t, err)
	return repo
}

func TestCreditRepo_OpenAccounts_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	owner, _ := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 100, 20)
	ctx := context.Background()

	// Re-opening must not reset an existing balance.
	err := repo.OpenAccounts(ctx, owner.ID, map[model.CreditKind]int64{model.CreditResearch: 999})
	require.NoError(t, err)

	research, err := repo.GetAccount(ctx, owner.ID, model.CreditResearch)
	require.NoError(t, err)
	require.NotNil(t, research)
	assert.Equal(t, int64(100), research.Balance)

	extraction, err := repo.GetAccount(ctx, owner.ID, model.CreditExtraction)
	require.NoError(t, err)
	require.NotNil(t, extraction)
	assert.Equal(t, int64(20), extraction.Balance)
}

func TestCreditRepo_OpenAccounts_UnknownOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepo(db)

	err := repo.OpenAccounts(context.Background(), 4242, map[model.CreditKind]int64{model.CreditResearch: 1})
	require.ErrorIs(t, err, driven.ErrOwnerNotFound)
}

func TestCreditRepo_Debit(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 10)
	ctx := context.Background()

	member, err := NewWorkspaceRepo(db).CreateUser(ctx, model.User{Name: "Member", Email: "member@example.com"})
	require.NoError(t, err)

	result, err := repo.Debit(ctx, model.DebitRequest{
		WorkspaceID:  ws.ID,
		ActingUserID: member.ID,
		Kind:         model.CreditResearch,
		Amount:       3,
		Category:     model.UsageResearch,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Balance)
	assert.Equal(t, owner.ID, result.Owner.ID)
	assert.Equal(t, owner.Email, result.Owner.Email)

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditResearch, 10)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, result.AccountID, usage[0].AccountID)
	assert.Equal(t, member.ID, usage[0].ActingUserID)
	assert.Equal(t, int64(3), usage[0].Amount)
	assert.Equal(t, model.UsageResearch, usage[0].Category)

	// The other pool is untouched.
	extraction, err := repo.GetAccount(ctx, owner.ID, model.CreditExtraction)
	require.NoError(t, err)
	assert.Equal(t, int64(10), extraction.Balance)
}

func TestCreditRepo_Debit_DefaultsActingUserToOwner(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 10)
	ctx := context.Background()

	_, err := repo.Debit(ctx, model.DebitRequest{
		WorkspaceID: ws.ID,
		Kind:        model.CreditResearch,
		Amount:      1,
		Category:    model.UsageCaseTracking,
	})
	require.NoError(t, err)

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditResearch, 0)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, owner.ID, usage[0].ActingUserID)
	assert.Equal(t, model.UsageCaseTracking, usage[0].Category)
}

func TestCreditRepo_Debit_InsufficientLeavesStateUntouched(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 2, 0)
	ctx := context.Background()

	_, err := repo.Debit(ctx, model.DebitRequest{
		WorkspaceID: ws.ID,
		Kind:        model.CreditResearch,
		Amount:      3,
		Category:    model.UsageResearch,
	})
	require.ErrorIs(t, err, driven.ErrInsufficientCredit)

	account, err := repo.GetAccount(ctx, owner.ID, model.CreditResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.Balance)

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditResearch, 10)
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestCreditRepo_Debit_OwnerNotFound(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := NewCreditRepo(db)
	ctx := context.Background()

	tests := []struct {
		name        string
		workspaceID int64
	}{
		{name: "unknown workspace", workspaceID: ws.ID + 100},
		{name: "owner without account", workspaceID: ws.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Debit(ctx, model.DebitRequest{
				WorkspaceID: tt.workspaceID,
				Kind:        model.CreditResearch,
				Amount:      1,
				Category:    model.UsageResearch,
			})
			require.ErrorIs(t, err, driven.ErrOwnerNotFound)
		})
	}

	account, err := repo.GetAccount(ctx, owner.ID, model.CreditResearch)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestCreditRepo_Debit_RejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 10)

	_, err := repo.Debit(context.Background(), model.DebitRequest{
		WorkspaceID: ws.ID,
		Kind:        model.CreditResearch,
		Amount:      0,
	})
	require.Error(t, err)
}

func TestCreditRepo_Debit_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 0)
	ctx := context.Background()

	const (
		attempts = 8
		amount   = 3
	)

	var wg sync.WaitGroup
	var successes, rejections atomic.Int64
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Debit(ctx, model.DebitRequest{
				WorkspaceID: ws.ID,
				Kind:        model.CreditResearch,
				Amount:      amount,
				Category:    model.UsageResearch,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, driven.ErrInsufficientCredit):
				rejections.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10/amount), successes.Load())
	assert.Equal(t, int64(attempts-10/amount), rejections.Load())

	account, err := repo.GetAccount(ctx, owner.ID, model.CreditResearch)
	require.NoError(t, err)
	assert.Equal(t, int64(10-amount*(10/amount)), account.Balance)

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditResearch, 100)
	require.NoError(t, err)
	assert.Len(t, usage, int(successes.Load()))
}

func TestCreditRepo_Award(t *testing.T) {
	db := setupTestDB(t)
	owner, _ := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 10)
	ctx := context.Background()

	account, err := repo.Award(ctx, owner.ID, model.CreditResearch, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
	assert.Equal(t, model.CreditResearch, account.Kind)

	// Award replaces rather than adds.
	account, err = repo.Award(ctx, owner.ID, model.CreditResearch, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.Balance)

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditResearch, 10)
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestCreditRepo_Award_CreatesMissingAccount(t *testing.T) {
	db := setupTestDB(t)
	owner, _ := seedOwner(t, db, "owner@example.com")
	repo := NewCreditRepo(db)
	ctx := context.Background()

	account, err := repo.Award(ctx, owner.ID, model.CreditExtraction, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), account.Balance)

	_, err = repo.Award(ctx, owner.ID+50, model.CreditExtraction, 7)
	require.ErrorIs(t, err, driven.ErrOwnerNotFound)
}

func TestCreditRepo_ListUsage_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	owner, ws := seedOwner(t, db, "owner@example.com")
	repo := openTestAccounts(t, db, owner.ID, 10, 10)
	ctx := context.Background()

	for _, category := range []string{"first", "second", "third"} {
		_, err := repo.Debit(ctx, model.DebitRequest{
			WorkspaceID: ws.ID,
			Kind:        model.CreditExtraction,
			Amount:      1,
			Category:    category,
		})
		require.NoError(t, err)
	}

	usage, err := repo.ListUsage(ctx, owner.ID, model.CreditExtraction, 2)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "third", usage[0].Category)
	assert.Equal(t, "second", usage[1].Category)
}
