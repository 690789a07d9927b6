// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// Sentinel errors returned by CreditStore implementations.
var (
	// ErrInsufficientCredit indicates the owner's balance is lower than the
	// requested debit. No state was changed.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrOwnerNotFound indicates the workspace has no resolvable owner or the
	// owner holds no account of the requested kind.
	ErrOwnerNotFound = errors.New("workspace owner not found")
)

// CreditStore defines the driven port for the credit ledger.
//
// Debit must run the balance check, the decrement and the usage insert as one
// atomic unit: a debit either fully succeeds or leaves no trace.
type CreditStore interface {
	// OpenAccounts creates the owner's accounts with the given starting
	// balances. Existing accounts are left untouched.
	OpenAccounts(ctx context.Context, ownerID int64, allotments map[model.CreditKind]int64) error
	// Debit returns ErrOwnerNotFound or ErrInsufficientCredit on rejection.
	Debit(ctx context.Context, req model.DebitRequest) (model.DebitResult, error)
	// Award replaces the owner's balance, creating the account if needed.
	Award(ctx context.Context, ownerID int64, kind model.CreditKind, balance int64) (model.CreditAccount, error)
	// GetAccount returns (nil, nil) if the owner has no account of that kind.
	GetAccount(ctx context.Context, ownerID int64, kind model.CreditKind) (*model.CreditAccount, error)
	// ListUsage returns the newest usage rows first, at most limit rows.
	ListUsage(ctx context.Context, ownerID int64, kind model.CreditKind, limit int) ([]model.CreditUsage, error)
}
