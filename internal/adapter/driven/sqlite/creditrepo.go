package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CreditStore = (*CreditRepo)(nil)

// CreditRepo is the SQLite implementation of the CreditStore port interface.
type CreditRepo struct {
	db  *DB
	now func() time.Time
}

// NewCreditRepo creates a new CreditRepo backed by the given DB.
func NewCreditRepo(db *DB) *CreditRepo {
	return &CreditRepo{db: db, now: time.Now}
}

// OpenAccounts creates one account per kind with the given starting balance.
// Accounts that already exist keep their balance.
func (r *CreditRepo) OpenAccounts(ctx context.Context, ownerID int64, allotments map[model.CreditKind]int64) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	kinds := make([]string, 0, len(allotments))
	for kind := range allotments {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	const query = `INSERT OR IGNORE INTO credit_accounts (owner_id, kind, balance, updated_at) VALUES (?, ?, ?, ?)`
	now := formatTime(r.now())
	for _, kind := range kinds {
		if _, err := tx.ExecContext(ctx, query, ownerID, kind, allotments[model.CreditKind(kind)], now); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("open %s account for owner %d: %w", kind, ownerID, driven.ErrOwnerNotFound)
			}
			return fmt.Errorf("open %s account for owner %d: %w", kind, ownerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accounts for owner %d: %w", ownerID, err)
	}
	return nil
}

// Debit takes req.Amount from the workspace owner's account and appends a
// usage row, all inside one write transaction.
func (r *CreditRepo) Debit(ctx context.Context, req model.DebitRequest) (model.DebitResult, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.DebitResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := debitTx(ctx, tx, req, r.now())
	if err != nil {
		return model.DebitResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.DebitResult{}, fmt.Errorf("commit debit: %w", err)
	}
	return result, nil
}

// debitTx runs the conditional decrement and the usage insert on tx. The
// decrement only matches when balance >= amount, so a concurrent debit can
// never push the balance negative; zero matched rows is a rejection.
func debitTx(ctx context.Context, tx *sql.Tx, req model.DebitRequest, now time.Time) (model.DebitResult, error) {
	if req.Amount <= 0 {
		return model.DebitResult{}, fmt.Errorf("debit amount must be positive, got %d", req.Amount)
	}

	const ownerQuery = `
		SELECT u.id, u.name, u.email
		FROM workspaces w
		JOIN users u ON u.id = w.owner_id
		WHERE w.id = ?
	`
	var owner model.User
	err := tx.QueryRowContext(ctx, ownerQuery, req.WorkspaceID).Scan(&owner.ID, &owner.Name, &owner.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DebitResult{}, fmt.Errorf("debit workspace %d: %w", req.WorkspaceID, driven.ErrOwnerNotFound)
	}
	if err != nil {
		return model.DebitResult{}, fmt.Errorf("resolve owner of workspace %d: %w", req.WorkspaceID, err)
	}

	const update = `
		UPDATE credit_accounts
		SET balance = balance - ?, updated_at = ?
		WHERE owner_id = ? AND kind = ? AND balance >= ?
		RETURNING id, balance
	`
	var accountID, balance int64
	err = tx.QueryRowContext(ctx, update, req.Amount, formatTime(now), owner.ID, string(req.Kind), req.Amount).
		Scan(&accountID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists int
		lookupErr := tx.QueryRowContext(ctx,
			`SELECT 1 FROM credit_accounts WHERE owner_id = ? AND kind = ?`, owner.ID, string(req.Kind),
		).Scan(&exists)
		if errors.Is(lookupErr, sql.ErrNoRows) {
			return model.DebitResult{}, fmt.Errorf("debit %s credit of owner %d: %w", req.Kind, owner.ID, driven.ErrOwnerNotFound)
		}
		if lookupErr != nil {
			return model.DebitResult{}, fmt.Errorf("look up %s account of owner %d: %w", req.Kind, owner.ID, lookupErr)
		}
		return model.DebitResult{}, fmt.Errorf("debit %d %s credit of owner %d: %w", req.Amount, req.Kind, owner.ID, driven.ErrInsufficientCredit)
	}
	if err != nil {
		return model.DebitResult{}, fmt.Errorf("debit %s credit of owner %d: %w", req.Kind, owner.ID, err)
	}

	actingUserID := req.ActingUserID
	if actingUserID == 0 {
		actingUserID = owner.ID
	}

	const insert = `INSERT INTO credit_usage (account_id, acting_user_id, amount, category, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, accountID, actingUserID, req.Amount, req.Category, formatTime(now)); err != nil {
		return model.DebitResult{}, fmt.Errorf("record usage on account %d: %w", accountID, err)
	}

	return model.DebitResult{
		AccountID: accountID,
		Owner:     owner,
		Balance:   balance,
	}, nil
}

// Award sets the owner's balance to exactly balance. No usage row is written.
func (r *CreditRepo) Award(ctx context.Context, ownerID int64, kind model.CreditKind, balance int64) (model.CreditAccount, error) {
	const query = `
		INSERT INTO credit_accounts (owner_id, kind, balance, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, kind) DO UPDATE SET
			balance = excluded.balance,
			updated_at = excluded.updated_at
		RETURNING id, owner_id, kind, balance, updated_at
	`

	account, err := scanCreditAccount(r.db.Writer.QueryRowContext(ctx, query, ownerID, string(kind), balance, formatTime(r.now())))
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.CreditAccount{}, fmt.Errorf("award %s credit to owner %d: %w", kind, ownerID, driven.ErrOwnerNotFound)
		}
		return model.CreditAccount{}, fmt.Errorf("award %s credit to owner %d: %w", kind, ownerID, err)
	}
	return *account, nil
}

// GetAccount returns the owner's account of the given kind, or nil if none exists.
func (r *CreditRepo) GetAccount(ctx context.Context, ownerID int64, kind model.CreditKind) (*model.CreditAccount, error) {
	const query = `SELECT id, owner_id, kind, balance, updated_at FROM credit_accounts WHERE owner_id = ? AND kind = ?`

	account, err := scanCreditAccount(r.db.Reader.QueryRowContext(ctx, query, ownerID, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s account of owner %d: %w", kind, ownerID, err)
	}
	return account, nil
}

// ListUsage returns the most recent usage rows of the owner's account.
func (r *CreditRepo) ListUsage(ctx context.Context, ownerID int64, kind model.CreditKind, limit int) ([]model.CreditUsage, error) {
	const query = `
		SELECT cu.id, cu.account_id, cu.acting_user_id, cu.amount, cu.category, cu.created_at
		FROM credit_usage cu
		JOIN credit_accounts ca ON ca.id = cu.account_id
		WHERE ca.owner_id = ? AND ca.kind = ?
		ORDER BY cu.id DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, ownerID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s usage of owner %d: %w", kind, ownerID, err)
	}
	defer rows.Close()

	usage := []model.CreditUsage{}
	for rows.Next() {
		var u model.CreditUsage
		var createdAt string
		if err := rows.Scan(&u.ID, &u.AccountID, &u.ActingUserID, &u.Amount, &u.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credit usage: %w", err)
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit usage: %w", err)
	}

	return usage, nil
}

func scanCreditAccount(s scanner) (*model.CreditAccount, error) {
	var account model.CreditAccount
	var kind, updatedAt string

	if err := s.Scan(&account.ID, &account.OwnerID, &kind, &account.Balance, &updatedAt); err != nil {
		return nil, err
	}
	account.Kind = model.CreditKind(kind)

	var err error
	if account.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &account, nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint")
}
