package model

import "time"

// CreditKind distinguishes the two credit pools every workspace owner holds.
type CreditKind string

const (
	CreditExtraction CreditKind = "extraction"
	CreditResearch   CreditKind = "research"
)

// Valid reports whether k is a known credit kind.
func (k CreditKind) Valid() bool {
	return k == CreditExtraction || k == CreditResearch
}

// Usage categories recorded on credit usage rows.
const (
	UsageResearch        = "Research"
	UsageCaseTracking    = "Case Tracking"
	UsageExtraction      = "Extraction"
	UsageSmartExtraction = "Smart Extraction"
)

// User is a platform user. Only the fields the credit and notification
// flows need are modelled.
type User struct {
	ID    int64
	Name  string
	Email string
}

// Workspace is a tenant. Credits are pooled at the workspace owner.
type Workspace struct {
	ID      int64
	Name    string
	OwnerID int64
}

// CreditAccount holds the balance of one credit kind for an owner.
type CreditAccount struct {
	ID        int64
	OwnerID   int64
	Kind      CreditKind
	Balance   int64
	UpdatedAt time.Time
}

// CreditUsage is an append-only ledger row written for every successful debit.
type CreditUsage struct {
	ID           int64
	AccountID    int64
	ActingUserID int64
	Amount       int64
	Category     string
	CreatedAt    time.Time
}

// DebitRequest asks for amount credits of kind to be taken from the owner of
// WorkspaceID. ActingUserID zero means a background charge attributed to the
// owner.
type DebitRequest struct {
	WorkspaceID  int64
	ActingUserID int64
	Kind         CreditKind
	Amount       int64
	Category     string
}

// DebitResult describes the account state after a successful debit.
type DebitResult struct {
	AccountID int64
	Owner     User
	Balance   int64
}

// LowBalanceAlert signals that an owner's research credit fell below the
// configured threshold.
type LowBalanceAlert struct {
	Owner     User
	Kind      CreditKind
	Balance   int64
	Threshold int64
}
