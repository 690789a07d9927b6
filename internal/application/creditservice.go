package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"go.uber.org/zap"
)

// DefaultLowBalanceThreshold is the research balance below which the
// platform admin is alerted.
const DefaultLowBalanceThreshold = 50000

// LowBalanceAlerter receives low research balance signals. Implementations
// must not block the caller.
type LowBalanceAlerter interface {
	LowBalance(alert model.LowBalanceAlert)
}

// CreditService meters extraction and research credits pooled at each
// workspace owner.
type CreditService struct {
	credits    driven.CreditStore
	workspaces driven.WorkspaceStore
	alerter    LowBalanceAlerter
	threshold  int64
	allotments map[model.CreditKind]int64
	logger     *zap.Logger
}

// CreditOption configures optional CreditService behaviour.
type CreditOption func(*CreditService)

// WithLowBalanceAlerter signals alerter after research debits that leave the
// balance below threshold.
func WithLowBalanceAlerter(alerter LowBalanceAlerter, threshold int64) CreditOption {
	return func(s *CreditService) {
		s.alerter = alerter
		s.threshold = threshold
	}
}

// WithAllotments sets the starting balances used by OpenAccounts.
func WithAllotments(allotments map[model.CreditKind]int64) CreditOption {
	return func(s *CreditService) {
		s.allotments = allotments
	}
}

// NewCreditService creates a CreditService.
func NewCreditService(credits driven.CreditStore, workspaces driven.WorkspaceStore, logger *zap.Logger, opts ...CreditOption) *CreditService {
	s := &CreditService{
		credits:    credits,
		workspaces: workspaces,
		threshold:  DefaultLowBalanceThreshold,
		allotments: map[model.CreditKind]int64{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DebitExtraction charges extraction credits for an interactive extraction.
// A zero amount charges one credit and an empty category records "Extraction".
func (s *CreditService) DebitExtraction(ctx context.Context, workspaceID, actingUserID, amount int64, category string) (model.DebitResult, error) {
	if amount < 0 {
		return model.DebitResult{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if amount == 0 {
		amount = 1
	}
	if category == "" {
		category = model.UsageExtraction
	}

	return s.debit(ctx, model.DebitRequest{
		WorkspaceID:  workspaceID,
		ActingUserID: actingUserID,
		Kind:         model.CreditExtraction,
		Amount:       amount,
		Category:     category,
	})
}

// DebitResearch charges one research credit for an interactive research query.
func (s *CreditService) DebitResearch(ctx context.Context, workspaceID, actingUserID int64) (model.DebitResult, error) {
	return s.debit(ctx, model.DebitRequest{
		WorkspaceID:  workspaceID,
		ActingUserID: actingUserID,
		Kind:         model.CreditResearch,
		Amount:       1,
		Category:     model.UsageResearch,
	})
}

// ChargeCaseTracking charges one research credit to the workspace owner for
// a background case poll.
func (s *CreditService) ChargeCaseTracking(ctx context.Context, workspaceID int64) (model.DebitResult, error) {
	return s.debit(ctx, model.DebitRequest{
		WorkspaceID: workspaceID,
		Kind:        model.CreditResearch,
		Amount:      1,
		Category:    model.UsageCaseTracking,
	})
}

func (s *CreditService) debit(ctx context.Context, req model.DebitRequest) (model.DebitResult, error) {
	result, err := s.credits.Debit(ctx, req)
	if err != nil {
		return model.DebitResult{}, fmt.Errorf("debit %s credit for workspace %d: %w", req.Kind, req.WorkspaceID, err)
	}

	// The debit is committed at this point; the threshold check only reads
	// its result and the alert is handed off without waiting.
	if req.Kind == model.CreditResearch && s.alerter != nil && result.Balance < s.threshold {
		s.logger.Warn("research balance below threshold",
			zap.Int64("owner_id", result.Owner.ID),
			zap.Int64("balance", result.Balance),
			zap.Int64("threshold", s.threshold),
		)
		s.alerter.LowBalance(model.LowBalanceAlert{
			Owner:     result.Owner,
			Kind:      req.Kind,
			Balance:   result.Balance,
			Threshold: s.threshold,
		})
	}

	return result, nil
}

// Award replaces the owner's balance of kind with balance. No usage is recorded.
func (s *CreditService) Award(ctx context.Context, ownerID int64, kind model.CreditKind, balance int64) (model.CreditAccount, error) {
	if !kind.Valid() {
		return model.CreditAccount{}, fmt.Errorf("%w: unknown credit kind %q", ErrValidation, kind)
	}
	if balance < 0 {
		return model.CreditAccount{}, fmt.Errorf("%w: balance must not be negative", ErrValidation)
	}

	account, err := s.credits.Award(ctx, ownerID, kind, balance)
	if err != nil {
		return model.CreditAccount{}, err
	}

	s.logger.Info("credit awarded",
		zap.Int64("owner_id", ownerID),
		zap.String("kind", string(kind)),
		zap.Int64("balance", balance),
	)
	return account, nil
}

// Balance returns the account of kind held by the workspace's owner.
func (s *CreditService) Balance(ctx context.Context, workspaceID int64, kind model.CreditKind) (model.CreditAccount, error) {
	if !kind.Valid() {
		return model.CreditAccount{}, fmt.Errorf("%w: unknown credit kind %q", ErrValidation, kind)
	}

	owner, err := s.workspaces.GetOwner(ctx, workspaceID)
	if err != nil {
		return model.CreditAccount{}, err
	}

	account, err := s.credits.GetAccount(ctx, owner.ID, kind)
	if err != nil {
		return model.CreditAccount{}, err
	}
	if account == nil {
		return model.CreditAccount{}, fmt.Errorf("%s account of owner %d: %w", kind, owner.ID, driven.ErrOwnerNotFound)
	}
	return *account, nil
}

// Usage returns the most recent usage rows of the owner's account of kind.
func (s *CreditService) Usage(ctx context.Context, ownerID int64, kind model.CreditKind, limit int) ([]model.CreditUsage, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown credit kind %q", ErrValidation, kind)
	}
	return s.credits.ListUsage(ctx, ownerID, kind, limit)
}

// OpenAccounts creates the owner's accounts with the configured starting
// allotments. Existing accounts are left as they are.
func (s *CreditService) OpenAccounts(ctx context.Context, ownerID int64) error {
	allotments := map[model.CreditKind]int64{
		model.CreditExtraction: s.allotments[model.CreditExtraction],
		model.CreditResearch:   s.allotments[model.CreditResearch],
	}
	return s.credits.OpenAccounts(ctx, ownerID, allotments)
}

// ProvisionWorkspace creates an owner with a workspace and opens the owner's
// credit accounts with the configured allotments.
func (s *CreditService) ProvisionWorkspace(ctx context.Context, ownerName, ownerEmail, workspaceName string) (model.User, model.Workspace, error) {
	ownerName = strings.TrimSpace(ownerName)
	ownerEmail = strings.TrimSpace(ownerEmail)
	workspaceName = strings.TrimSpace(workspaceName)
	if ownerName == "" || workspaceName == "" {
		return model.User{}, model.Workspace{}, fmt.Errorf("%w: owner and workspace names are required", ErrValidation)
	}
	if !ValidEmail(ownerEmail) {
		return model.User{}, model.Workspace{}, fmt.Errorf("%w: invalid owner email %q", ErrValidation, ownerEmail)
	}

	owner, err := s.workspaces.CreateUser(ctx, model.User{Name: ownerName, Email: ownerEmail})
	if err != nil {
		return model.User{}, model.Workspace{}, fmt.Errorf("create owner: %w", err)
	}
	ws, err := s.workspaces.CreateWorkspace(ctx, model.Workspace{Name: workspaceName, OwnerID: owner.ID})
	if err != nil {
		return model.User{}, model.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	if err := s.OpenAccounts(ctx, owner.ID); err != nil {
		return model.User{}, model.Workspace{}, fmt.Errorf("open accounts: %w", err)
	}

	s.logger.Info("workspace provisioned",
		zap.Int64("owner_id", owner.ID),
		zap.Int64("workspace_id", ws.ID),
	)
	return owner, ws, nil
}
