package application_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCreditStore struct {
	mu        sync.Mutex
	debits    []model.DebitRequest
	debitFunc func(req model.DebitRequest) (model.DebitResult, error)
	accounts  map[model.CreditKind]*model.CreditAccount
	awards    []int64
	opened    map[model.CreditKind]int64
}

func (m *mockCreditStore) OpenAccounts(_ context.Context, _ int64, allotments map[model.CreditKind]int64) error {
	m.opened = allotments
	return nil
}

func (m *mockCreditStore) Debit(_ context.Context, req model.DebitRequest) (model.DebitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debits = append(m.debits, req)
	if m.debitFunc != nil {
		return m.debitFunc(req)
	}
	return model.DebitResult{AccountID: 1, Owner: model.User{ID: 1}, Balance: 100000}, nil
}

func (m *mockCreditStore) Award(_ context.Context, ownerID int64, kind model.CreditKind, balance int64) (model.CreditAccount, error) {
	m.awards = append(m.awards, balance)
	return model.CreditAccount{OwnerID: ownerID, Kind: kind, Balance: balance}, nil
}

func (m *mockCreditStore) GetAccount(_ context.Context, _ int64, kind model.CreditKind) (*model.CreditAccount, error) {
	return m.accounts[kind], nil
}

func (m *mockCreditStore) ListUsage(_ context.Context, _ int64, _ model.CreditKind, _ int) ([]model.CreditUsage, error) {
	return nil, nil
}

func (m *mockCreditStore) debitCalls() []model.DebitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DebitRequest(nil), m.debits...)
}

type mockWorkspaceStore struct {
	owners map[int64]model.User
	nextID int64
	users  []model.User
}

func (m *mockWorkspaceStore) CreateUser(_ context.Context, user model.User) (model.User, error) {
	m.nextID++
	user.ID = m.nextID
	m.users = append(m.users, user)
	return user, nil
}

func (m *mockWorkspaceStore) CreateWorkspace(_ context.Context, ws model.Workspace) (model.Workspace, error) {
	m.nextID++
	ws.ID = m.nextID
	for _, u := range m.users {
		if u.ID == ws.OwnerID {
			if m.owners == nil {
				m.owners = map[int64]model.User{}
			}
			m.owners[ws.ID] = u
		}
	}
	return ws, nil
}

func (m *mockWorkspaceStore) GetOwner(_ context.Context, workspaceID int64) (model.User, error) {
	owner, ok := m.owners[workspaceID]
	if !ok {
		return model.User{}, driven.ErrOwnerNotFound
	}
	return owner, nil
}

type mockAlerter struct {
	mu     sync.Mutex
	alerts []model.LowBalanceAlert
}

func (m *mockAlerter) LowBalance(alert model.LowBalanceAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

type mockCaseStore struct {
	mu        sync.Mutex
	cases     []model.FollowedCase
	nextID    int64
	cleared   []int64
	listErr   error
	updateErr error
}

func (m *mockCaseStore) Add(_ context.Context, fc model.FollowedCase) (model.FollowedCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.WorkspaceID == fc.WorkspaceID && c.Court == fc.Court && c.Identifier().Key() == fc.Identifier().Key() {
			return model.FollowedCase{}, driven.ErrCaseAlreadyFollowed
		}
	}
	m.nextID++
	fc.ID = m.nextID
	m.cases = append(m.cases, fc)
	return fc, nil
}

func (m *mockCaseStore) Remove(_ context.Context, workspaceID int64, court, caseKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cases {
		if c.WorkspaceID == workspaceID && c.Court == court && c.Identifier().Key() == caseKey {
			m.cases = append(m.cases[:i], m.cases[i+1:]...)
			return nil
		}
	}
	return driven.ErrCaseNotFound
}

func (m *mockCaseStore) RemoveByID(_ context.Context, workspaceID, caseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cases {
		if c.WorkspaceID == workspaceID && c.ID == caseID {
			m.cases = append(m.cases[:i], m.cases[i+1:]...)
			return nil
		}
	}
	return driven.ErrCaseNotFound
}

func (m *mockCaseStore) ListByWorkspace(_ context.Context, workspaceID int64, court string) ([]model.FollowedCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.FollowedCase
	for _, c := range m.cases {
		if c.WorkspaceID == workspaceID && (court == "" || c.Court == court) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCaseStore) UpdateSnapshot(_ context.Context, caseID int64, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i := range m.cases {
		if m.cases[i].ID == caseID {
			m.cases[i].Snapshot = append([]byte(nil), snapshot...)
			return nil
		}
	}
	return driven.ErrCaseNotFound
}

func (m *mockCaseStore) ClearSnapshot(_ context.Context, caseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, caseID)
	for i := range m.cases {
		if m.cases[i].ID == caseID {
			m.cases[i].Snapshot = nil
			return nil
		}
	}
	return driven.ErrCaseNotFound
}

func (m *mockCaseStore) snapshot(caseID int64) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.ID == caseID {
			return c.Snapshot
		}
	}
	return nil
}

type mockPollConfigStore struct {
	mu      sync.Mutex
	configs map[string]model.PollConfig
	getErr  error
}

func configKey(workspaceID int64, role string) string {
	return fmt.Sprintf("%d/%s", workspaceID, role)
}

func (m *mockPollConfigStore) Upsert(_ context.Context, cfg model.PollConfig) (model.PollConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configs == nil {
		m.configs = make(map[string]model.PollConfig)
	}
	m.configs[configKey(cfg.WorkspaceID, cfg.Role)] = cfg
	return cfg, nil
}

func (m *mockPollConfigStore) Get(_ context.Context, workspaceID int64, role string) (*model.PollConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cfg, ok := m.configs[configKey(workspaceID, role)]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *mockPollConfigStore) Delete(_ context.Context, workspaceID int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := configKey(workspaceID, role)
	if _, ok := m.configs[key]; !ok {
		return driven.ErrPollConfigNotFound
	}
	delete(m.configs, key)
	return nil
}

func (m *mockPollConfigStore) ListAll(_ context.Context) ([]model.PollConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PollConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

type mockProvider struct {
	fetch func(id model.CaseIdentifier) (*model.Object, error)
	calls []model.CaseIdentifier
}

func (m *mockProvider) FetchCase(_ context.Context, id model.CaseIdentifier) (*model.Object, error) {
	m.calls = append(m.calls, id)
	return m.fetch(id)
}

type notifyCall struct {
	Case       model.FollowedCase
	Changes    model.ChangeSet
	Recipients []string
}

type mockNotifier struct {
	calls []notifyCall
	err   error
}

func (m *mockNotifier) NotifyCaseChange(_ context.Context, fc model.FollowedCase, changes model.ChangeSet, recipients []string) error {
	m.calls = append(m.calls, notifyCall{Case: fc, Changes: changes, Recipients: recipients})
	return m.err
}

type mockMailer struct {
	mu    sync.Mutex
	sent  []driven.Email
	errs  []error
	calls int
}

func (m *mockMailer) Send(_ context.Context, email driven.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockMailer) sentEmails() []driven.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.Email(nil), m.sent...)
}

type mockExtractionStore struct {
	saved   []model.ExtractedDocument
	debits  []model.DebitRequest
	balance int64
}

func (m *mockExtractionStore) SaveCharged(_ context.Context, doc model.ExtractedDocument, debit model.DebitRequest) (model.ExtractedDocument, model.DebitResult, error) {
	if debit.Amount > m.balance {
		return model.ExtractedDocument{}, model.DebitResult{}, driven.ErrInsufficientCredit
	}
	m.balance -= debit.Amount
	m.debits = append(m.debits, debit)
	doc.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, doc)
	return doc, model.DebitResult{Balance: m.balance}, nil
}

func (m *mockExtractionStore) ListByWorkspace(_ context.Context, _ int64) ([]model.ExtractedDocument, error) {
	return m.saved, nil
}

func (m *mockExtractionStore) GetByID(_ context.Context, id int64) (model.ExtractedDocument, error) {
	for _, d := range m.saved {
		if d.ID == id {
			return d, nil
		}
	}
	return model.ExtractedDocument{}, driven.ErrExtractionNotFound
}
