package banklink

import (
	"context"
	"sync"
	"time"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/transaction"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	mu    sync.Mutex
	links map[string]*BankLink
	next  int

	CreateFunc      func(ctx context.Context, params CreateParams) (*BankLink, error)
	UpdateStatusErr error
	statuses        []string
	cursors    []string
	deleted    []string
}

func newMockRepository(links ...*BankLink) *MockRepository {
	m := &MockRepository{links: make(map[string]*BankLink)}
	for _, l := range links {
		m.links[l.ID] = l
	}
	return m
}

func (m *MockRepository) Create(ctx context.Context, params CreateParams) (*BankLink, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Provider == params.Provider && l.ExternalID == params.ExternalID {
			return nil, ErrDuplicateLink
		}
	}
	m.next++
	link := &BankLink{
		ID:              "link-" + string(rune('0'+m.next)),
		UserID:          params.UserID,
		Provider:        params.Provider,
		ExternalID:      params.ExternalID,
		InstitutionName: params.InstitutionName,
		AccessToken:     params.AccessToken,
		Status:          StatusActive,
		Metadata:        params.Metadata,
	}
	m.links[link.ID] = link
	cp := *link
	return &cp, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*BankLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, ErrLinkNotFound
}

func (m *MockRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*BankLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Provider == provider && l.ExternalID == externalID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (m *MockRepository) ListByUserID(ctx context.Context, userID int64) ([]*BankLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*BankLink
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	if l, ok := m.links[id]; ok {
		l.Status = status
		l.LastError = lastError
	}
	return nil
}

func (m *MockRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return m.UpdateStatus(ctx, id, StatusActive, "")
}

func (m *MockRepository) UpdateCursor(ctx context.Context, id, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors = append(m.cursors, cursor)
	if l, ok := m.links[id]; ok {
		l.TransactionsCursor = cursor
	}
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	delete(m.links, id)
	return nil
}

// reverseCipher "encrypts" by reversing the string.
type reverseCipher struct{}

func (reverseCipher) Encrypt(s string) (string, error) { return reverse(s), nil }
func (reverseCipher) Decrypt(s string) (string, error) { return reverse(s), nil }

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// MockPlaid is a mock implementation of PlaidClient
type MockPlaid struct {
	CreateLinkTokenFunc     func(ctx context.Context, userID int64) (*LinkToken, error)
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (*PublicTokenExchange, error)
	FetchAccountsFunc       func(ctx context.Context, link *BankLink, credential string) ([]ProviderAccount, error)
	RemoveItemFunc          func(ctx context.Context, accessToken string) error
	SyncTransactionsFunc    func(ctx context.Context, accessToken, cursor string) (*transaction.SyncPage, error)
}

func (m *MockPlaid) Name() string { return ProviderPlaid }

func (m *MockPlaid) CreateLinkToken(ctx context.Context, userID int64) (*LinkToken, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, userID)
	}
	return &LinkToken{Token: "link-sandbox-123"}, nil
}

func (m *MockPlaid) ExchangePublicToken(ctx context.Context, publicToken string) (*PublicTokenExchange, error) {
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return &PublicTokenExchange{AccessToken: "access-sandbox-1", ItemID: "item-1"}, nil
}

func (m *MockPlaid) FetchAccounts(ctx context.Context, link *BankLink, credential string) ([]ProviderAccount, error) {
	if m.FetchAccountsFunc != nil {
		return m.FetchAccountsFunc(ctx, link, credential)
	}
	return nil, nil
}

func (m *MockPlaid) RemoveItem(ctx context.Context, accessToken string) error {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockPlaid) SyncTransactions(ctx context.Context, accessToken, cursor string) (*transaction.SyncPage, error) {
	if m.SyncTransactionsFunc != nil {
		return m.SyncTransactionsFunc(ctx, accessToken, cursor)
	}
	return &transaction.SyncPage{}, nil
}

type fakeTatum struct {
	credentials []string
}

func (f *fakeTatum) Name() string { return ProviderTatum }

func (f *fakeTatum) FetchAccounts(ctx context.Context, link *BankLink, credential string) ([]ProviderAccount, error) {
	f.credentials = append(f.credentials, credential)
	chain, address, err := ParseWalletID(link.ExternalID)
	if err != nil {
		return nil, err
	}
	return []ProviderAccount{{ExternalID: address, Name: chain.Display, Currency: chain.Symbol}}, nil
}

type fakeCapturer struct {
	mu       sync.Mutex
	err      error
	captured []string
}

func (f *fakeCapturer) CaptureLink(ctx context.Context, link *BankLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, link.ID)
	return f.err
}

type fakeAccounts struct {
	accounts []*account.Account
}

func (f *fakeAccounts) ListByBankLink(ctx context.Context, bankLinkID string) ([]*account.Account, error) {
	return f.accounts, nil
}

type fakeApplier struct {
	mu    sync.Mutex
	pages []*transaction.SyncPage
	ids   map[string]string
}

func (f *fakeApplier) ApplySync(ctx context.Context, userID int64, accountIDs map[string]string, page *transaction.SyncPage) (transaction.SyncStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	f.ids = accountIDs
	return transaction.SyncStats{Added: len(page.Added), Removed: len(page.Removed)}, nil
}

type countingCache struct{ calls int }

func (c *countingCache) Invalidate(ctx context.Context, userID int64) error {
	c.calls++
	return nil
}
