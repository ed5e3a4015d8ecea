package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	CreateFunc         func(ctx context.Context, params CreateParams) (*Account, error)
	GetByIDFunc        func(ctx context.Context, id string) (*Account, error)
	ListByUserIDFunc   func(ctx context.Context, userID int64) ([]*Account, error)
	ListByBankLinkFunc func(ctx context.Context, bankLinkID string) ([]*Account, error)
	UpsertFunc         func(ctx context.Context, params UpsertParams) (*Account, error)
	UpdateFunc         func(ctx context.Context, id string, params UpdateParams) (*Account, error)
	UpdateBalanceFunc  func(ctx context.Context, id string, balance decimal.Decimal) (*Account, error)
	DeleteFunc         func(ctx context.Context, id string) error
	ListUserIDsFunc    func(ctx context.Context) ([]int64, error)
}

func (m *MockRepository) Create(ctx context.Context, params CreateParams) (*Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}

func (m *MockRepository) ListByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) ListByBankLink(ctx context.Context, bankLinkID string) ([]*Account, error) {
	if m.ListByBankLinkFunc != nil {
		return m.ListByBankLinkFunc(ctx, bankLinkID)
	}
	return nil, nil
}

func (m *MockRepository) Upsert(ctx context.Context, params UpsertParams) (*Account, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockRepository) Update(ctx context.Context, id string, params UpdateParams) (*Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *MockRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (*Account, error) {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, id, balance)
	}
	return nil, nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	if m.ListUserIDsFunc != nil {
		return m.ListUserIDsFunc(ctx)
	}
	return nil, nil
}

type recordedSnapshot struct {
	accountID string
	balance   decimal.Decimal
	date      time.Time
}

type fakeRecorder struct {
	snapshots []recordedSnapshot
}

func (f *fakeRecorder) RecordSnapshot(ctx context.Context, acc *Account, date time.Time) error {
	f.snapshots = append(f.snapshots, recordedSnapshot{accountID: acc.ID, balance: acc.CurrentBalance, date: date})
	return nil
}

type countingCache struct {
	users []int64
}

func (c *countingCache) Invalidate(ctx context.Context, userID int64) error {
	c.users = append(c.users, userID)
	return nil
}

type fakeBackfiller struct {
	codes []string
}

func (f *fakeBackfiller) EnsureCurrencyAsync(ctx context.Context, codes ...string) {
	f.codes = append(f.codes, codes...)
}

func TestCreateManualAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		params       CreateParams
		mock         func() *MockRepository
		wantErr      bool
		errType      error
		wantBackfill []string
	}{
		{
			name:   "Success",
			params: CreateParams{UserID: 1, Name: "Wallet", AccountType: TypeDepository, Currency: "eur", Balance: decimal.NewFromInt(50)},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
						return &Account{ID: "acc-1", UserID: params.UserID, Name: params.Name, AccountType: params.AccountType, Currency: params.Currency, CurrentBalance: params.Balance, IsManual: true}, nil
					},
				}
			},
			wantBackfill: []string{"EUR"},
		},
		{
			name:   "USD Needs No Backfill",
			params: CreateParams{UserID: 1, Name: "Wallet", Currency: "USD"},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
						return &Account{ID: "acc-2", UserID: params.UserID, Currency: params.Currency, IsManual: true}, nil
					},
				}
			},
		},
		{
			name:    "Invalid Input",
			params:  CreateParams{UserID: 1, Name: "", Currency: "USD"},
			mock:    func() *MockRepository { return &MockRepository{} },
			wantErr: true,
			errType: ErrInvalidInput,
		},
		{
			name:   "Repository Error",
			params: CreateParams{UserID: 1, Name: "Wallet", Currency: "USD"},
			mock: func() *MockRepository {
				return &MockRepository{
					CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
						return nil, errors.New("db error")
					},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			backfill := &fakeBackfiller{}
			service := NewService(tt.mock(), recorder, backfill, nil)

			acc, err := service.CreateManualAccount(ctx, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("CreateManualAccount() expected error, got nil")
				}
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("CreateManualAccount() expected error type %v, got %v", tt.errType, err)
				}
				if len(recorder.snapshots) != 0 {
					t.Errorf("no snapshot expected on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateManualAccount() unexpected error: %v", err)
			}
			if len(recorder.snapshots) != 1 || recorder.snapshots[0].accountID != acc.ID {
				t.Errorf("expected one snapshot for %s, got %+v", acc.ID, recorder.snapshots)
			}
			if len(backfill.codes) != len(tt.wantBackfill) {
				t.Errorf("backfill codes = %v, want %v", backfill.codes, tt.wantBackfill)
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		accountID string
		userID    int64
		mock      func() *MockRepository
		wantErr   bool
		errType   error
	}{
		{
			name:      "Success",
			accountID: "acc-123",
			userID:    1,
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
						return &Account{ID: id, UserID: 1}, nil
					},
				}
			},
			wantErr: false,
		},
		{
			name:      "Not Found",
			accountID: "acc-999",
			userID:    1,
			mock: func() *MockRepository {
				return &MockRepository{}
			},
			wantErr: true,
			errType: ErrAccountNotFound,
		},
		{
			name:      "Forbidden",
			accountID: "acc-123",
			userID:    2, // Different user
			mock: func() *MockRepository {
				return &MockRepository{
					GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
						return &Account{ID: id, UserID: 1}, nil // Owned by user 1
					},
				}
			},
			wantErr: true,
			errType: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.mock(), nil, nil, nil)

			acc, err := service.GetAccount(ctx, tt.accountID, tt.userID)

			if tt.wantErr {
				if err == nil {
					t.Errorf("GetAccount() expected error, got nil")
				}
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("GetAccount() expected error type %v, got %v", tt.errType, err)
				}
			} else {
				if err != nil {
					t.Errorf("GetAccount() unexpected error: %v", err)
				}
				if acc == nil {
					t.Errorf("GetAccount() expected account, got nil")
				}
			}
		})
	}
}

func TestUpdateManualBalance(t *testing.T) {
	ctx := context.Background()
	linkID := "link-1"

	accounts := map[string]*Account{
		"manual": {ID: "manual", UserID: 1, Currency: "JPY", IsManual: true},
		"linked": {ID: "linked", UserID: 1, Currency: "USD", BankLinkID: &linkID},
	}
	var stored decimal.Decimal
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			if acc, ok := accounts[id]; ok {
				return acc, nil
			}
			return nil, ErrAccountNotFound
		},
		UpdateBalanceFunc: func(ctx context.Context, id string, balance decimal.Decimal) (*Account, error) {
			stored = balance
			acc := *accounts[id]
			acc.CurrentBalance = balance
			return &acc, nil
		},
	}
	recorder := &fakeRecorder{}
	service := NewService(repo, recorder, nil, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	acc, err := service.UpdateManualBalance(ctx, "manual", 1, decimal.RequireFromString("1500.6"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.String() != "1501" || acc.CurrentBalance.String() != "1501" {
		t.Errorf("balance not rounded to JPY: stored %s", stored)
	}
	if len(recorder.snapshots) != 1 || !recorder.snapshots[0].date.Equal(fixed) {
		t.Errorf("expected snapshot for today, got %+v", recorder.snapshots)
	}

	if _, err := service.UpdateManualBalance(ctx, "linked", 1, decimal.NewFromInt(1)); !errors.Is(err, ErrNotManual) {
		t.Errorf("expected ErrNotManual, got %v", err)
	}
	if _, err := service.UpdateManualBalance(ctx, "manual", 2, decimal.NewFromInt(1)); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	linkID := "link-1"
	deleted := ""

	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			if id == "linked" {
				return &Account{ID: id, UserID: 1, BankLinkID: &linkID}, nil
			}
			return &Account{ID: id, UserID: 1, IsManual: true}, nil
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	service := NewService(repo, nil, nil, nil)

	if err := service.DeleteAccount(ctx, "manual", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "manual" {
		t.Errorf("deleted = %q, want manual", deleted)
	}
	if err := service.DeleteAccount(ctx, "linked", 1); !errors.Is(err, ErrNotManual) {
		t.Errorf("expected ErrNotManual, got %v", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	hidden := true
	var got UpdateParams
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, UserID: 1}, nil
		},
		UpdateFunc: func(ctx context.Context, id string, params UpdateParams) (*Account, error) {
			got = params
			return &Account{ID: id, UserID: 1, Hidden: *params.Hidden}, nil
		},
	}
	service := NewService(repo, nil, nil, nil)

	acc, err := service.UpdateAccount(context.Background(), "acc-1", 1, UpdateParams{Hidden: &hidden})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acc.Hidden || got.Hidden == nil {
		t.Errorf("expected hidden account")
	}

	if _, err := service.UpdateAccount(context.Background(), "acc-1", 1, UpdateParams{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAccountChangesInvalidateDashboard(t *testing.T) {
	ctx := context.Background()
	hidden := true
	manual := &Account{ID: "cash", UserID: 7, Name: "Cash", AccountType: TypeDepository, Currency: "EUR", IsManual: true}
	repo := &MockRepository{
		CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
			return manual, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			return manual, nil
		},
		UpdateFunc: func(ctx context.Context, id string, params UpdateParams) (*Account, error) {
			return manual, nil
		},
		UpdateBalanceFunc: func(ctx context.Context, id string, balance decimal.Decimal) (*Account, error) {
			return manual, nil
		},
	}

	tests := []struct {
		name string
		run  func(s *Service) error
	}{
		{"create manual", func(s *Service) error {
			_, err := s.CreateManualAccount(ctx, CreateParams{UserID: 7, Name: "Cash", AccountType: TypeDepository, Currency: "EUR"})
			return err
		}},
		{"hide", func(s *Service) error {
			_, err := s.UpdateAccount(ctx, "cash", 7, UpdateParams{Hidden: &hidden})
			return err
		}},
		{"manual balance", func(s *Service) error {
			_, err := s.UpdateManualBalance(ctx, "cash", 7, decimal.NewFromInt(250))
			return err
		}},
		{"delete", func(s *Service) error {
			return s.DeleteAccount(ctx, "cash", 7)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &countingCache{}
			service := NewService(repo, &fakeRecorder{}, nil, cache)

			if err := tt.run(service); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cache.users) != 1 || cache.users[0] != 7 {
				t.Errorf("invalidations = %v, want [7]", cache.users)
			}
		})
	}
}

func TestAccountChange_FailureKeepsCache(t *testing.T) {
	cache := &countingCache{}
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, UserID: 7, IsManual: true}, nil
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			return errors.New("db down")
		},
	}
	service := NewService(repo, nil, nil, cache)

	if err := service.DeleteAccount(context.Background(), "cash", 7); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.users) != 0 {
		t.Errorf("invalidations = %v, want none", cache.users)
	}
}
