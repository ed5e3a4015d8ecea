package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/dashboard"
	"balancebook/internal/domain/notification"
	"balancebook/internal/domain/transaction"
	"balancebook/internal/domain/user"
	"balancebook/internal/domain/webhook"
	"balancebook/internal/shared/middleware"
)

// withUser authenticates req as userID.
func withUser(req *http.Request, userID int64) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

// withParam sets a chi URL parameter on req.
func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type MockUserService struct {
	RegisterFunc     func(ctx context.Context, params user.RegisterParams) (*user.User, error)
	AuthenticateFunc func(ctx context.Context, email, password string) (*user.User, error)
	GetFunc          func(ctx context.Context, userID int64) (*user.User, error)
	UpdateFunc       func(ctx context.Context, userID int64, params user.UpdateUserParams) (*user.User, error)
}

func (m *MockUserService) Register(ctx context.Context, params user.RegisterParams) (*user.User, error) {
	return m.RegisterFunc(ctx, params)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	return m.AuthenticateFunc(ctx, email, password)
}

func (m *MockUserService) Get(ctx context.Context, userID int64) (*user.User, error) {
	return m.GetFunc(ctx, userID)
}

func (m *MockUserService) Update(ctx context.Context, userID int64, params user.UpdateUserParams) (*user.User, error) {
	return m.UpdateFunc(ctx, userID, params)
}

type MockAccountService struct {
	CreateFunc        func(ctx context.Context, params account.CreateParams) (*account.Account, error)
	GetFunc           func(ctx context.Context, accountID string, userID int64) (*account.Account, error)
	ListFunc          func(ctx context.Context, userID int64) ([]*account.Account, error)
	UpdateFunc        func(ctx context.Context, accountID string, userID int64, params account.UpdateParams) (*account.Account, error)
	UpdateBalanceFunc func(ctx context.Context, accountID string, userID int64, balance decimal.Decimal) (*account.Account, error)
	DeleteFunc        func(ctx context.Context, accountID string, userID int64) error
}

func (m *MockAccountService) CreateManualAccount(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	return m.CreateFunc(ctx, params)
}

func (m *MockAccountService) GetAccount(ctx context.Context, accountID string, userID int64) (*account.Account, error) {
	return m.GetFunc(ctx, accountID, userID)
}

func (m *MockAccountService) ListAccountsByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	return m.ListFunc(ctx, userID)
}

func (m *MockAccountService) UpdateAccount(ctx context.Context, accountID string, userID int64, params account.UpdateParams) (*account.Account, error) {
	return m.UpdateFunc(ctx, accountID, userID, params)
}

func (m *MockAccountService) UpdateManualBalance(ctx context.Context, accountID string, userID int64, balance decimal.Decimal) (*account.Account, error) {
	return m.UpdateBalanceFunc(ctx, accountID, userID, balance)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, accountID string, userID int64) error {
	return m.DeleteFunc(ctx, accountID, userID)
}

type MockLinkService struct {
	LinkTokenFunc  func(ctx context.Context, userID int64) (*banklink.LinkToken, error)
	LinkPlaidFunc  func(ctx context.Context, userID int64, publicToken, institution string) (*banklink.BankLink, error)
	LinkWalletFunc func(ctx context.Context, userID int64, chainName, address, label string) (*banklink.BankLink, error)
	ListFunc       func(ctx context.Context, userID int64) ([]*banklink.BankLink, error)
	RemoveFunc     func(ctx context.Context, userID int64, linkID string) error
	RefreshFunc    func(ctx context.Context, userID int64, linkID string) (*banklink.BankLink, error)
}

func (m *MockLinkService) CreatePlaidLinkToken(ctx context.Context, userID int64) (*banklink.LinkToken, error) {
	return m.LinkTokenFunc(ctx, userID)
}

func (m *MockLinkService) LinkPlaid(ctx context.Context, userID int64, publicToken, institution string) (*banklink.BankLink, error) {
	return m.LinkPlaidFunc(ctx, userID, publicToken, institution)
}

func (m *MockLinkService) LinkCryptoWallet(ctx context.Context, userID int64, chainName, address, label string) (*banklink.BankLink, error) {
	return m.LinkWalletFunc(ctx, userID, chainName, address, label)
}

func (m *MockLinkService) List(ctx context.Context, userID int64) ([]*banklink.BankLink, error) {
	return m.ListFunc(ctx, userID)
}

func (m *MockLinkService) Remove(ctx context.Context, userID int64, linkID string) error {
	return m.RemoveFunc(ctx, userID, linkID)
}

func (m *MockLinkService) Refresh(ctx context.Context, userID int64, linkID string) (*banklink.BankLink, error) {
	return m.RefreshFunc(ctx, userID, linkID)
}

type MockBalanceQuerier struct {
	QueryFunc func(ctx context.Context, userID int64, params balance.QueryParams) (*balance.Series, error)
}

func (m *MockBalanceQuerier) Query(ctx context.Context, userID int64, params balance.QueryParams) (*balance.Series, error) {
	return m.QueryFunc(ctx, userID, params)
}

type MockDashboard struct {
	SummaryFunc func(ctx context.Context, userID int64, code string) (*dashboard.Summary, error)
}

func (m *MockDashboard) Summary(ctx context.Context, userID int64, code string) (*dashboard.Summary, error) {
	return m.SummaryFunc(ctx, userID, code)
}

type MockRates struct {
	GetRateFunc  func(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
	BackfillFunc func(ctx context.Context, currencies []string, start, end time.Time) (*currency.BackfillResult, error)
}

func (m *MockRates) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	return m.GetRateFunc(ctx, from, to, date)
}

func (m *MockRates) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (currency.Money, error) {
	rate, err := m.GetRateFunc(ctx, from, to, date)
	if err != nil {
		return currency.Money{}, err
	}
	return currency.NewMoney(amount.Mul(rate), to), nil
}

func (m *MockRates) Backfill(ctx context.Context, currencies []string, start, end time.Time) (*currency.BackfillResult, error) {
	return m.BackfillFunc(ctx, currencies, start, end)
}

type MockTransactionLister struct {
	ListFunc func(ctx context.Context, userID int64, params transaction.ListParams) (*transaction.ListResult, error)
}

func (m *MockTransactionLister) List(ctx context.Context, userID int64, params transaction.ListParams) (*transaction.ListResult, error) {
	return m.ListFunc(ctx, userID, params)
}

type MockWebhookReceiver struct {
	HandlePlaidFunc func(ctx context.Context, header string, body []byte) (*webhook.Event, error)
}

func (m *MockWebhookReceiver) HandlePlaid(ctx context.Context, header string, body []byte) (*webhook.Event, error) {
	return m.HandlePlaidFunc(ctx, header, body)
}

type MockNotificationService struct {
	RegisterDeviceFunc    func(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error)
	GetPreferencesFunc    func(ctx context.Context, userID int64) (*notification.NotificationPreference, error)
	UpdatePreferencesFunc func(ctx context.Context, userID int64, params notification.UpdatePreferenceParams) (*notification.NotificationPreference, error)
	ListFunc              func(ctx context.Context, userID int64, page, perPage int) ([]*notification.Notification, int, error)
	MarkOpenedFunc        func(ctx context.Context, notificationID string, userID int64) error
}

func (m *MockNotificationService) RegisterDevice(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error) {
	return m.RegisterDeviceFunc(ctx, params)
}

func (m *MockNotificationService) GetPreferences(ctx context.Context, userID int64) (*notification.NotificationPreference, error) {
	return m.GetPreferencesFunc(ctx, userID)
}

func (m *MockNotificationService) UpdatePreferences(ctx context.Context, userID int64, params notification.UpdatePreferenceParams) (*notification.NotificationPreference, error) {
	return m.UpdatePreferencesFunc(ctx, userID, params)
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID int64, page, perPage int) ([]*notification.Notification, int, error) {
	return m.ListFunc(ctx, userID, page, perPage)
}

func (m *MockNotificationService) MarkNotificationOpened(ctx context.Context, notificationID string, userID int64) error {
	return m.MarkOpenedFunc(ctx, notificationID, userID)
}
