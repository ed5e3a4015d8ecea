package balance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/user"
)

func mustDate(s string) time.Time {
	d, err := currency.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memorySnapshots stores snapshots keyed by account and day
type memorySnapshots struct {
	mu    sync.Mutex
	items map[string]Snapshot
	// writes for this account fail
	failAccount string
}

func newMemorySnapshots(snaps ...Snapshot) *memorySnapshots {
	m := &memorySnapshots{items: make(map[string]Snapshot)}
	for _, s := range snaps {
		m.items[s.AccountID+"|"+currency.DateKey(s.Date)] = s
	}
	return m
}

func (m *memorySnapshots) UpsertSnapshot(ctx context.Context, params UpsertParams) (*Snapshot, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if m.failAccount != "" && params.AccountID == m.failAccount {
		return nil, errors.New("snapshot write failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		ID:               params.AccountID + "|" + currency.DateKey(params.Date),
		AccountID:        params.AccountID,
		UserID:           params.UserID,
		Date:             params.Date,
		CurrentBalance:   params.CurrentBalance,
		AvailableBalance: params.AvailableBalance,
		Currency:         params.Currency,
	}
	m.items[s.ID] = s
	return &s, nil
}

func (m *memorySnapshots) ListRange(ctx context.Context, accountIDs []string, start, end time.Time) ([]Snapshot, error) {
	return m.filter(accountIDs, func(s Snapshot) bool {
		return !s.Date.Before(start) && !s.Date.After(end)
	}), nil
}

func (m *memorySnapshots) LatestBefore(ctx context.Context, accountIDs []string, date time.Time) ([]Snapshot, error) {
	latest := make(map[string]Snapshot)
	for _, s := range m.filter(accountIDs, func(s Snapshot) bool { return s.Date.Before(date) }) {
		latest[s.AccountID] = s
	}
	out := make([]Snapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySnapshots) filter(accountIDs []string, keep func(Snapshot) bool) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}
	var out []Snapshot
	for _, s := range m.items {
		if wanted[s.AccountID] && keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (m *memorySnapshots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// memoryAccounts implements AccountFinder and AccountStore
type memoryAccounts struct {
	mu       sync.Mutex
	accounts []*account.Account
}

func (m *memoryAccounts) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAccounts) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	linkID := params.BankLinkID
	acc := &account.Account{
		ID:               params.BankLinkID + "/" + params.ExternalID,
		UserID:           params.UserID,
		BankLinkID:       &linkID,
		ExternalID:       params.ExternalID,
		Name:             params.Name,
		AccountType:      params.AccountType,
		Currency:         params.Currency,
		CurrentBalance:   params.CurrentBalance,
		AvailableBalance: params.AvailableBalance,
	}
	for i, a := range m.accounts {
		if a.ID == acc.ID {
			m.accounts[i] = acc
			return acc, nil
		}
	}
	m.accounts = append(m.accounts, acc)
	return acc, nil
}

type statusUpdate struct {
	status    string
	lastError string
}

// fakeLinks implements LinkStore
type fakeLinks struct {
	mu       sync.Mutex
	links    []*banklink.BankLink
	statuses map[string]statusUpdate
	synced   map[string]time.Time
	syncErr  error
}

func newFakeLinks(links ...*banklink.BankLink) *fakeLinks {
	return &fakeLinks{links: links, statuses: map[string]statusUpdate{}, synced: map[string]time.Time{}}
}

func (f *fakeLinks) ListByUserID(ctx context.Context, userID int64) ([]*banklink.BankLink, error) {
	var out []*banklink.BankLink
	for _, l := range f.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLinks) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = statusUpdate{status: status, lastError: lastError}
	return nil
}

func (f *fakeLinks) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[id] = at
	return nil
}

// fakeFetcher returns canned accounts or errors per link ID
type fakeFetcher struct {
	enabled  map[string]bool
	accounts map[string][]banklink.ProviderAccount
	errs     map[string]error
}

func (f *fakeFetcher) Enabled(provider string) bool {
	return f.enabled[provider]
}

func (f *fakeFetcher) FetchAccounts(ctx context.Context, link *banklink.BankLink) ([]banklink.ProviderAccount, error) {
	if err := f.errs[link.ID]; err != nil {
		return nil, err
	}
	return f.accounts[link.ID], nil
}

type fakeBackfiller struct {
	mu    sync.Mutex
	codes []string
}

func (f *fakeBackfiller) EnsureCurrencyAsync(ctx context.Context, codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, codes...)
}

type countingCache struct {
	invalidated []int64
}

func (c *countingCache) Invalidate(ctx context.Context, userID int64) error {
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) NotifyBalancesUpdated(ctx context.Context, userID int64) error {
	n.calls++
	return nil
}

type fakeUsers struct {
	base string
}

func (f fakeUsers) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return &user.User{ID: id, BaseCurrency: f.base}, nil
}

// rateStore is a minimal currency.Repository over a fixed rate list
type rateStore struct {
	rates []currency.ExchangeRate
}

func (r *rateStore) series(base, target string) []currency.ExchangeRate {
	var out []currency.ExchangeRate
	for _, rate := range r.rates {
		if rate.BaseCurrency == base && rate.TargetCurrency == target {
			out = append(out, rate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (r *rateStore) GetOnOrBefore(ctx context.Context, base, target string, date time.Time) (*currency.ExchangeRate, error) {
	return r.LatestBefore(ctx, base, target, date.AddDate(0, 0, 1))
}

func (r *rateStore) LatestBefore(ctx context.Context, base, target string, date time.Time) (*currency.ExchangeRate, error) {
	var found *currency.ExchangeRate
	for _, rate := range r.series(base, target) {
		if rate.Date.Before(date) {
			found = &rate
		}
	}
	if found == nil {
		return nil, currency.ErrRateNotFound
	}
	return found, nil
}

func (r *rateStore) ListRange(ctx context.Context, base, target string, start, end time.Time) ([]currency.ExchangeRate, error) {
	var out []currency.ExchangeRate
	for _, rate := range r.series(base, target) {
		if !rate.Date.Before(start) && !rate.Date.After(end) {
			out = append(out, rate)
		}
	}
	return out, nil
}

func (r *rateStore) Upsert(ctx context.Context, rates []currency.ExchangeRate) error {
	r.rates = append(r.rates, rates...)
	return nil
}

func (r *rateStore) CurrenciesInUse(ctx context.Context) ([]string, error) {
	return nil, nil
}

func eurUSD(day string, value string) currency.ExchangeRate {
	return currency.ExchangeRate{
		BaseCurrency:   "EUR",
		TargetCurrency: "USD",
		Date:           mustDate(day),
		Rate:           dec(value),
		Source:         currency.SourceFrankfurter,
	}
}
