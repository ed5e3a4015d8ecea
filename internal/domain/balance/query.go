package balance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/user"
)

// RateLoader preloads the rates needed to convert a set of currencies.
type RateLoader interface {
	LoadTable(ctx context.Context, currencies []string, target string, start, end time.Time) (*currency.RateTable, error)
}

// UserGetter resolves a user's base currency.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// AccountFinder lists a user's accounts.
type AccountFinder interface {
	ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error)
}

// QueryService builds converted balance series from stored snapshots
type QueryService struct {
	snapshots Repository
	accounts  AccountFinder
	users     UserGetter
	rates     RateLoader
	now       func() time.Time
}

func NewQueryService(snapshots Repository, accounts AccountFinder, users UserGetter, rates RateLoader) *QueryService {
	return &QueryService{
		snapshots: snapshots,
		accounts:  accounts,
		users:     users,
		rates:     rates,
		now:       time.Now,
	}
}

// Query returns one entry per day in the range with every selected account's
// balance filled forward from its latest snapshot and converted at that day's rate.
func (s *QueryService) Query(ctx context.Context, userID int64, params QueryParams) (*Series, error) {
	if err := s.resolve(ctx, userID, &params); err != nil {
		return nil, err
	}

	accounts, err := s.selectAccounts(ctx, userID, params.AccountIDs)
	if err != nil {
		return nil, err
	}

	history, currencies, err := s.loadHistory(ctx, accounts, params.Start, params.End)
	if err != nil {
		return nil, err
	}

	table, err := s.rates.LoadTable(ctx, currencies, params.Currency, params.Start, params.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}

	return buildSeries(accounts, history, table, params.Start, params.End), nil
}

// LatestBalances returns the single-day series for date.
func (s *QueryService) LatestBalances(ctx context.Context, userID int64, code string, date time.Time) (*Series, error) {
	if date.IsZero() {
		date = s.now()
	}
	return s.Query(ctx, userID, QueryParams{Start: date, End: date, Currency: code})
}

func (s *QueryService) resolve(ctx context.Context, userID int64, p *QueryParams) error {
	if p.End.IsZero() {
		p.End = s.now()
	}
	p.End = currency.Day(p.End)
	if p.Start.IsZero() {
		p.Start = p.End.AddDate(0, 0, -(DefaultQueryDays - 1))
	}
	p.Start = currency.Day(p.Start)

	if p.Start.After(p.End) {
		return currency.ErrInvalidRange
	}
	if days := int(p.End.Sub(p.Start).Hours()/24) + 1; days > MaxQueryDays {
		return ErrRangeTooLarge
	}

	if p.Currency == "" {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		p.Currency = u.BaseCurrency
	}
	p.Currency = currency.NormalizeCode(p.Currency)
	return currency.ValidateCode(p.Currency)
}

func (s *QueryService) selectAccounts(ctx context.Context, userID int64, ids []string) ([]*account.Account, error) {
	all, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		visible := make([]*account.Account, 0, len(all))
		for _, a := range all {
			if !a.Hidden {
				visible = append(visible, a)
			}
		}
		return visible, nil
	}

	owned := make(map[string]*account.Account, len(all))
	for _, a := range all {
		owned[a.ID] = a
	}
	selected := make([]*account.Account, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		a, ok := owned[id]
		if !ok {
			return nil, ErrForbidden
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, a)
	}
	return selected, nil
}

// loadHistory returns each account's snapshots in date order, starting with
// the latest one before start when it exists.
func (s *QueryService) loadHistory(ctx context.Context, accounts []*account.Account, start, end time.Time) (map[string][]Snapshot, []string, error) {
	history := make(map[string][]Snapshot, len(accounts))
	if len(accounts) == 0 {
		return history, nil, nil
	}

	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	seeds, err := s.snapshots.LatestBefore(ctx, ids, start)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prior snapshots: %w", err)
	}
	inRange, err := s.snapshots.ListRange(ctx, ids, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	currencySet := make(map[string]struct{})
	for _, snap := range append(seeds, inRange...) {
		history[snap.AccountID] = append(history[snap.AccountID], snap)
		currencySet[snap.Currency] = struct{}{}
	}
	for id := range history {
		points := history[id]
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	}

	currencies := make([]string, 0, len(currencySet))
	for c := range currencySet {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return history, currencies, nil
}

func buildSeries(accounts []*account.Account, history map[string][]Snapshot, table *currency.RateTable, start, end time.Time) *Series {
	target := table.Target()
	series := &Series{
		Currency:     target,
		Start:        currency.DateKey(start),
		End:          currency.DateKey(end),
		MissingRates: []MissingRate{},
	}

	missing := make(map[string][]string)
	cursor := make(map[string]int, len(accounts))

	for _, date := range currency.DateRange(start, end) {
		key := currency.DateKey(date)
		assets, liabilities := currency.Zero(target), currency.Zero(target)
		values := make([]AccountValue, 0, len(accounts))

		for _, acc := range accounts {
			points := history[acc.ID]
			i := cursor[acc.ID]
			for i < len(points) && !currency.Day(points[i].Date).After(date) {
				i++
			}
			cursor[acc.ID] = i
			if i == 0 {
				continue
			}
			snap := points[i-1]

			value := AccountValue{
				AccountID:   acc.ID,
				Name:        acc.Name,
				AccountType: acc.AccountType,
				BankLinkID:  acc.BankLinkID,
				Balance:     currency.NewMoney(snap.CurrentBalance, snap.Currency),
			}

			converted, ok := table.Convert(snap.CurrentBalance, snap.Currency, date)
			if !ok {
				dates := missing[snap.Currency]
				if len(dates) == 0 || dates[len(dates)-1] != key {
					missing[snap.Currency] = append(dates, key)
				}
				values = append(values, value)
				continue
			}
			value.Converted = &converted

			if acc.IsLiability() {
				liabilities, _ = liabilities.Add(converted)
			} else {
				assets, _ = assets.Add(converted)
			}
			values = append(values, value)
		}

		total, _ := assets.Add(liabilities.Neg())
		series.Days = append(series.Days, Day{
			Date:        key,
			Total:       total,
			Assets:      assets,
			Liabilities: liabilities,
			Accounts:    values,
		})
	}

	for code, dates := range missing {
		series.MissingRates = append(series.MissingRates, MissingRate{Currency: code, Dates: dates})
	}
	sort.Slice(series.MissingRates, func(i, j int) bool {
		return series.MissingRates[i].Currency < series.MissingRates[j].Currency
	})
	return series
}
