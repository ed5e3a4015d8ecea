package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
)

// BalanceReader returns converted balances on a single day.
type BalanceReader interface {
	LatestBalances(ctx context.Context, userID int64, code string, date time.Time) (*balance.Series, error)
}

// LinkLister lists a user's bank links.
type LinkLister interface {
	ListByUserID(ctx context.Context, userID int64) ([]*banklink.BankLink, error)
}

var linkStatuses = []string{
	banklink.StatusActive,
	banklink.StatusLoginRequired,
	banklink.StatusError,
	banklink.StatusRevoked,
}

// Service builds dashboard summaries
type Service struct {
	balances BalanceReader
	links    LinkLister
	cache    Cache
	now      func() time.Time
}

// NewService creates a dashboard service. cache may be nil.
func NewService(balances BalanceReader, links LinkLister, cache Cache) *Service {
	return &Service{balances: balances, links: links, cache: cache, now: time.Now}
}

// Summary returns the user's dashboard in code, or in their base currency
// when code is empty.
func (s *Service) Summary(ctx context.Context, userID int64, code string) (*Summary, error) {
	code = currency.NormalizeCode(code)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, userID, code)
		if err != nil {
			slog.WarnContext(ctx, "dashboard cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	summary, err := s.build(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, code, summary); err != nil {
			slog.WarnContext(ctx, "dashboard cache write failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return summary, nil
}

// Invalidate drops the user's cached summaries.
func (s *Service) Invalidate(ctx context.Context, userID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) build(ctx context.Context, userID int64, code string) (*Summary, error) {
	today := currency.Day(s.now())

	current, err := s.balances.LatestBalances(ctx, userID, code, today)
	if err != nil {
		return nil, err
	}
	past, err := s.balances.LatestBalances(ctx, userID, current.Currency, today.AddDate(0, 0, -ChangeWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load past balances: %w", err)
	}
	links, err := s.links.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	day := current.Days[0]
	summary := &Summary{
		Currency:     current.Currency,
		AsOf:         day.Date,
		NetWorth:     day.Total,
		Assets:       day.Assets,
		Liabilities:  day.Liabilities,
		Change:       netWorthChange(day.Total, past.Days[0]),
		Links:        linkHealth(links),
		Accounts:     day.Accounts,
		MissingRates: current.MissingRates,
	}

	institutions := make(map[string]string, len(links))
	for _, l := range links {
		institutions[l.ID] = l.InstitutionName
	}
	summary.ByType = group(day.Accounts, current.Currency, func(v balance.AccountValue) string {
		return v.AccountType
	})
	summary.ByInstitution = group(day.Accounts, current.Currency, func(v balance.AccountValue) string {
		if v.BankLinkID == nil {
			return ManualInstitution
		}
		if name := institutions[*v.BankLinkID]; name != "" {
			return name
		}
		return *v.BankLinkID
	})

	return summary, nil
}

func netWorthChange(now currency.Money, past balance.Day) *Change {
	amount, err := now.Add(past.Total.Neg())
	if err != nil {
		return nil
	}
	change := &Change{Since: past.Date, Amount: amount}
	if !past.Total.IsZero() {
		pct := amount.Amount.Div(past.Total.Amount.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
		change.Percent = &pct
	}
	return change
}

func linkHealth(links []*banklink.BankLink) map[string]int {
	health := make(map[string]int, len(linkStatuses))
	for _, s := range linkStatuses {
		health[s] = 0
	}
	for _, l := range links {
		health[l.Status]++
	}
	return health
}

// group sums converted values by key, largest total first. Unconverted
// accounts are left out.
func group(values []balance.AccountValue, code string, key func(balance.AccountValue) string) []Breakdown {
	index := make(map[string]int)
	out := make([]Breakdown, 0)
	for _, v := range values {
		if v.Converted == nil {
			continue
		}
		k := key(v)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Breakdown{Key: k, Total: currency.Zero(code)})
		}
		out[i].Total, _ = out[i].Total.Add(*v.Converted)
		out[i].Accounts++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.Amount.Abs().GreaterThan(out[j].Total.Amount.Abs())
	})
	return out
}
