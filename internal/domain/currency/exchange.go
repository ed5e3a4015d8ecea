package currency

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeService answers rate and conversion questions from stored rates.
type ExchangeService struct {
	repo Repository
}

func NewExchangeService(repo Repository) *ExchangeService {
	return &ExchangeService{repo: repo}
}

// GetRate returns how many units of to one unit of from buys on date.
// Missing days use the most recent earlier rate. Pairs without stored data
// are crossed through USD.
func (s *ExchangeService) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if err := ValidateCode(from); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateCode(to); err != nil {
		return decimal.Zero, err
	}

	date = Day(date)
	pair := NormalizePair(from, to)
	if pair.Identity {
		return decimal.NewFromInt(1), nil
	}

	stored, err := s.repo.GetOnOrBefore(ctx, pair.Base, pair.Target, date)
	if err == nil {
		return pair.Apply(stored.Rate), nil
	}
	if !errors.Is(err, ErrRateNotFound) {
		return decimal.Zero, fmt.Errorf("failed to load rate %s on %s: %w", pair.Key(), DateKey(date), err)
	}

	if from == USD || to == USD {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateNotFound, from, to, DateKey(date))
	}

	fromUSD, err := s.GetRate(ctx, from, USD, date)
	if err != nil {
		return decimal.Zero, err
	}
	usdTo, err := s.GetRate(ctx, USD, to, date)
	if err != nil {
		return decimal.Zero, err
	}
	return fromUSD.Mul(usdTo), nil
}

// Convert converts amount from one currency to another on date, rounded to
// the target currency's decimal places.
func (s *ExchangeService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (Money, error) {
	rate, err := s.GetRate(ctx, from, to, date)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(amount.Mul(rate), to), nil
}

// LoadTable preloads every rate needed to convert the given currencies into
// target for each day in [start, end].
func (s *ExchangeService) LoadTable(ctx context.Context, currencies []string, target string, start, end time.Time) (*RateTable, error) {
	target = NormalizeCode(target)
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	table := &RateTable{target: target, series: make(map[string][]datedRate)}

	load := func(pair Pair) error {
		if _, ok := table.series[pair.Key()]; ok || pair.Identity {
			return nil
		}
		points := make([]datedRate, 0)

		seed, err := s.repo.LatestBefore(ctx, pair.Base, pair.Target, start)
		switch {
		case err == nil:
			points = append(points, datedRate{date: Day(seed.Date), rate: seed.Rate})
		case !errors.Is(err, ErrRateNotFound):
			return fmt.Errorf("failed to load seed rate %s: %w", pair.Key(), err)
		}

		rates, err := s.repo.ListRange(ctx, pair.Base, pair.Target, start, end)
		if err != nil {
			return fmt.Errorf("failed to load rates %s: %w", pair.Key(), err)
		}
		for _, r := range rates {
			points = append(points, datedRate{date: Day(r.Date), rate: r.Rate})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })
		table.series[pair.Key()] = points
		return nil
	}

	seen := make(map[string]struct{})
	for _, c := range currencies {
		c = NormalizeCode(c)
		if _, ok := seen[c]; ok || c == target {
			continue
		}
		seen[c] = struct{}{}

		if err := load(NormalizePair(c, target)); err != nil {
			return nil, err
		}
		if c != USD && target != USD {
			if err := load(NormalizePair(c, USD)); err != nil {
				return nil, err
			}
			if err := load(NormalizePair(target, USD)); err != nil {
				return nil, err
			}
		}
	}

	return table, nil
}

type datedRate struct {
	date time.Time
	rate decimal.Decimal
}

// RateTable is an in-memory snapshot of stored rates into one target currency.
// It is read-only once built and safe for concurrent use.
type RateTable struct {
	target string
	series map[string][]datedRate
}

// Target is the currency every lookup converts into.
func (t *RateTable) Target() string {
	return t.target
}

// Rate returns the from->target rate on date using the same fill-forward and
// USD cross rules as ExchangeService.GetRate.
func (t *RateTable) Rate(from string, date time.Time) (decimal.Decimal, bool) {
	from = NormalizeCode(from)
	date = Day(date)
	if from == t.target {
		return decimal.NewFromInt(1), true
	}

	if r, ok := t.lookup(NormalizePair(from, t.target), date); ok {
		return r, true
	}
	if from == USD || t.target == USD {
		return decimal.Zero, false
	}

	fromUSD, ok := t.lookup(NormalizePair(from, USD), date)
	if !ok {
		return decimal.Zero, false
	}
	usdTo, ok := t.lookup(NormalizePair(USD, t.target), date)
	if !ok {
		return decimal.Zero, false
	}
	return fromUSD.Mul(usdTo), true
}

// Convert converts amount into the table's target currency on date.
func (t *RateTable) Convert(amount decimal.Decimal, from string, date time.Time) (Money, bool) {
	rate, ok := t.Rate(from, date)
	if !ok {
		return Money{}, false
	}
	return NewMoney(amount.Mul(rate), t.target), true
}

func (t *RateTable) lookup(pair Pair, date time.Time) (decimal.Decimal, bool) {
	points := t.series[pair.Key()]
	// first point strictly after date; the one before it is the fill-forward value
	i := sort.Search(len(points), func(i int) bool { return points[i].date.After(date) })
	if i == 0 {
		return decimal.Zero, false
	}
	return pair.Apply(points[i-1].rate), true
}
