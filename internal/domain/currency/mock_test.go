package currency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	GetOnOrBeforeFunc   func(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)
	LatestBeforeFunc    func(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)
	ListRangeFunc       func(ctx context.Context, base, target string, start, end time.Time) ([]ExchangeRate, error)
	UpsertFunc          func(ctx context.Context, rates []ExchangeRate) error
	CurrenciesInUseFunc func(ctx context.Context) ([]string, error)
}

func (m *MockRepository) GetOnOrBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	if m.GetOnOrBeforeFunc != nil {
		return m.GetOnOrBeforeFunc(ctx, base, target, date)
	}
	return nil, ErrRateNotFound
}

func (m *MockRepository) LatestBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	if m.LatestBeforeFunc != nil {
		return m.LatestBeforeFunc(ctx, base, target, date)
	}
	return nil, ErrRateNotFound
}

func (m *MockRepository) ListRange(ctx context.Context, base, target string, start, end time.Time) ([]ExchangeRate, error) {
	if m.ListRangeFunc != nil {
		return m.ListRangeFunc(ctx, base, target, start, end)
	}
	return nil, nil
}

func (m *MockRepository) Upsert(ctx context.Context, rates []ExchangeRate) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rates)
	}
	return nil
}

func (m *MockRepository) CurrenciesInUse(ctx context.Context) ([]string, error) {
	if m.CurrenciesInUseFunc != nil {
		return m.CurrenciesInUseFunc(ctx)
	}
	return nil, nil
}

// memoryRepository keeps rates in a map and behaves like the SQL store.
type memoryRepository struct {
	mu       sync.Mutex
	rates    map[string]ExchangeRate // key: pair|date
	inUse    []string
	upserted int
}

func newMemoryRepository(rates ...ExchangeRate) *memoryRepository {
	r := &memoryRepository{rates: make(map[string]ExchangeRate)}
	for _, rate := range rates {
		r.put(rate)
	}
	return r
}

func (r *memoryRepository) put(rate ExchangeRate) {
	rate.Date = Day(rate.Date)
	r.rates[rate.BaseCurrency+"-"+rate.TargetCurrency+"|"+DateKey(rate.Date)] = rate
}

func (r *memoryRepository) sorted(base, target string) []ExchangeRate {
	var out []ExchangeRate
	for _, rate := range r.rates {
		if rate.BaseCurrency == base && rate.TargetCurrency == target {
			out = append(out, rate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (r *memoryRepository) GetOnOrBefore(_ context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *ExchangeRate
	for _, rate := range r.sorted(base, target) {
		if rate.Date.After(date) {
			break
		}
		found = &rate
	}
	if found == nil {
		return nil, ErrRateNotFound
	}
	return found, nil
}

func (r *memoryRepository) LatestBefore(_ context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *ExchangeRate
	for _, rate := range r.sorted(base, target) {
		if !rate.Date.Before(date) {
			break
		}
		found = &rate
	}
	if found == nil {
		return nil, ErrRateNotFound
	}
	return found, nil
}

func (r *memoryRepository) ListRange(_ context.Context, base, target string, start, end time.Time) ([]ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ExchangeRate
	for _, rate := range r.sorted(base, target) {
		if !rate.Date.Before(start) && !rate.Date.After(end) {
			out = append(out, rate)
		}
	}
	return out, nil
}

func (r *memoryRepository) Upsert(_ context.Context, rates []ExchangeRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rate := range rates {
		r.put(rate)
	}
	r.upserted += len(rates)
	return nil
}

func (r *memoryRepository) CurrenciesInUse(context.Context) ([]string, error) {
	return r.inUse, nil
}

func (r *memoryRepository) get(base, target, day string) (ExchangeRate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate, ok := r.rates[base+"-"+target+"|"+day]
	return rate, ok
}

// fakeHistorical serves published rates quoted per 1 USD.
type fakeHistorical struct {
	mu        sync.Mutex
	published map[string]map[string]decimal.Decimal // date -> symbol -> per USD
	calls     []fetchCall
	supported map[string]bool
	// widen adds the last published day before start, as Frankfurter does
	// when start is not a publication day.
	widen bool
}

type fetchCall struct {
	symbols    []string
	start, end string
}

func (f *fakeHistorical) Supports(code string) bool {
	if f.supported == nil {
		return true
	}
	return f.supported[code]
}

func (f *fakeHistorical) FetchRange(_ context.Context, base string, symbols []string, start, end time.Time) (map[string]map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{symbols: append([]string(nil), symbols...), start: DateKey(start), end: DateKey(end)})

	from := start
	if f.widen {
		if _, ok := f.published[DateKey(start)]; !ok {
			var prior time.Time
			for day := range f.published {
				if d, _ := ParseDate(day); d.Before(start) && d.After(prior) {
					prior = d
				}
			}
			if !prior.IsZero() {
				from = prior
			}
		}
	}

	out := make(map[string]map[string]decimal.Decimal)
	for day, quotes := range f.published {
		d, _ := ParseDate(day)
		if d.Before(from) || d.After(end) {
			continue
		}
		for _, s := range symbols {
			if q, ok := quotes[s]; ok {
				if out[day] == nil {
					out[day] = make(map[string]decimal.Decimal)
				}
				out[day][s] = q
			}
		}
	}
	return out, nil
}

type fakeSpot struct {
	rates map[string]decimal.Decimal
	calls int
	mu    sync.Mutex
}

func (f *fakeSpot) SpotRate(_ context.Context, code string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rates[code], nil
}

func mustDate(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rate(base, target, day, value, source string) ExchangeRate {
	return ExchangeRate{
		BaseCurrency:   base,
		TargetCurrency: target,
		Date:           mustDate(day),
		Rate:           decimal.RequireFromString(value),
		Source:         source,
	}
}
