package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines data access for stored exchange rates.
// Rates are always stored in the direction produced by NormalizePair.
type Repository interface {
	// GetOnOrBefore returns the most recent rate for the pair dated on or before date.
	// Returns ErrRateNotFound when none exists.
	GetOnOrBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)

	// LatestBefore returns the most recent rate strictly before date.
	// Returns ErrRateNotFound when none exists.
	LatestBefore(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error)

	// ListRange returns the pair's rates dated within [start, end], ordered by date.
	ListRange(ctx context.Context, base, target string, start, end time.Time) ([]ExchangeRate, error)

	// Upsert inserts or replaces rates keyed by (base, target, date).
	Upsert(ctx context.Context, rates []ExchangeRate) error

	// CurrenciesInUse returns the distinct currencies of all stored accounts.
	CurrenciesInUse(ctx context.Context) ([]string, error)
}

// HistoricalProvider serves published daily fiat rates.
type HistoricalProvider interface {
	// Supports reports whether the provider publishes rates for code.
	Supports(code string) bool

	// FetchRange returns rates keyed by YYYY-MM-DD then symbol, where
	// 1 base = rate symbol. Only published days are present; the last
	// published day before start may be included and is used as a seed.
	FetchRange(ctx context.Context, base string, symbols []string, start, end time.Time) (map[string]map[string]decimal.Decimal, error)
}

// SpotProvider serves the current USD price of a crypto asset.
type SpotProvider interface {
	// SpotRate returns how many USD one unit of code is worth now.
	SpotRate(ctx context.Context, code string) (decimal.Decimal, error)
}

// FetchedCache remembers which (pair, date) combinations were already
// requested from a provider, so that days with no published rate are not
// requested again.
type FetchedCache interface {
	FetchedDates(ctx context.Context, pair Pair, dates []string) (map[string]bool, error)
	MarkFetched(ctx context.Context, pair Pair, dates []string) error
}
