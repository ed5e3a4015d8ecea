package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"balancebook/internal/domain/currency"
)

const rateColumns = `base_currency, target_currency, rate_date, rate, source, created_at`

// ExchangeRateRepository implements currency.Repository for PostgreSQL
type ExchangeRateRepository struct {
	db *DB
}

func NewExchangeRateRepository(db *DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

func (r *ExchangeRateRepository) GetOnOrBefore(ctx context.Context, base, target string, date time.Time) (*currency.ExchangeRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND rate_date <= $3
		ORDER BY rate_date DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, base, target, currency.DateKey(date))
}

func (r *ExchangeRateRepository) LatestBefore(ctx context.Context, base, target string, date time.Time) (*currency.ExchangeRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND rate_date < $3
		ORDER BY rate_date DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, base, target, currency.DateKey(date))
}

func (r *ExchangeRateRepository) ListRange(ctx context.Context, base, target string, start, end time.Time) ([]currency.ExchangeRate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND rate_date BETWEEN $3 AND $4
		ORDER BY rate_date
	`
	rows, err := r.db.QueryContext(ctx, query, base, target, currency.DateKey(start), currency.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []currency.ExchangeRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates = append(rates, *rate)
	}
	return rates, rows.Err()
}

// Upsert writes all rates in one statement; existing (pair, date) rows are replaced.
func (r *ExchangeRateRepository) Upsert(ctx context.Context, rates []currency.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	bases := make([]string, len(rates))
	targets := make([]string, len(rates))
	dates := make([]string, len(rates))
	values := make([]string, len(rates))
	sources := make([]string, len(rates))
	for i, rate := range rates {
		bases[i] = rate.BaseCurrency
		targets[i] = rate.TargetCurrency
		dates[i] = currency.DateKey(rate.Date)
		values[i] = rate.Rate.String()
		sources[i] = rate.Source
	}

	query := `
		INSERT INTO exchange_rates (base_currency, target_currency, rate_date, rate, source)
		SELECT * FROM unnest($1::text[], $2::text[], $3::date[], $4::numeric[], $5::text[])
		ON CONFLICT (base_currency, target_currency, rate_date) DO UPDATE
			SET rate = EXCLUDED.rate,
			    source = EXCLUDED.source,
			    created_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		pq.Array(bases), pq.Array(targets), pq.Array(dates), pq.Array(values), pq.Array(sources),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d exchange rates: %w", len(rates), err)
	}
	return nil
}

// CurrenciesInUse lists every non-USD currency held in an account or chosen
// as a base currency.
func (r *ExchangeRateRepository) CurrenciesInUse(ctx context.Context) ([]string, error) {
	query := `
		SELECT currency FROM accounts WHERE currency <> 'USD'
		UNION
		SELECT base_currency FROM users WHERE base_currency <> 'USD'
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies in use: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *ExchangeRateRepository) getOne(ctx context.Context, query string, args ...any) (*currency.ExchangeRate, error) {
	rate, err := scanRate(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, currency.ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	return rate, nil
}

func scanRate(row rowScanner) (*currency.ExchangeRate, error) {
	var rate currency.ExchangeRate
	err := row.Scan(&rate.BaseCurrency, &rate.TargetCurrency, &rate.Date, &rate.Rate, &rate.Source, &rate.CreatedAt)
	if err != nil {
		return nil, err
	}
	rate.Date = currency.Day(rate.Date)
	return &rate, nil
}
