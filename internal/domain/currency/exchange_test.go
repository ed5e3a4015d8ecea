package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExchangeService_GetRate(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository(
		rate("EUR", "USD", "2024-01-02", "1.10", SourceFrankfurter),
		rate("EUR", "USD", "2024-01-05", "1.20", SourceFrankfurter),
		rate("GBP", "USD", "2024-01-02", "1.25", SourceFrankfurter),
		rate("BRL", "EUR", "2024-01-02", "0.19", SourceFrankfurter),
	)
	svc := NewExchangeService(repo)

	tests := []struct {
		name    string
		from    string
		to      string
		date    string
		want    string
		wantErr error
	}{
		{name: "identity", from: "EUR", to: "eur", date: "2024-01-02", want: "1"},
		{name: "direct", from: "EUR", to: "USD", date: "2024-01-02", want: "1.1"},
		{name: "fill forward", from: "EUR", to: "USD", date: "2024-01-04", want: "1.1"},
		{name: "later rate", from: "EUR", to: "USD", date: "2024-01-06", want: "1.2"},
		{name: "inverted", from: "USD", to: "EUR", date: "2024-01-05", want: decimal.NewFromInt(1).DivRound(decimal.RequireFromString("1.2"), rateScale).String()},
		{name: "stored non-USD pair", from: "BRL", to: "EUR", date: "2024-01-03", want: "0.19"},
		{name: "cross via USD", from: "EUR", to: "GBP", date: "2024-01-02", want: decimal.RequireFromString("1.10").Mul(decimal.NewFromInt(1).DivRound(decimal.RequireFromString("1.25"), rateScale)).String()},
		{name: "before first rate", from: "EUR", to: "USD", date: "2023-12-31", wantErr: ErrRateNotFound},
		{name: "invalid code", from: "EU", to: "USD", date: "2024-01-02", wantErr: ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetRate(ctx, tt.from, tt.to, mustDate(tt.date))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("rate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExchangeService_GetRate_RepositoryError(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewExchangeService(&MockRepository{
		GetOnOrBeforeFunc: func(ctx context.Context, base, target string, date time.Time) (*ExchangeRate, error) {
			return nil, boom
		},
	})

	_, err := svc.GetRate(context.Background(), "EUR", "USD", mustDate("2024-01-02"))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func TestExchangeService_Convert(t *testing.T) {
	repo := newMemoryRepository(rate("JPY", "USD", "2024-01-02", "0.0070", SourceFrankfurter))
	svc := NewExchangeService(repo)

	got, err := svc.Convert(context.Background(), decimal.NewFromInt(100), "USD", "JPY", mustDate("2024-01-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Currency != "JPY" || got.Amount.String() != "14286" {
		t.Errorf("converted = %s", got)
	}
}

func TestExchangeService_LoadTable(t *testing.T) {
	repo := newMemoryRepository(
		rate("EUR", "USD", "2023-12-29", "1.05", SourceFrankfurter),
		rate("EUR", "USD", "2024-01-03", "1.10", SourceFrankfurter),
		rate("GBP", "USD", "2024-01-01", "1.25", SourceFrankfurter),
	)
	svc := NewExchangeService(repo)

	table, err := svc.LoadTable(context.Background(), []string{"EUR", "usd", "EUR"}, "USD", mustDate("2024-01-01"), mustDate("2024-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		from string
		date string
		want string
		ok   bool
	}{
		{"EUR", "2024-01-01", "1.05", true}, // seeded from before the range
		{"EUR", "2024-01-03", "1.1", true},
		{"EUR", "2024-01-05", "1.1", true},
		{"USD", "2024-01-05", "1", true},
		{"GBP", "2024-01-02", "0", false}, // not requested
	}
	for _, tt := range tests {
		t.Run(tt.from+" "+tt.date, func(t *testing.T) {
			got, ok := table.Rate(tt.from, mustDate(tt.date))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("rate = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := svc.LoadTable(context.Background(), []string{"EUR"}, "USD", mustDate("2024-01-05"), mustDate("2024-01-01")); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestRateTable_CrossRate(t *testing.T) {
	repo := newMemoryRepository(
		rate("EUR", "USD", "2024-01-01", "1.10", SourceFrankfurter),
		rate("GBP", "USD", "2024-01-01", "1.25", SourceFrankfurter),
	)
	svc := NewExchangeService(repo)

	table, err := svc.LoadTable(context.Background(), []string{"EUR", "GBP"}, "GBP", mustDate("2024-01-01"), mustDate("2024-01-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, ok := table.Convert(decimal.NewFromInt(100), "EUR", mustDate("2024-01-02"))
	if !ok {
		t.Fatal("expected a cross rate")
	}
	if m.Currency != "GBP" || m.Amount.String() != "88" {
		t.Errorf("converted = %s, want 88.00 GBP", m)
	}
	if table.Target() != "GBP" {
		t.Errorf("Target() = %s", table.Target())
	}
}
