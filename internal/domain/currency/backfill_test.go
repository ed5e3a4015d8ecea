package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestBackfill(repo Repository, hist HistoricalProvider, spot SpotProvider, cache FetchedCache) *Backfill {
	b := NewBackfill(repo, hist, spot, cache, mustDate("2024-01-01"))
	b.now = func() time.Time { return mustDate("2024-01-10").Add(15 * time.Hour) }
	return b
}

func perUSD(v string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{"EUR": decimal.RequireFromString(v)}
}

func TestBackfill_FillsWeekendFromFriday(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	hist := &fakeHistorical{published: map[string]map[string]decimal.Decimal{
		"2024-01-05": perUSD("0.8"),
		"2024-01-08": perUSD("0.5"),
	}}
	cache := NewMemoryFetchedCache()
	b := newTestBackfill(repo, hist, nil, cache)

	res, err := b.Backfill(ctx, []string{"eur"}, mustDate("2024-01-05"), mustDate("2024-01-08"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Requested != 4 || res.Fetched != 2 || res.Filled != 2 || res.Stored != 4 {
		t.Errorf("result = %+v", res)
	}
	if len(hist.calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(hist.calls))
	}

	tests := []struct {
		day    string
		want   string
		source string
	}{
		{"2024-01-05", "1.25", SourceFrankfurter},
		{"2024-01-06", "1.25", SourceFilled},
		{"2024-01-07", "1.25", SourceFilled},
		{"2024-01-08", "2", SourceFrankfurter},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			got, ok := repo.get("EUR", "USD", tt.day)
			if !ok {
				t.Fatalf("no rate stored for %s", tt.day)
			}
			if !got.Rate.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("rate = %s, want %s", got.Rate, tt.want)
			}
			if got.Source != tt.source {
				t.Errorf("source = %s, want %s", got.Source, tt.source)
			}
		})
	}

	// the filled day inside the provisional window stays unmarked
	fetched, _ := cache.FetchedDates(ctx, NormalizePair("EUR", "USD"), []string{"2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08"})
	if !fetched["2024-01-05"] || !fetched["2024-01-06"] || !fetched["2024-01-08"] {
		t.Errorf("expected published and old filled dates cached, got %v", fetched)
	}
	if fetched["2024-01-07"] {
		t.Error("provisional filled date should not be cached")
	}
}

func TestBackfill_SeedsFromWidenedPublicationDay(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	hist := &fakeHistorical{widen: true, published: map[string]map[string]decimal.Decimal{
		"2023-12-29": perUSD("0.8"),
		"2024-01-02": perUSD("0.5"),
		"2024-01-03": perUSD("0.4"),
	}}
	cache := NewMemoryFetchedCache()
	b := newTestBackfill(repo, hist, nil, cache)

	// 2024-01-01 is a holiday, so the first requested day has no publication
	res, err := b.Backfill(ctx, []string{"EUR"}, mustDate("2024-01-01"), mustDate("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fetched != 2 || res.Filled != 1 || res.Skipped != 0 || res.Stored != 3 {
		t.Errorf("result = %+v", res)
	}

	got, ok := repo.get("EUR", "USD", "2024-01-01")
	if !ok {
		t.Fatal("2024-01-01 was not filled")
	}
	if !got.Rate.Equal(decimal.RequireFromString("1.25")) || got.Source != SourceFilled {
		t.Errorf("2024-01-01 = %s (%s), want 1.25 filled", got.Rate, got.Source)
	}
	if _, ok := repo.get("EUR", "USD", "2023-12-29"); ok {
		t.Error("seed day outside the range should not be stored")
	}
}

func TestBackfill_SkippedDatesNotMarkedFetched(t *testing.T) {
	ctx := context.Background()
	hist := &fakeHistorical{published: map[string]map[string]decimal.Decimal{
		"2024-01-03": perUSD("0.5"),
	}}
	cache := NewMemoryFetchedCache()
	b := newTestBackfill(newMemoryRepository(), hist, nil, cache)

	res, err := b.Backfill(ctx, []string{"EUR"}, mustDate("2024-01-01"), mustDate("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped != 2 || res.Fetched != 1 {
		t.Errorf("result = %+v", res)
	}

	fetched, _ := cache.FetchedDates(ctx, NormalizePair("EUR", "USD"), []string{"2024-01-01", "2024-01-02", "2024-01-03"})
	if fetched["2024-01-01"] || fetched["2024-01-02"] {
		t.Errorf("skipped dates marked fetched: %v", fetched)
	}
	if !fetched["2024-01-03"] {
		t.Error("published date should be marked fetched")
	}

	// a second run asks the provider again for the skipped dates
	if _, err := b.Backfill(ctx, []string{"EUR"}, mustDate("2024-01-01"), mustDate("2024-01-03")); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(hist.calls) != 2 || hist.calls[1].start != "2024-01-01" {
		t.Errorf("calls = %+v, want a retry from 2024-01-01", hist.calls)
	}
}

func TestBackfill_ExistingRatesNotRefetched(t *testing.T) {
	repo := newMemoryRepository(
		rate("EUR", "USD", "2024-01-02", "1.1", SourceFrankfurter),
		rate("EUR", "USD", "2024-01-03", "1.1", SourceFrankfurter),
	)
	hist := &fakeHistorical{}
	b := newTestBackfill(repo, hist, nil, nil)

	res, err := b.Backfill(context.Background(), []string{"EUR"}, mustDate("2024-01-02"), mustDate("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(hist.calls))
	}
	if res.Existing != 2 || res.Stored != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestBackfill_CachedDatesSkipped(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryFetchedCache()
	_ = cache.MarkFetched(ctx, NormalizePair("EUR", "USD"), []string{"2024-01-02", "2024-01-03"})

	hist := &fakeHistorical{}
	b := newTestBackfill(newMemoryRepository(), hist, nil, cache)

	res, err := b.Backfill(ctx, []string{"EUR"}, mustDate("2024-01-02"), mustDate("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(hist.calls))
	}
	if res.Existing != 2 {
		t.Errorf("Existing = %d, want 2", res.Existing)
	}
}

func TestBackfill_ProvisionalFillReplaced(t *testing.T) {
	repo := newMemoryRepository(rate("EUR", "USD", "2024-01-09", "1.25", SourceFilled))
	hist := &fakeHistorical{published: map[string]map[string]decimal.Decimal{
		"2024-01-09": perUSD("0.5"),
	}}
	b := newTestBackfill(repo, hist, nil, nil)

	res, err := b.Backfill(context.Background(), []string{"EUR"}, mustDate("2024-01-09"), mustDate("2024-01-09"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fetched != 1 {
		t.Errorf("Fetched = %d, want 1", res.Fetched)
	}
	got, _ := repo.get("EUR", "USD", "2024-01-09")
	if got.Source != SourceFrankfurter || !got.Rate.Equal(decimal.NewFromInt(2)) {
		t.Errorf("stored = %+v", got)
	}
}

func TestBackfill_CryptoTodayOnly(t *testing.T) {
	repo := newMemoryRepository()
	hist := &fakeHistorical{}
	spot := &fakeSpot{rates: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(42000)}}
	b := newTestBackfill(repo, hist, spot, nil)

	// end is clamped to today
	res, err := b.Backfill(context.Background(), []string{"BTC"}, mustDate("2024-01-08"), mustDate("2024-02-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Requested != 3 || res.Fetched != 1 || res.Skipped != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(hist.calls) != 0 {
		t.Errorf("crypto must not hit the historical provider")
	}
	got, ok := repo.get("BTC", "USD", "2024-01-10")
	if !ok || got.Source != SourceTatum || !got.Rate.Equal(decimal.NewFromInt(42000)) {
		t.Errorf("stored = %+v, ok = %v", got, ok)
	}
}

func TestBackfill_ChunksLongRanges(t *testing.T) {
	hist := &fakeHistorical{}
	b := newTestBackfill(newMemoryRepository(), hist, nil, nil)

	if _, err := b.Backfill(context.Background(), []string{"EUR", "GBP"}, mustDate("2022-01-01"), mustDate("2024-01-10")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist.calls) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(hist.calls))
	}
	for _, c := range hist.calls {
		start, end := mustDate(c.start), mustDate(c.end)
		if days := len(DateRange(start, end)); days > maxRangeDays {
			t.Errorf("chunk %s..%s spans %d days", c.start, c.end, days)
		}
		if len(c.symbols) != 2 {
			t.Errorf("expected both symbols batched, got %v", c.symbols)
		}
	}
}

func TestBackfill_Filtering(t *testing.T) {
	hist := &fakeHistorical{supported: map[string]bool{"EUR": true}}
	b := newTestBackfill(newMemoryRepository(), hist, nil, nil)

	res, err := b.Backfill(context.Background(), []string{"USD", "EUR", "eur", "XXX", "12", "BTC"}, mustDate("2024-01-09"), mustDate("2024-01-09"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Currencies) != 1 || res.Currencies[0] != "EUR" {
		t.Errorf("Currencies = %v, want [EUR]", res.Currencies)
	}
	// XXX unsupported, 12 invalid, BTC without a spot provider
	if res.Skipped < 3 {
		t.Errorf("Skipped = %d, want at least 3", res.Skipped)
	}
}

func TestBackfill_InvalidRange(t *testing.T) {
	b := newTestBackfill(newMemoryRepository(), &fakeHistorical{}, nil, nil)
	_, err := b.Backfill(context.Background(), []string{"EUR"}, mustDate("2024-01-09"), mustDate("2024-01-02"))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestBackfill_RefreshRecent(t *testing.T) {
	repo := newMemoryRepository()
	repo.inUse = []string{"EUR", "USD"}
	hist := &fakeHistorical{published: map[string]map[string]decimal.Decimal{
		"2024-01-08": perUSD("0.5"),
	}}
	b := newTestBackfill(repo, hist, nil, nil)

	res, err := b.RefreshRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Requested != 3 || res.Fetched != 1 || res.Filled != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(hist.calls) != 1 || hist.calls[0].start != "2024-01-08" || hist.calls[0].end != "2024-01-10" {
		t.Errorf("calls = %+v", hist.calls)
	}
}

func TestBackfill_EnsureCurrency(t *testing.T) {
	repo := newMemoryRepository()
	hist := &fakeHistorical{published: map[string]map[string]decimal.Decimal{
		"2024-01-01": perUSD("0.5"),
	}}
	b := newTestBackfill(repo, hist, nil, nil)

	b.EnsureCurrency(context.Background(), "eur")

	if _, ok := repo.get("EUR", "USD", "2024-01-10"); !ok {
		t.Error("expected rates filled through today")
	}
	if repo.upserted != 10 {
		t.Errorf("upserted = %d, want 10", repo.upserted)
	}
}
