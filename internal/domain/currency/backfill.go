package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// maxRangeDays bounds a single historical provider request.
	maxRangeDays = 366
	// provisionalDays is how far back a filled rate may still be replaced by a
	// published one, and how far back dates are not cached as fetched.
	provisionalDays = 3
	asyncTimeout    = 5 * time.Minute
	fanOutLimit     = 8
)

// Backfill fills gaps in stored exchange rates against USD.
type Backfill struct {
	repo       Repository
	historical HistoricalProvider
	spot       SpotProvider
	cache      FetchedCache
	startDate  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

// NewBackfill wires a backfill helper. spot may be nil, in which case crypto
// currencies are skipped. A nil cache falls back to an in-process cache.
func NewBackfill(repo Repository, historical HistoricalProvider, spot SpotProvider, cache FetchedCache, startDate time.Time) *Backfill {
	if cache == nil {
		cache = NewMemoryFetchedCache()
	}
	return &Backfill{
		repo:       repo,
		historical: historical,
		spot:       spot,
		cache:      cache,
		startDate:  Day(startDate),
		now:        time.Now,
		logger:     slog.Default().With(slog.String("component", "fx_backfill")),
	}
}

// currencyPlan is the per-currency working state of one run.
type currencyPlan struct {
	code    string
	pair    Pair
	crypto  bool
	known   []datedRate     // stored rates plus the seed before start, by date
	missing []time.Time     // dates to fill, ascending
	stored  map[string]bool // dates already present and final
}

// Backfill makes sure every currency has a USD rate for each day in
// [start, end]. end is clamped to today. Fiat rates come from the historical
// provider in batched range requests; days without a published rate take the
// most recent earlier rate. Crypto assets only get today's spot rate.
func (b *Backfill) Backfill(ctx context.Context, currencies []string, start, end time.Time) (*BackfillResult, error) {
	today := Day(b.now())
	start, end = Day(start), Day(end)
	if end.After(today) {
		end = today
	}
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	result := &BackfillResult{}
	codes := b.normalizeCodes(currencies, result)
	result.Currencies = codes
	if len(codes) == 0 {
		return result, nil
	}

	dates := DateRange(start, end)
	provisionalFrom := today.AddDate(0, 0, -provisionalDays)

	// load what is already stored for every currency in parallel
	plans := make([]*currencyPlan, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, code := range codes {
		g.Go(func() error {
			plan, err := b.loadPlan(gctx, code, start, end, provisionalFrom)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, plan := range plans {
		keys := make([]string, 0, len(dates))
		for _, d := range dates {
			if !plan.stored[DateKey(d)] {
				keys = append(keys, DateKey(d))
			}
		}
		result.Requested += len(dates)
		result.Existing += len(dates) - len(keys)

		cached, err := b.cache.FetchedDates(ctx, plan.pair, keys)
		if err != nil {
			b.logger.WarnContext(ctx, "fetched-rate cache unavailable", slog.String("pair", plan.pair.Key()), slog.Any("error", err))
			cached = nil
		}
		for _, k := range keys {
			if cached[k] {
				result.Existing++
				continue
			}
			d, _ := ParseDate(k)
			plan.missing = append(plan.missing, d)
		}
	}

	var rows []ExchangeRate

	fiatRows, err := b.fillFiat(ctx, plans, result)
	if err != nil {
		return nil, err
	}
	rows = append(rows, fiatRows...)

	cryptoRows, err := b.fillCrypto(ctx, plans, today, result)
	if err != nil {
		return nil, err
	}
	rows = append(rows, cryptoRows...)

	if len(rows) > 0 {
		if err := b.repo.Upsert(ctx, rows); err != nil {
			return nil, fmt.Errorf("failed to store exchange rates: %w", err)
		}
	}
	result.Stored = len(rows)

	b.markFetched(ctx, plans, rows, provisionalFrom)

	return result, nil
}

func (b *Backfill) normalizeCodes(currencies []string, result *BackfillResult) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, c := range currencies {
		c = NormalizeCode(c)
		if c == USD {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}

		if err := ValidateCode(c); err != nil {
			result.Skipped++
			continue
		}
		if IsCrypto(c) {
			if b.spot == nil {
				result.Skipped++
				continue
			}
		} else if b.historical == nil || !b.historical.Supports(c) {
			b.logger.Debug("no rate provider for currency", slog.String("currency", c))
			result.Skipped++
			continue
		}
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (b *Backfill) loadPlan(ctx context.Context, code string, start, end, provisionalFrom time.Time) (*currencyPlan, error) {
	pair := NormalizePair(code, USD)
	plan := &currencyPlan{
		code:   code,
		pair:   pair,
		crypto: IsCrypto(code),
		stored: make(map[string]bool),
	}

	seed, err := b.repo.LatestBefore(ctx, pair.Base, pair.Target, start)
	if err == nil {
		plan.known = append(plan.known, datedRate{date: Day(seed.Date), rate: seed.Rate})
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("failed to load seed rate for %s: %w", code, err)
	}

	existing, err := b.repo.ListRange(ctx, pair.Base, pair.Target, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing rates for %s: %w", code, err)
	}
	for _, r := range existing {
		d := Day(r.Date)
		plan.known = append(plan.known, datedRate{date: d, rate: r.Rate})
		// recent filled values stay replaceable by a late publication
		if r.Source == SourceFilled && !d.Before(provisionalFrom) {
			continue
		}
		plan.stored[DateKey(d)] = true
	}
	return plan, nil
}

func (b *Backfill) fillFiat(ctx context.Context, plans []*currencyPlan, result *BackfillResult) ([]ExchangeRate, error) {
	var symbols []string
	var first, last time.Time
	for _, plan := range plans {
		if plan.crypto || len(plan.missing) == 0 {
			continue
		}
		symbols = append(symbols, plan.code)
		if first.IsZero() || plan.missing[0].Before(first) {
			first = plan.missing[0]
		}
		if l := plan.missing[len(plan.missing)-1]; l.After(last) {
			last = l
		}
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	// published[code][date] = 1 code in USD
	published := make(map[string]map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		published[s] = make(map[string]decimal.Decimal)
	}

	for chunkStart := first; !chunkStart.After(last); chunkStart = chunkStart.AddDate(0, 0, maxRangeDays) {
		chunkEnd := chunkStart.AddDate(0, 0, maxRangeDays-1)
		if chunkEnd.After(last) {
			chunkEnd = last
		}

		byDate, err := b.historical.FetchRange(ctx, USD, symbols, chunkStart, chunkEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch rates %s..%s: %w", DateKey(chunkStart), DateKey(chunkEnd), err)
		}
		for day, quotes := range byDate {
			for code, perUSD := range quotes {
				if m, ok := published[code]; ok && perUSD.IsPositive() {
					m[day] = Invert(perUSD)
				}
			}
		}
	}

	var rows []ExchangeRate
	for _, plan := range plans {
		if plan.crypto || len(plan.missing) == 0 {
			continue
		}
		pub := published[plan.code]

		known := plan.known
		for day, rate := range pub {
			d, err := ParseDate(day)
			if err != nil {
				continue
			}
			known = append(known, datedRate{date: d, rate: rate})
		}
		sort.Slice(known, func(i, j int) bool { return known[i].date.Before(known[j].date) })

		for _, d := range plan.missing {
			key := DateKey(d)
			if rate, ok := pub[key]; ok {
				rows = append(rows, ExchangeRate{BaseCurrency: plan.pair.Base, TargetCurrency: plan.pair.Target, Date: d, Rate: rate, Source: SourceFrankfurter})
				result.Fetched++
				continue
			}
			prior, ok := latestBefore(known, d)
			if !ok {
				result.Skipped++
				continue
			}
			rows = append(rows, ExchangeRate{BaseCurrency: plan.pair.Base, TargetCurrency: plan.pair.Target, Date: d, Rate: prior, Source: SourceFilled})
			result.Filled++
		}
	}
	return rows, nil
}

func (b *Backfill) fillCrypto(ctx context.Context, plans []*currencyPlan, today time.Time, result *BackfillResult) ([]ExchangeRate, error) {
	var (
		mu   sync.Mutex
		rows []ExchangeRate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, plan := range plans {
		if !plan.crypto || len(plan.missing) == 0 {
			continue
		}

		wantsToday := false
		for _, d := range plan.missing {
			if d.Equal(today) {
				wantsToday = true
				continue
			}
			mu.Lock()
			result.Skipped++
			mu.Unlock()
		}
		if !wantsToday {
			continue
		}

		g.Go(func() error {
			rate, err := b.spot.SpotRate(gctx, plan.code)
			if err != nil {
				return fmt.Errorf("failed to fetch spot rate for %s: %w", plan.code, err)
			}
			mu.Lock()
			defer mu.Unlock()
			rows = append(rows, ExchangeRate{BaseCurrency: plan.pair.Base, TargetCurrency: plan.pair.Target, Date: today, Rate: rate, Source: SourceTatum})
			result.Fetched++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// markFetched records dates that need no further provider requests: every
// fiat date that received a rate, except recent ones that were only filled.
// Skipped dates stay unmarked so a later run can retry them.
func (b *Backfill) markFetched(ctx context.Context, plans []*currencyPlan, rows []ExchangeRate, provisionalFrom time.Time) {
	covered := make(map[string]string, len(rows))
	for _, r := range rows {
		covered[r.BaseCurrency+DateKey(r.Date)] = r.Source
	}

	for _, plan := range plans {
		if plan.crypto || len(plan.missing) == 0 {
			continue
		}
		keys := make([]string, 0, len(plan.missing))
		for _, d := range plan.missing {
			source, ok := covered[plan.pair.Base+DateKey(d)]
			if !ok || (source == SourceFilled && !d.Before(provisionalFrom)) {
				continue
			}
			keys = append(keys, DateKey(d))
		}
		if len(keys) == 0 {
			continue
		}
		if err := b.cache.MarkFetched(ctx, plan.pair, keys); err != nil {
			b.logger.WarnContext(ctx, "failed to mark rates fetched", slog.String("pair", plan.pair.Key()), slog.Any("error", err))
		}
	}
}

// EnsureCurrency backfills code from the configured start date to today.
// Errors are logged, never returned.
func (b *Backfill) EnsureCurrency(ctx context.Context, code string) {
	code = NormalizeCode(code)
	if code == USD || code == "" {
		return
	}

	res, err := b.Backfill(ctx, []string{code}, b.startDate, b.now())
	if err != nil {
		b.logger.ErrorContext(ctx, "currency backfill failed", slog.String("currency", code), slog.Any("error", err))
		return
	}
	b.logger.InfoContext(ctx, "currency backfill complete",
		slog.String("currency", code),
		slog.Int("fetched", res.Fetched),
		slog.Int("filled", res.Filled),
		slog.Int("existing", res.Existing),
	)
}

// EnsureCurrencyAsync runs EnsureCurrency for each code in the background.
// The work outlives ctx's cancellation but keeps its values.
func (b *Backfill) EnsureCurrencyAsync(ctx context.Context, codes ...string) {
	bg := context.WithoutCancel(ctx)
	for _, code := range codes {
		go func() {
			ctx, cancel := context.WithTimeout(bg, asyncTimeout)
			defer cancel()
			b.EnsureCurrency(ctx, code)
		}()
	}
}

// RefreshRecent backfills the last days days for every currency in use.
func (b *Backfill) RefreshRecent(ctx context.Context, days int) (*BackfillResult, error) {
	if days < 1 {
		days = 1
	}
	codes, err := b.repo.CurrenciesInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies in use: %w", err)
	}

	today := Day(b.now())
	return b.Backfill(ctx, codes, today.AddDate(0, 0, -(days-1)), today)
}

func latestBefore(points []datedRate, d time.Time) (decimal.Decimal, bool) {
	i := sort.Search(len(points), func(i int) bool { return !points[i].date.Before(d) })
	if i == 0 {
		return decimal.Zero, false
	}
	return points[i-1].rate, true
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrRateNotFound)
}
