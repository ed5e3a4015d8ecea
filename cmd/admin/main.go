package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/infrastructure/crypto"
	"balancebook/internal/infrastructure/frankfurter"
	"balancebook/internal/infrastructure/plaid"
	"balancebook/internal/infrastructure/postgres"
	"balancebook/internal/infrastructure/redis"
	"balancebook/internal/infrastructure/tatum"
	"balancebook/internal/shared/config"
	"balancebook/internal/shared/logging"
)

const usage = `Balancebook Admin CLI - Management commands for the Balancebook API

Usage:
  admin <command> [options]

Commands:
  migrate          Apply pending database migrations
  snapshot         Capture today's balance snapshots
  backfill-rates   Load historical exchange rates for a date range
  refresh-rates    Refresh the last days of rates for every currency in use

Examples:
  # Apply migrations
  admin migrate

  # Capture balances for specific users
  admin snapshot --user-id=1,2,3

  # Capture balances for every user with links or accounts
  admin snapshot --all --workers=8

  # Backfill two currencies for 2024
  admin backfill-rates --currencies=EUR,GBP --start=2024-01-01 --end=2024-12-31

  # Refresh the last 14 days
  admin refresh-rates --days=14
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "snapshot":
		runSnapshot(os.Args[2:])
	case "backfill-rates":
		runBackfillRates(os.Args[2:])
	case "refresh-rates":
		runRefreshRates(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}

// setup loads config, initialises logging and connects to the database.
func setup() (*config.Config, *postgres.DB) {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, "balancebook-admin")

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		fatal("failed to connect to database", err)
	}
	slog.Info("connected to database")
	return cfg, db
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	_, db := setup()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		fatal("migration failed", err)
	}
	slog.Info("migrations applied")
}

func runSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to capture (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Capture every user with links or accounts")
	workers := fs.Int("workers", 4, "Number of users captured concurrently")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin snapshot [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin snapshot --user-id=1")
		fmt.Println("  admin snapshot --all --workers=8 --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userIDStr == "" && !*allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	cfg, db := setup()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	accountRepo := postgres.NewAccountRepository(db)
	linkRepo := postgres.NewBankLinkRepository(db)

	var userIDs []int64
	if *allUsers {
		for _, list := range []func(context.Context) ([]int64, error){linkRepo.ListUserIDs, accountRepo.ListUserIDs} {
			ids, err := list(ctx)
			if err != nil {
				fatal("failed to list users", err)
			}
			userIDs = append(userIDs, ids...)
		}
		slices.Sort(userIDs)
		userIDs = slices.Compact(userIDs)
	} else {
		ids, err := parseUserIDs(*userIDStr)
		if err != nil {
			fatal("invalid --user-id", err)
		}
		userIDs = ids
	}
	if len(userIDs) == 0 {
		slog.Info("no users to process")
		return
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		fatal("failed to create encryptor", err)
	}
	providers := []banklink.Provider{tatum.NewClient(cfg.Tatum.APIKey, cfg.Tatum.BaseURL)}
	if cfg.Plaid.Enabled() {
		providers = append(providers, plaid.NewClient(plaid.Config{
			ClientID:    cfg.Plaid.ClientID,
			Secret:      cfg.Plaid.Secret,
			Environment: cfg.Plaid.Environment,
		}))
	}

	deps := balance.SnapshotDeps{
		Snapshots: postgres.NewSnapshotRepository(db),
		Accounts:  accountRepo,
		Links:     linkRepo,
		Fetcher:   banklink.NewFetcher(encryptor, providers...),
	}
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			slog.Warn("redis unavailable, dashboards will refresh on expiry", slog.Any("error", err))
		} else {
			defer client.Close()
			deps.Cache = redis.NewDashboardCache(client)
		}
	}
	snapshots := balance.NewSnapshotService(deps)

	slog.Info("starting snapshot capture", slog.Int("users", len(userIDs)), slog.Int("workers", *workers))
	startTime := time.Now()

	var (
		mu      sync.Mutex
		results = make(map[int64]*balance.CaptureResult, len(userIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for _, id := range userIDs {
		g.Go(func() error {
			result, err := snapshots.CaptureUser(gctx, id)
			if err != nil {
				slog.Error("capture failed", slog.Int64("user_id", id), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, id := range userIDs {
		if r, ok := results[id]; ok {
			printCaptureResult(r)
		}
	}
	slog.Info("snapshot capture completed", slog.Duration("elapsed", time.Since(startTime)))
}

func printCaptureResult(result *balance.CaptureResult) {
	fmt.Printf("\n=== User %d ===\n", result.UserID)
	fmt.Printf("  Links:      %d\n", result.Links)
	fmt.Printf("  Accounts:   %d\n", result.Accounts)
	fmt.Printf("  Snapshots:  %d\n", result.Snapshots)

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:     %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more errors\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %s: %s\n", e.LinkID, e.Error)
		}
	}
}

// newBackfill wires the rate backfill with the Redis fetched cache when
// available.
func newBackfill(ctx context.Context, cfg *config.Config, db *postgres.DB) (*currency.Backfill, func()) {
	var (
		cache   currency.FetchedCache
		cleanup = func() {}
	)
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			slog.Warn("redis unavailable, fetched dates are not remembered", slog.Any("error", err))
		} else {
			cache = redis.NewFetchedCache(client)
			cleanup = func() { client.Close() }
		}
	}

	backfill := currency.NewBackfill(
		postgres.NewExchangeRateRepository(db),
		frankfurter.NewClient(cfg.FX.BaseURL),
		tatum.NewClient(cfg.Tatum.APIKey, cfg.Tatum.BaseURL),
		cache,
		cfg.FX.BackfillStartDate,
	)
	return backfill, cleanup
}

func runBackfillRates(args []string) {
	fs := flag.NewFlagSet("backfill-rates", flag.ExitOnError)

	currencies := fs.String("currencies", "", "Currency codes (comma-separated); default: every currency in use")
	startStr := fs.String("start", "", "First date, YYYY-MM-DD (default: FX_BACKFILL_START_DATE)")
	endStr := fs.String("end", "", "Last date, YYYY-MM-DD (default: today)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, db := setup()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start, end := cfg.FX.BackfillStartDate, currency.Day(time.Now())
	var err error
	if *startStr != "" {
		if start, err = currency.ParseDate(*startStr); err != nil {
			fatal("invalid --start", err)
		}
	}
	if *endStr != "" {
		if end, err = currency.ParseDate(*endStr); err != nil {
			fatal("invalid --end", err)
		}
	}

	codes := splitCodes(*currencies)
	if len(codes) == 0 {
		if codes, err = postgres.NewExchangeRateRepository(db).CurrenciesInUse(ctx); err != nil {
			fatal("failed to list currencies in use", err)
		}
	}

	backfill, cleanup := newBackfill(ctx, cfg, db)
	defer cleanup()

	slog.Info("starting rate backfill",
		slog.Any("currencies", codes),
		slog.String("start", currency.DateKey(start)),
		slog.String("end", currency.DateKey(end)),
	)
	result, err := backfill.Backfill(ctx, codes, start, end)
	if err != nil {
		fatal("backfill failed", err)
	}
	printBackfillResult(result)
}

func runRefreshRates(args []string) {
	fs := flag.NewFlagSet("refresh-rates", flag.ExitOnError)
	days := fs.Int("days", 0, "Number of days to refresh (default: FX_REFRESH_DAYS)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, db := setup()
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *days <= 0 {
		*days = cfg.FX.RefreshDays
	}

	backfill, cleanup := newBackfill(ctx, cfg, db)
	defer cleanup()

	result, err := backfill.RefreshRecent(ctx, *days)
	if err != nil {
		fatal("refresh failed", err)
	}
	printBackfillResult(result)
}

func printBackfillResult(result *currency.BackfillResult) {
	fmt.Printf("\n=== Exchange rates ===\n")
	fmt.Printf("  Currencies:  %s\n", strings.Join(result.Currencies, ", "))
	fmt.Printf("  Requested:   %d\n", result.Requested)
	fmt.Printf("  Existing:    %d\n", result.Existing)
	fmt.Printf("  Fetched:     %d\n", result.Fetched)
	fmt.Printf("  Filled:      %d\n", result.Filled)
	fmt.Printf("  Skipped:     %d\n", result.Skipped)
	fmt.Printf("  Stored:      %d\n", result.Stored)
}

// parseUserIDs parses a comma-separated list of user ids.
func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user ID %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitCodes(s string) []string {
	var codes []string
	for _, p := range strings.Split(s, ",") {
		if p = currency.NormalizeCode(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}
