package main

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/dashboard"
	"balancebook/internal/domain/notification"
	"balancebook/internal/domain/transaction"
	"balancebook/internal/domain/user"
	"balancebook/internal/domain/webhook"
	"balancebook/internal/infrastructure/crypto"
	"balancebook/internal/infrastructure/firebase"
	"balancebook/internal/infrastructure/frankfurter"
	"balancebook/internal/infrastructure/plaid"
	"balancebook/internal/infrastructure/postgres"
	"balancebook/internal/infrastructure/postgres/listener"
	"balancebook/internal/infrastructure/redis"
	"balancebook/internal/infrastructure/tatum"
	httphandlers "balancebook/internal/interfaces/http"
	"balancebook/internal/shared/auth"
	"balancebook/internal/shared/config"
	"balancebook/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *goredis.Client

	// Handlers
	HealthHandler       *httphandlers.HealthHandler
	AuthHandler         *httphandlers.AuthHandler
	UserHandler         *httphandlers.UserHandler
	AccountHandler      *httphandlers.AccountHandler
	LinkHandler         *httphandlers.LinkHandler
	BalanceHandler      *httphandlers.BalanceHandler
	ExchangeRateHandler *httphandlers.ExchangeRateHandler
	TransactionHandler  *httphandlers.TransactionHandler
	WebhookHandler      *httphandlers.WebhookHandler
	NotificationHandler *httphandlers.NotificationHandler

	JWT *auth.JWT

	// Scheduler collaborators
	SnapshotService *balance.SnapshotService
	Backfill        *currency.Backfill
	AccountRepo     *postgres.AccountRepository
	LinkRepo        *postgres.BankLinkRepository

	CurrencyListener *listener.CurrencyListener
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	linkRepo := postgres.NewBankLinkRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)
	rateRepo := postgres.NewExchangeRateRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	webhookRepo := postgres.NewWebhookRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Redis is optional: without it the fetched-date cache lives in memory and
	// dashboards are computed on every request.
	var (
		redisClient    *goredis.Client
		fetchedCache   currency.FetchedCache = currency.NewMemoryFetchedCache()
		dashboardCache dashboard.Cache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("redis unavailable, using in-memory caches", slog.Any("error", err))
		} else {
			fetchedCache = redis.NewFetchedCache(redisClient)
			dashboardCache = redis.NewDashboardCache(redisClient)
			slog.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
		}
	}

	// Providers
	tatumClient := tatum.NewClient(cfg.Tatum.APIKey, cfg.Tatum.BaseURL)
	providers := []banklink.Provider{tatumClient}

	var (
		plaidClient *plaid.Client
		plaidAPI    banklink.PlaidClient
	)
	if cfg.Plaid.Enabled() {
		plaidClient = plaid.NewClient(plaid.Config{
			ClientID:     cfg.Plaid.ClientID,
			Secret:       cfg.Plaid.Secret,
			Environment:  cfg.Plaid.Environment,
			WebhookURL:   cfg.Plaid.WebhookURL,
			ClientName:   cfg.Plaid.ClientName,
			CountryCodes: cfg.Plaid.CountryCodes,
			Products:     cfg.Plaid.Products,
		})
		plaidAPI = plaidClient
		providers = append(providers, plaidClient)
		slog.Info("plaid enabled", slog.String("environment", cfg.Plaid.Environment))
	} else {
		slog.Warn("plaid credentials not configured, bank linking disabled")
	}
	fetcher := banklink.NewFetcher(encryptor, providers...)

	// Currency
	backfill := currency.NewBackfill(rateRepo, frankfurter.NewClient(cfg.FX.BaseURL), tatumClient, fetchedCache, cfg.FX.BackfillStartDate)
	exchange := currency.NewExchangeService(rateRepo)

	// Notifications; push delivery needs Firebase credentials.
	texts := messages.Default()
	if cfg.Firebase.MessagesFile != "" {
		if texts, err = messages.Load(cfg.Firebase.MessagesFile); err != nil {
			slog.Warn("failed to load notification messages, using defaults", slog.Any("error", err))
			texts = messages.Default()
		}
	}
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken)
		if err != nil {
			slog.Warn("firebase unavailable, push notifications disabled", slog.Any("error", err))
		} else {
			messenger = fcm
		}
	}
	notificationService := notification.NewService(notificationRepo, messenger, texts)

	// Balances
	queryService := balance.NewQueryService(snapshotRepo, accountRepo, userRepo, exchange)
	dashboardService := dashboard.NewService(queryService, linkRepo, dashboardCache)
	snapshotService := balance.NewSnapshotService(balance.SnapshotDeps{
		Snapshots: snapshotRepo,
		Accounts:  accountRepo,
		Links:     linkRepo,
		Fetcher:   fetcher,
		Backfill:  backfill,
		Cache:     dashboardService,
		Notifier:  notificationService,
	})

	// Domain services
	userService := user.NewService(userRepo, dashboardService, auth.NewPasswords(cfg.Password.HashCost))
	accountService := account.NewService(accountRepo, snapshotService, backfill, dashboardService)
	transactionService := transaction.NewService(transactionRepo)
	linkService := banklink.NewService(banklink.ServiceDeps{
		Links:        linkRepo,
		Fetcher:      fetcher,
		Cipher:       encryptor,
		Plaid:        plaidAPI,
		Capturer:     snapshotService,
		Accounts:     accountRepo,
		Transactions: transactionService,
		Cache:        dashboardService,
	})

	// Webhooks verify against Plaid's published keys; without Plaid every
	// webhook is rejected.
	var keySource webhook.KeySource = webhook.NoKeys{}
	if plaidClient != nil {
		keySource = plaidClient
	}
	webhookService := webhook.NewService(webhook.ServiceDeps{
		Events:       webhookRepo,
		Verifier:     webhook.NewPlaidVerifier(keySource),
		Links:        linkRepo,
		Transactions: linkService,
		Balances:     snapshotService,
		Notifier:     notificationService,
		Cache:        dashboardService,
	})

	jwt := auth.NewJWT(cfg.JWT.Secret)

	return &Dependencies{
		DB:                  db,
		Redis:               redisClient,
		HealthHandler:       httphandlers.NewHealthHandler(db),
		AuthHandler:         httphandlers.NewAuthHandler(userService, jwt, cfg.TLS.Enabled),
		UserHandler:         httphandlers.NewUserHandler(userService),
		AccountHandler:      httphandlers.NewAccountHandler(accountService),
		LinkHandler:         httphandlers.NewLinkHandler(linkService),
		BalanceHandler:      httphandlers.NewBalanceHandler(queryService, dashboardService),
		ExchangeRateHandler: httphandlers.NewExchangeRateHandler(exchange, backfill),
		TransactionHandler:  httphandlers.NewTransactionHandler(transactionService),
		WebhookHandler:      httphandlers.NewWebhookHandler(webhookService),
		NotificationHandler: httphandlers.NewNotificationHandler(notificationService),
		JWT:                 jwt,
		SnapshotService:     snapshotService,
		Backfill:            backfill,
		AccountRepo:         accountRepo,
		LinkRepo:            linkRepo,
		CurrencyListener:    listener.NewCurrencyListener(cfg.Database.ConnectionString(), backfill),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
