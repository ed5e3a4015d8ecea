// Package listener consumes PostgreSQL NOTIFY events.
package listener

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/currency"
)

const (
	ChannelAccountCurrency = "account_currency"

	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// AccountCurrencyEvent is the payload of the account_currency channel.
type AccountCurrencyEvent struct {
	AccountID string `json:"account_id"`
	UserID    int64  `json:"user_id"`
	Currency  string `json:"currency"`
}

// CurrencyListener starts a rate backfill whenever an account is stored with
// a currency this process has not seen yet.
type CurrencyListener struct {
	connStr  string
	backfill account.CurrencyBackfiller
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]bool

	shutdownCh chan struct{}
	done       chan struct{}
}

func NewCurrencyListener(connStr string, backfill account.CurrencyBackfiller) *CurrencyListener {
	return &CurrencyListener{
		connStr:    connStr,
		backfill:   backfill,
		logger:     slog.Default().With(slog.String("component", "currency_listener")),
		seen:       map[string]bool{currency.USD: true},
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start listens in a background goroutine until Stop or ctx is done.
func (l *CurrencyListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info("listener started", slog.String("channel", ChannelAccountCurrency))
}

func (l *CurrencyListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.logger.Info("listener stopped")
}

func (l *CurrencyListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		l.connectAndListen(ctx)

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info("reconnecting")
		}
	}
}

func (l *CurrencyListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Debug("connected")
		case pq.ListenerEventDisconnected:
			l.logger.Warn("disconnected", slog.Any("error", err))
		case pq.ListenerEventReconnected:
			l.logger.Info("reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("connection attempt failed", slog.Any("error", err))
		}
	})
	defer pl.Close()

	if err := pl.Listen(ChannelAccountCurrency); err != nil {
		l.logger.Error("listen failed", slog.Any("error", err))
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			if n == nil {
				// connection lost
				return
			}
			l.handle(ctx, n.Extra)
		case <-ticker.C:
			if err := pl.Ping(); err != nil {
				l.logger.Warn("ping failed", slog.Any("error", err))
			}
		}
	}
}

func (l *CurrencyListener) handle(ctx context.Context, payload string) {
	var ev AccountCurrencyEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Warn("invalid payload", slog.String("payload", payload), slog.Any("error", err))
		return
	}

	code := currency.NormalizeCode(ev.Currency)
	if !l.markSeen(code) {
		return
	}

	l.logger.Info("new account currency",
		slog.String("currency", code),
		slog.String("account_id", ev.AccountID),
		slog.Int64("user_id", ev.UserID),
	)
	l.backfill.EnsureCurrencyAsync(context.WithoutCancel(ctx), code)
}

// markSeen reports whether code was new.
func (l *CurrencyListener) markSeen(code string) bool {
	if code == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[code] {
		return false
	}
	l.seen[code] = true
	return true
}
