// Package plaid adapts the Plaid API to the banklink and webhook domains.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/transaction"
	"balancebook/internal/domain/webhook"
)

const (
	defaultTimeout = 60 * time.Second
	syncPageSize   = 500
	linkLanguage   = "en"
)

// Error codes that mean the item needs Link update mode.
const (
	codeLoginRequired = "ITEM_LOGIN_REQUIRED"
	codePendingExpiry = "PENDING_EXPIRATION"
	codeItemNotFound  = "ITEM_NOT_FOUND"
	codeInvalidToken  = "INVALID_ACCESS_TOKEN"
)

// Config holds the Plaid credentials and link settings.
type Config struct {
	ClientID     string
	Secret       string
	Environment  string // sandbox, production or a base URL
	WebhookURL   string
	ClientName   string
	CountryCodes []string
	Products     []string
}

// Client implements banklink.PlaidClient and webhook.KeySource.
type Client struct {
	api    *plaid.PlaidApiService
	cfg    Config
	logger *slog.Logger
}

var (
	_ banklink.PlaidClient = (*Client)(nil)
	_ webhook.KeySource    = (*Client)(nil)
)

func NewClient(cfg Config) *Client {
	conf := plaid.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.UseEnvironment(environment(cfg.Environment))
	conf.HTTPClient = &http.Client{
		Timeout:   defaultTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &Client{
		api:    plaid.NewAPIClient(conf).PlaidApi,
		cfg:    cfg,
		logger: slog.Default().With(slog.String("component", "plaid")),
	}
}

func environment(env string) plaid.Environment {
	switch {
	case strings.HasPrefix(env, "http://"), strings.HasPrefix(env, "https://"):
		return plaid.Environment(strings.TrimRight(env, "/"))
	case strings.EqualFold(env, "production"):
		return plaid.Production
	default:
		return plaid.Sandbox
	}
}

func (c *Client) Name() string {
	return banklink.ProviderPlaid
}

func (c *Client) CreateLinkToken(ctx context.Context, userID int64) (*banklink.LinkToken, error) {
	countries := make([]plaid.CountryCode, 0, len(c.cfg.CountryCodes))
	for _, cc := range c.cfg.CountryCodes {
		countries = append(countries, plaid.CountryCode(strings.ToUpper(cc)))
	}
	products := make([]plaid.Products, 0, len(c.cfg.Products))
	for _, p := range c.cfg.Products {
		products = append(products, plaid.Products(strings.ToLower(p)))
	}

	user := plaid.LinkTokenCreateRequestUser{ClientUserId: strconv.FormatInt(userID, 10)}
	req := plaid.NewLinkTokenCreateRequest(c.cfg.ClientName, linkLanguage, countries, user)
	req.SetProducts(products)
	if c.cfg.WebhookURL != "" {
		req.SetWebhook(c.cfg.WebhookURL)
	}

	resp, _, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return nil, c.wrap("link/token/create", err)
	}
	return &banklink.LinkToken{Token: resp.GetLinkToken(), Expiration: resp.GetExpiration()}, nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*banklink.PublicTokenExchange, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.api.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return nil, c.wrap("item/public_token/exchange", err)
	}
	return &banklink.PublicTokenExchange{AccessToken: resp.GetAccessToken(), ItemID: resp.GetItemId()}, nil
}

// FetchAccounts requests real-time balances for every account of the item.
func (c *Client) FetchAccounts(ctx context.Context, link *banklink.BankLink, accessToken string) ([]banklink.ProviderAccount, error) {
	req := plaid.NewAccountsBalanceGetRequest(accessToken)
	resp, _, err := c.api.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*req).Execute()
	if err != nil {
		return nil, c.wrap("accounts/balance/get", err)
	}

	accounts := make([]banklink.ProviderAccount, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		pa, ok := toProviderAccount(a)
		if !ok {
			c.logger.Warn("account without balance skipped",
				slog.String("link_id", link.ID),
				slog.String("account_id", a.GetAccountId()),
			)
			continue
		}
		accounts = append(accounts, pa)
	}
	return accounts, nil
}

func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	req := plaid.NewItemRemoveRequest(accessToken)
	if _, _, err := c.api.ItemRemove(ctx).ItemRemoveRequest(*req).Execute(); err != nil {
		return c.wrap("item/remove", err)
	}
	return nil
}

// SyncTransactions returns one page of changes after cursor ("" for the first page).
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (*transaction.SyncPage, error) {
	req := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		req.SetCursor(cursor)
	}
	req.SetCount(syncPageSize)

	resp, _, err := c.api.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return nil, c.wrap("transactions/sync", err)
	}

	page := &transaction.SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, toProviderTransaction(t))
	}
	for _, t := range resp.GetModified() {
		page.Modified = append(page.Modified, toProviderTransaction(t))
	}
	for _, r := range resp.GetRemoved() {
		page.Removed = append(page.Removed, r.GetTransactionId())
	}
	return page, nil
}

// WebhookVerificationKey fetches the JWK Plaid signed a webhook with.
func (c *Client) WebhookVerificationKey(ctx context.Context, kid string) (*webhook.VerificationKey, error) {
	req := plaid.NewWebhookVerificationKeyGetRequest(kid)
	resp, _, err := c.api.WebhookVerificationKeyGet(ctx).WebhookVerificationKeyGetRequest(*req).Execute()
	if err != nil {
		return nil, c.wrap("webhook_verification_key/get", err)
	}

	jwk := resp.GetKey()
	key := &webhook.VerificationKey{
		KeyID: jwk.GetKid(),
		Curve: jwk.GetCrv(),
		X:     jwk.GetX(),
		Y:     jwk.GetY(),
	}
	if exp, ok := jwk.GetExpiredAtOk(); ok && exp != nil && *exp > 0 {
		t := time.Unix(int64(*exp), 0).UTC()
		key.ExpiredAt = &t
	}
	return key, nil
}

func toProviderAccount(a plaid.AccountBase) (banklink.ProviderAccount, bool) {
	balances := a.GetBalances()
	current, ok := balances.GetCurrentOk()
	if !ok || current == nil {
		return banklink.ProviderAccount{}, false
	}

	code := balances.GetIsoCurrencyCode()
	if code == "" {
		code = balances.GetUnofficialCurrencyCode()
	}
	if code == "" {
		code = currency.USD
	}

	pa := banklink.ProviderAccount{
		ExternalID: a.GetAccountId(),
		Name:       a.GetName(),
		Mask:       a.GetMask(),
		Type:       string(a.GetType()),
		Subtype:    string(a.GetSubtype()),
		Currency:   currency.NormalizeCode(code),
		Current:    decimal.NewFromFloat(*current),
	}
	if avail, ok := balances.GetAvailableOk(); ok && avail != nil {
		pa.Available = decimal.NewNullDecimal(decimal.NewFromFloat(*avail))
	}
	return pa, true
}

// toProviderTransaction flips Plaid's sign so that outflows are negative.
func toProviderTransaction(t plaid.Transaction) transaction.ProviderTransaction {
	code := t.GetIsoCurrencyCode()
	if code == "" {
		code = t.GetUnofficialCurrencyCode()
	}
	date, err := currency.ParseDate(t.GetDate())
	if err != nil {
		date = currency.Day(time.Now())
	}

	pfc := t.GetPersonalFinanceCategory()
	return transaction.ProviderTransaction{
		ExternalID:        t.GetTransactionId(),
		AccountExternalID: t.GetAccountId(),
		Amount:            decimal.NewFromFloat(t.GetAmount()).Neg(),
		Currency:          currency.NormalizeCode(code),
		Description:       t.GetName(),
		MerchantName:      t.GetMerchantName(),
		Category:          pfc.GetPrimary(),
		Date:              date,
		Pending:           t.GetPending(),
	}
}

func (c *Client) wrap(op string, err error) error {
	code, msg := "", err.Error()
	if perr, convErr := plaid.ToPlaidError(err); convErr == nil {
		code, msg = perr.ErrorCode, perr.ErrorMessage
	}
	c.logger.Warn("request failed", slog.String("operation", op), slog.String("error_code", code), slog.String("error", msg))
	return classify(op, code, msg)
}

// classify maps a Plaid error code onto the banklink sentinel errors.
func classify(op, code, msg string) error {
	switch code {
	case codeLoginRequired, codePendingExpiry, codeItemNotFound, codeInvalidToken:
		return fmt.Errorf("plaid %s: %w: %s", op, banklink.ErrLoginRequired, code)
	case "":
		return fmt.Errorf("plaid %s: %w: %s", op, banklink.ErrProviderFailure, msg)
	default:
		return fmt.Errorf("plaid %s: %w: %s: %s", op, banklink.ErrProviderFailure, code, msg)
	}
}
