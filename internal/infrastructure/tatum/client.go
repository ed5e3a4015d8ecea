// Package tatum reads wallet balances and crypto spot rates from the Tatum API.
package tatum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
)

const (
	DefaultBaseURL = "https://api.tatum.io"
	defaultTimeout = 30 * time.Second
)

// Client implements banklink.Provider for wallet links and currency.SpotProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

var (
	_ banklink.Provider     = (*Client)(nil)
	_ currency.SpotProvider = (*Client)(nil)
)

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  slog.Default().With(slog.String("component", "tatum")),
	}
}

func (c *Client) Name() string {
	return banklink.ProviderTatum
}

// utxoBalance is returned by the bitcoin, litecoin and dogecoin endpoints.
type utxoBalance struct {
	Incoming decimal.Decimal `json:"incoming"`
	Outgoing decimal.Decimal `json:"outgoing"`
}

type accountBalance struct {
	Balance decimal.Decimal `json:"balance"`
}

type rateResponse struct {
	Value    decimal.Decimal `json:"value"`
	BasePair string          `json:"basePair"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

// FetchAccounts returns the wallet as a single crypto account.
func (c *Client) FetchAccounts(ctx context.Context, link *banklink.BankLink, _ string) ([]banklink.ProviderAccount, error) {
	chain, address, err := banklink.ParseWalletID(link.ExternalID)
	if err != nil {
		return nil, err
	}

	balance, err := c.WalletBalance(ctx, chain, address)
	if err != nil {
		return nil, err
	}

	name := link.InstitutionName
	if name == "" {
		name = chain.Display + " wallet"
	}

	return []banklink.ProviderAccount{{
		ExternalID: address,
		Name:       name,
		Mask:       mask(address),
		Type:       account.TypeCrypto,
		Subtype:    chain.Name,
		Currency:   chain.Symbol,
		Current:    balance,
		Available:  decimal.NewNullDecimal(balance),
	}}, nil
}

// WalletBalance returns the confirmed native-asset balance of address.
func (c *Client) WalletBalance(ctx context.Context, chain banklink.Chain, address string) (decimal.Decimal, error) {
	if chain.Symbol == "ETH" {
		var resp accountBalance
		if err := c.get(ctx, "/v3/ethereum/account/balance/"+url.PathEscape(address), &resp); err != nil {
			return decimal.Zero, err
		}
		return resp.Balance, nil
	}

	var resp utxoBalance
	if err := c.get(ctx, "/v3/"+chain.Name+"/address/balance/"+url.PathEscape(address), &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Incoming.Sub(resp.Outgoing), nil
}

// SpotRate returns the current USD price of one unit of code.
func (c *Client) SpotRate(ctx context.Context, code string) (decimal.Decimal, error) {
	var resp rateResponse
	path := "/v3/tatum/rate/" + url.PathEscape(currency.NormalizeCode(code)) + "?basePair=" + currency.USD
	if err := c.get(ctx, path, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Value.IsPositive() {
		return decimal.Zero, fmt.Errorf("tatum: %w: no rate for %s", banklink.ErrProviderFailure, code)
	}
	return resp.Value, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tatum: %w: %v", banklink.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			c.logger.Warn("request failed",
				slog.Int("status", resp.StatusCode),
				slog.String("error_code", errResp.ErrorCode),
				slog.String("message", errResp.Message),
			)
			return fmt.Errorf("tatum: %w: status %d: %s", banklink.ErrProviderFailure, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("tatum: %w: status %d", banklink.ErrProviderFailure, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func mask(address string) string {
	if len(address) <= 4 {
		return address
	}
	return address[len(address)-4:]
}
