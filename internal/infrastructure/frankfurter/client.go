// Package frankfurter fetches published ECB reference rates from the
// Frankfurter API.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"balancebook/internal/domain/currency"
)

const (
	DefaultBaseURL = "https://api.frankfurter.app"
	defaultTimeout = 30 * time.Second
)

// supported are the currencies the ECB publishes reference rates for.
var supported = map[string]struct{}{
	"AUD": {}, "BGN": {}, "BRL": {}, "CAD": {}, "CHF": {}, "CNY": {}, "CZK": {}, "DKK": {},
	"EUR": {}, "GBP": {}, "HKD": {}, "HUF": {}, "IDR": {}, "ILS": {}, "INR": {}, "ISK": {},
	"JPY": {}, "KRW": {}, "MXN": {}, "MYR": {}, "NOK": {}, "NZD": {}, "PHP": {}, "PLN": {},
	"RON": {}, "SEK": {}, "SGD": {}, "THB": {}, "TRY": {}, "USD": {}, "ZAR": {},
}

// Client implements currency.HistoricalProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ currency.HistoricalProvider = (*Client)(nil)

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Supports(code string) bool {
	_, ok := supported[currency.NormalizeCode(code)]
	return ok
}

type seriesResponse struct {
	Base  string                                `json:"base"`
	Rates map[string]map[string]decimal.Decimal `json:"rates"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// FetchRange returns rates for every published day up to end. When start is
// not a publication day the API widens the range back to the last published
// day, and that day is included. Weekends and holidays are absent.
func (c *Client) FetchRange(ctx context.Context, base string, symbols []string, start, end time.Time) (map[string]map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]map[string]decimal.Decimal{}, nil
	}

	q := url.Values{}
	q.Set("from", currency.NormalizeCode(base))
	q.Set("to", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s/%s..%s?%s", c.baseURL, currency.DateKey(start), currency.DateKey(end), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// no published day inside the range
		return map[string]map[string]decimal.Decimal{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("frankfurter error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("frankfurter request failed with status %d", resp.StatusCode)
	}

	var series seriesResponse
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	to := currency.DateKey(end)
	rates := make(map[string]map[string]decimal.Decimal, len(series.Rates))
	for day, quotes := range series.Rates {
		if day > to {
			continue
		}
		rates[day] = quotes
	}
	return rates, nil
}
