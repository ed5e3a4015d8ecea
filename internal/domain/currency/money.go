package currency

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	USD = "USD"

	defaultDecimalPlaces = 2
)

// decimalPlaces lists currencies whose minor unit differs from two digits.
var decimalPlaces = map[string]int32{
	// zero-decimal fiat
	"JPY": 0, "KRW": 0, "CLP": 0, "VND": 0, "ISK": 0,
	"UGX": 0, "XOF": 0, "XAF": 0, "PYG": 0,
	// three-decimal fiat
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
	"IQD": 3, "LYD": 3,
	// crypto
	"BTC": 8, "LTC": 8, "DOGE": 8, "BCH": 8,
	"ETH": 18, "SOL": 9,
	"USDC": 6, "USDT": 6,
}

var cryptoCurrencies = map[string]struct{}{
	"BTC": {}, "ETH": {}, "LTC": {}, "DOGE": {}, "BCH": {},
	"SOL": {}, "USDC": {}, "USDT": {},
}

// DecimalPlaces returns the number of fractional digits used for code.
func DecimalPlaces(code string) int32 {
	if places, ok := decimalPlaces[strings.ToUpper(code)]; ok {
		return places
	}
	return defaultDecimalPlaces
}

// IsCrypto reports whether code is a supported crypto asset.
func IsCrypto(code string) bool {
	_, ok := cryptoCurrencies[strings.ToUpper(code)]
	return ok
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks that code looks like an ISO 4217 code or a crypto ticker.
func ValidateCode(code string) error {
	if len(code) < 3 || len(code) > 5 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// Round rounds amount to the currency's decimal places, half away from zero.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(DecimalPlaces(code))
}

// Money is an amount already rounded to its currency's minor unit.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, code string) Money {
	code = NormalizeCode(code)
	return Money{Amount: Round(amount, code), Currency: code}
}

func Zero(code string) Money {
	return NewMoney(decimal.Zero, code)
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return NewMoney(m.Amount.Add(other.Amount), m.Currency), nil
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return m.Amount.StringFixed(DecimalPlaces(m.Currency)) + " " + m.Currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.Amount.StringFixed(DecimalPlaces(m.Currency)),
		Currency: m.Currency,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	*m = NewMoney(amount, raw.Currency)
	return nil
}
