package dashboard

import (
	"github.com/shopspring/decimal"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/currency"
)

// ChangeWindowDays is how far back the net-worth change compares.
const ChangeWindowDays = 30

// ManualInstitution labels accounts that are not linked to a provider.
const ManualInstitution = "Manual"

// Summary is the dashboard view of a user's finances in one currency
type Summary struct {
	Currency      string                 `json:"currency"`
	AsOf          string                 `json:"asOf"`
	NetWorth      currency.Money         `json:"netWorth"`
	Assets        currency.Money         `json:"assets"`
	Liabilities   currency.Money         `json:"liabilities"`
	Change        *Change                `json:"change,omitempty"`
	ByType        []Breakdown            `json:"byType"`
	ByInstitution []Breakdown            `json:"byInstitution"`
	Links         map[string]int         `json:"links"`
	Accounts      []balance.AccountValue `json:"accounts"`
	MissingRates  []balance.MissingRate  `json:"missingRates"`
}

// Change compares net worth with ChangeWindowDays ago. Percent is nil when
// the past value is zero.
type Change struct {
	Since   string           `json:"since"`
	Amount  currency.Money   `json:"amount"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

// Breakdown totals converted balances for one group
type Breakdown struct {
	Key      string         `json:"key"`
	Total    currency.Money `json:"total"`
	Accounts int            `json:"accounts"`
}
