package transaction

import "strings"

// TransactionCategory pairs a provider category code with its display name
type TransactionCategory struct {
	ProviderName string `json:"providerName"`
	DisplayName  string `json:"displayName"`
}

// CategoryMapping maps Plaid personal finance categories (primary or
// detailed) to display names. Detailed codes fall back to their primary.
var CategoryMapping = map[string]TransactionCategory{
	"INCOME": {
		ProviderName: "Income",
		DisplayName:  "Income",
	},
	"INCOME_WAGES": {
		ProviderName: "Wages",
		DisplayName:  "Salary",
	},
	"INCOME_DIVIDENDS": {
		ProviderName: "Dividends",
		DisplayName:  "Investment Income",
	},
	"INCOME_INTEREST_EARNED": {
		ProviderName: "Interest earned",
		DisplayName:  "Investment Income",
	},
	"INCOME_RETIREMENT_PENSION": {
		ProviderName: "Retirement pension",
		DisplayName:  "Pension",
	},
	"INCOME_TAX_REFUND": {
		ProviderName: "Tax refund",
		DisplayName:  "Tax Refund",
	},
	"TRANSFER_IN": {
		ProviderName: "Transfer in",
		DisplayName:  "Transfers",
	},
	"TRANSFER_OUT": {
		ProviderName: "Transfer out",
		DisplayName:  "Transfers",
	},
	"TRANSFER_IN_INVESTMENT_AND_RETIREMENT_FUNDS": {
		ProviderName: "Investment transfer in",
		DisplayName:  "Investments",
	},
	"TRANSFER_OUT_INVESTMENT_AND_RETIREMENT_FUNDS": {
		ProviderName: "Investment transfer out",
		DisplayName:  "Investments",
	},
	"LOAN_PAYMENTS": {
		ProviderName: "Loan payments",
		DisplayName:  "Debt Payments",
	},
	"LOAN_PAYMENTS_CREDIT_CARD_PAYMENT": {
		ProviderName: "Credit card payment",
		DisplayName:  "Credit Card Payment",
	},
	"LOAN_PAYMENTS_MORTGAGE_PAYMENT": {
		ProviderName: "Mortgage payment",
		DisplayName:  "Housing",
	},
	"BANK_FEES": {
		ProviderName: "Bank fees",
		DisplayName:  "Fees",
	},
	"BANK_FEES_INTEREST_CHARGE": {
		ProviderName: "Interest charge",
		DisplayName:  "Interest / Late Fees",
	},
	"BANK_FEES_OVERDRAFT_FEES": {
		ProviderName: "Overdraft fees",
		DisplayName:  "Interest / Late Fees",
	},
	"ENTERTAINMENT": {
		ProviderName: "Entertainment",
		DisplayName:  "Entertainment",
	},
	"FOOD_AND_DRINK": {
		ProviderName: "Food and drink",
		DisplayName:  "Food & Dining",
	},
	"FOOD_AND_DRINK_GROCERIES": {
		ProviderName: "Groceries",
		DisplayName:  "Groceries",
	},
	"FOOD_AND_DRINK_RESTAURANT": {
		ProviderName: "Restaurant",
		DisplayName:  "Restaurants",
	},
	"GENERAL_MERCHANDISE": {
		ProviderName: "General merchandise",
		DisplayName:  "Shopping",
	},
	"HOME_IMPROVEMENT": {
		ProviderName: "Home improvement",
		DisplayName:  "Home",
	},
	"MEDICAL": {
		ProviderName: "Medical",
		DisplayName:  "Health",
	},
	"PERSONAL_CARE": {
		ProviderName: "Personal care",
		DisplayName:  "Personal Care",
	},
	"GENERAL_SERVICES": {
		ProviderName: "General services",
		DisplayName:  "Services",
	},
	"GENERAL_SERVICES_INSURANCE": {
		ProviderName: "Insurance",
		DisplayName:  "Insurance",
	},
	"GOVERNMENT_AND_NON_PROFIT": {
		ProviderName: "Government and non-profit",
		DisplayName:  "Taxes & Donations",
	},
	"TRANSPORTATION": {
		ProviderName: "Transportation",
		DisplayName:  "Transportation",
	},
	"TRANSPORTATION_GAS": {
		ProviderName: "Gas",
		DisplayName:  "Fuel",
	},
	"TRAVEL": {
		ProviderName: "Travel",
		DisplayName:  "Travel",
	},
	"RENT_AND_UTILITIES": {
		ProviderName: "Rent and utilities",
		DisplayName:  "Housing",
	},
	"RENT_AND_UTILITIES_RENT": {
		ProviderName: "Rent",
		DisplayName:  "Housing",
	},
}

// primaryCategories lists the top-level codes, longest first, so that a
// detailed code is matched to the most specific primary prefix.
var primaryCategories = []string{
	"GOVERNMENT_AND_NON_PROFIT",
	"RENT_AND_UTILITIES",
	"GENERAL_MERCHANDISE",
	"HOME_IMPROVEMENT",
	"GENERAL_SERVICES",
	"FOOD_AND_DRINK",
	"TRANSPORTATION",
	"LOAN_PAYMENTS",
	"PERSONAL_CARE",
	"ENTERTAINMENT",
	"TRANSFER_OUT",
	"TRANSFER_IN",
	"BANK_FEES",
	"MEDICAL",
	"INCOME",
	"TRAVEL",
}

// GetCategoryKey returns the mapping key for a provider category code or
// provider name, or "" when the category is unknown.
func GetCategoryKey(category string) string {
	if category == "" {
		return ""
	}
	code := strings.ToUpper(strings.TrimSpace(category))
	if _, ok := CategoryMapping[code]; ok {
		return code
	}
	for _, primary := range primaryCategories {
		if strings.HasPrefix(code, primary+"_") {
			return primary
		}
	}

	// Search by provider name
	for key, cat := range CategoryMapping {
		if strings.EqualFold(cat.ProviderName, category) {
			return key
		}
	}
	return ""
}

// TranslateCategory turns a provider category into its display name.
// Unknown categories are returned unchanged.
func TranslateCategory(category string) string {
	key := GetCategoryKey(category)
	if key == "" {
		return category
	}
	return CategoryMapping[key].DisplayName
}
