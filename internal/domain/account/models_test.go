package account

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/currency"
)

func TestIsValidAccountType(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"depository", true},
		{"credit", true},
		{"loan", true},
		{"crypto", true},
		{"DEPOSITORY", false},
		{"BANK", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := IsValidAccountType(tt.input)
			if got != tt.want {
				t.Errorf("IsValidAccountType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Depository", TypeDepository},
		{"credit", TypeCredit},
		{"brokerage", TypeInvestment},
		{"mortgage", TypeOther},
		{"", TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeType(tt.input); got != tt.want {
				t.Errorf("NormalizeType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsLiability(t *testing.T) {
	for typ, want := range map[string]bool{
		TypeCredit:     true,
		TypeLoan:       true,
		TypeDepository: false,
		TypeCrypto:     false,
	} {
		acc := &Account{AccountType: typ}
		if got := acc.IsLiability(); got != want {
			t.Errorf("IsLiability(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestCreateParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr bool
		errType error
	}{
		{
			name:   "Valid",
			params: CreateParams{UserID: 1, Name: "Cash", AccountType: TypeDepository, Currency: "usd", Balance: decimal.RequireFromString("10.005")},
		},
		{
			name:   "Defaults Type",
			params: CreateParams{UserID: 1, Name: "Car", Currency: "EUR"},
		},
		{
			name:    "Missing User",
			params:  CreateParams{Name: "Cash", Currency: "USD"},
			wantErr: true,
		},
		{
			name:    "Blank Name",
			params:  CreateParams{UserID: 1, Name: "  ", Currency: "USD"},
			wantErr: true,
		},
		{
			name:    "Invalid Type",
			params:  CreateParams{UserID: 1, Name: "Cash", AccountType: "BANK", Currency: "USD"},
			wantErr: true,
			errType: ErrInvalidAccountType,
		},
		{
			name:    "Invalid Currency",
			params:  CreateParams{UserID: 1, Name: "Cash", Currency: "DOLLARS"},
			wantErr: true,
			errType: currency.ErrInvalidCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.errType != nil && !errors.Is(err, tt.errType) {
				t.Errorf("Validate() error = %v, want %v", err, tt.errType)
			}
		})
	}

	p := CreateParams{UserID: 1, Name: "Cash", Currency: "usd", Balance: decimal.RequireFromString("10.005")}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Currency != "USD" || p.AccountType != TypeOther || p.Balance.String() != "10.01" {
		t.Errorf("normalised params = %+v", p)
	}
}

func TestUpsertParams_Validate(t *testing.T) {
	p := UpsertParams{UserID: 1, BankLinkID: "link-1", ExternalID: "ext-1", Name: "Checking", AccountType: "weird", Currency: "eur"}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AccountType != TypeOther || p.Currency != "EUR" {
		t.Errorf("normalised params = %+v", p)
	}

	missing := UpsertParams{UserID: 1, Name: "Checking", Currency: "USD"}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing link and external ID")
	}
}

func TestUpdateParams_Validate(t *testing.T) {
	empty := ""
	hidden := true

	tests := []struct {
		name    string
		params  UpdateParams
		wantErr bool
	}{
		{"Hide", UpdateParams{Hidden: &hidden}, false},
		{"Empty Name", UpdateParams{Name: &empty}, true},
		{"Nothing", UpdateParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
