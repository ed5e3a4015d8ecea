package banklink

import (
	"errors"
	"testing"
)

func TestLookupChain(t *testing.T) {
	tests := []struct {
		input      string
		wantSymbol string
		wantErr    bool
	}{
		{"bitcoin", "BTC", false},
		{"BTC", "BTC", false},
		{"Ethereum", "ETH", false},
		{"ltc", "LTC", false},
		{"dogecoin", "DOGE", false},
		{"solana", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := LookupChain(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedChain) {
					t.Errorf("expected ErrUnsupportedChain, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Symbol != tt.wantSymbol {
				t.Errorf("symbol = %s, want %s", c.Symbol, tt.wantSymbol)
			}
		})
	}
}

func TestChain_ValidAddress(t *testing.T) {
	tests := []struct {
		chain   string
		address string
		want    bool
	}{
		{"bitcoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"bitcoin", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true},
		{"bitcoin", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
		{"ethereum", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", true},
		{"ethereum", "0x742d35", false},
		{"litecoin", "LVg2kJoFNg45Nbpy53h7Fe1wKyeXVRhMH9", true},
		{"dogecoin", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", true},
		{"dogecoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
	}

	for _, tt := range tests {
		t.Run(tt.chain+" "+tt.address, func(t *testing.T) {
			c, err := LookupChain(tt.chain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := c.ValidAddress(tt.address); got != tt.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestParseWalletID(t *testing.T) {
	c, _ := LookupChain("ethereum")
	id := WalletExternalID(c, "0xabc")
	if id != "ethereum:0xabc" {
		t.Fatalf("external ID = %q", id)
	}

	chain, address, err := ParseWalletID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain.Symbol != "ETH" || address != "0xabc" {
		t.Errorf("parsed = %s %s", chain.Symbol, address)
	}

	if _, _, err := ParseWalletID("no-separator"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if _, _, err := ParseWalletID("cardano:addr1"); !errors.Is(err, ErrUnsupportedChain) {
		t.Errorf("expected ErrUnsupportedChain, got %v", err)
	}
}
