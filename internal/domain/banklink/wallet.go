package banklink

import (
	"fmt"
	"regexp"
	"strings"
)

// Chain is a blockchain whose native-asset balance can be tracked.
type Chain struct {
	Name    string // Tatum chain name, e.g. "bitcoin"
	Symbol  string // currency code of the native asset
	Display string
	address *regexp.Regexp
}

var chains = []Chain{
	{Name: "bitcoin", Symbol: "BTC", Display: "Bitcoin", address: regexp.MustCompile(`^(bc1[02-9ac-hj-np-z]{11,71}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`)},
	{Name: "ethereum", Symbol: "ETH", Display: "Ethereum", address: regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)},
	{Name: "litecoin", Symbol: "LTC", Display: "Litecoin", address: regexp.MustCompile(`^(ltc1[02-9ac-hj-np-z]{11,71}|[LM3][a-km-zA-HJ-NP-Z1-9]{26,33})$`)},
	{Name: "dogecoin", Symbol: "DOGE", Display: "Dogecoin", address: regexp.MustCompile(`^D[5-9A-HJ-NP-U][1-9A-HJ-NP-Za-km-z]{32}$`)},
}

// LookupChain finds a chain by name ("bitcoin") or symbol ("BTC").
func LookupChain(s string) (Chain, error) {
	s = strings.TrimSpace(s)
	for _, c := range chains {
		if strings.EqualFold(c.Name, s) || strings.EqualFold(c.Symbol, s) {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
}

// ValidAddress reports whether address is well formed for the chain.
func (c Chain) ValidAddress(address string) bool {
	return c.address.MatchString(address)
}

// WalletExternalID is the external ID stored for a wallet link.
func WalletExternalID(c Chain, address string) string {
	return c.Name + ":" + address
}

// ParseWalletID splits a wallet link's external ID into chain and address.
func ParseWalletID(externalID string) (Chain, string, error) {
	name, address, ok := strings.Cut(externalID, ":")
	if !ok || address == "" {
		return Chain{}, "", fmt.Errorf("%w: %q", ErrInvalidAddress, externalID)
	}
	c, err := LookupChain(name)
	if err != nil {
		return Chain{}, "", err
	}
	return c, address, nil
}
