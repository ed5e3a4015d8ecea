package banklink

import (
	"context"
	"fmt"

	"balancebook/internal/domain/transaction"
)

// Provider fetches current account balances for a link.
type Provider interface {
	Name() string
	// FetchAccounts returns every account behind the link with its balance.
	// credential is the decrypted access token, empty for providers that need none.
	FetchAccounts(ctx context.Context, link *BankLink, credential string) ([]ProviderAccount, error)
}

// PlaidClient is the Plaid-specific surface used for linking and syncing.
type PlaidClient interface {
	Provider
	CreateLinkToken(ctx context.Context, userID int64) (*LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*PublicTokenExchange, error)
	RemoveItem(ctx context.Context, accessToken string) error
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*transaction.SyncPage, error)
}

// Cipher encrypts provider credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Fetcher routes a link to its provider with the decrypted credential.
type Fetcher struct {
	providers map[string]Provider
	cipher    Cipher
}

func NewFetcher(cipher Cipher, providers ...Provider) *Fetcher {
	f := &Fetcher{providers: make(map[string]Provider, len(providers)), cipher: cipher}
	for _, p := range providers {
		f.providers[p.Name()] = p
	}
	return f
}

// Enabled reports whether a provider is registered under name.
func (f *Fetcher) Enabled(name string) bool {
	_, ok := f.providers[name]
	return ok
}

// Credential decrypts the link's access token.
func (f *Fetcher) Credential(link *BankLink) (string, error) {
	if link.AccessToken == "" {
		return "", nil
	}
	plain, err := f.cipher.Decrypt(link.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential for link %s: %w", link.ID, err)
	}
	return plain, nil
}

// FetchAccounts returns the link's accounts from its provider.
func (f *Fetcher) FetchAccounts(ctx context.Context, link *BankLink) ([]ProviderAccount, error) {
	p, ok := f.providers[link.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotEnabled, link.Provider)
	}
	credential, err := f.Credential(link)
	if err != nil {
		return nil, err
	}
	return p.FetchAccounts(ctx, link, credential)
}
