package webhook

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MaxTokenAge bounds how old a verification token's iat may be.
	MaxTokenAge = 5 * time.Minute

	// activeKeyTTL caches keys that carry no expiry.
	activeKeyTTL = 24 * time.Hour
)

// VerificationKey is a JWK published by Plaid for webhook signing.
type VerificationKey struct {
	KeyID     string
	Curve     string
	X         string // base64url, no padding
	Y         string
	ExpiredAt *time.Time
}

// KeySource fetches a verification key by its key ID.
type KeySource interface {
	WebhookVerificationKey(ctx context.Context, kid string) (*VerificationKey, error)
}

// NoKeys is a KeySource for deployments without Plaid; every lookup fails.
type NoKeys struct{}

func (NoKeys) WebhookVerificationKey(ctx context.Context, kid string) (*VerificationKey, error) {
	return nil, fmt.Errorf("no verification key source configured for kid %q", kid)
}

type plaidClaims struct {
	RequestBodySHA256 string `json:"request_body_sha256"`
	jwt.RegisteredClaims
}

type cachedKey struct {
	key     *ecdsa.PublicKey
	validTo time.Time
}

// PlaidVerifier checks the Plaid-Verification header of webhook requests.
type PlaidVerifier struct {
	source KeySource
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]cachedKey
}

func NewPlaidVerifier(source KeySource) *PlaidVerifier {
	return &PlaidVerifier{source: source, now: time.Now, keys: make(map[string]cachedKey)}
}

// Verify validates the ES256 token against body. Every failure wraps
// ErrInvalidSignature.
func (v *PlaidVerifier) Verify(ctx context.Context, header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("%w: missing verification header", ErrInvalidSignature)
	}

	claims := &plaidClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(header, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if claims.IssuedAt == nil {
		return fmt.Errorf("%w: missing iat", ErrInvalidSignature)
	}
	if age := v.now().Sub(claims.IssuedAt.Time); age > MaxTokenAge {
		return fmt.Errorf("%w: token issued %s ago", ErrInvalidSignature, age.Round(time.Second))
	}

	sum := sha256.Sum256(body)
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(claims.RequestBodySHA256)) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
	}
	return nil
}

func (v *PlaidVerifier) key(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	now := v.now()

	v.mu.Lock()
	cached, ok := v.keys[kid]
	v.mu.Unlock()
	if ok && now.Before(cached.validTo) {
		return cached.key, nil
	}

	jwk, err := v.source.WebhookVerificationKey(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetch verification key: %w", err)
	}
	validTo := now.Add(activeKeyTTL)
	if jwk.ExpiredAt != nil {
		if !now.Before(*jwk.ExpiredAt) {
			return nil, fmt.Errorf("verification key %s expired", kid)
		}
		validTo = *jwk.ExpiredAt
	}

	pub, err := publicKey(jwk)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.keys[kid] = cachedKey{key: pub, validTo: validTo}
	v.mu.Unlock()
	return pub, nil
}

func publicKey(jwk *VerificationKey) (*ecdsa.PublicKey, error) {
	if jwk.Curve != "" && jwk.Curve != "P-256" {
		return nil, fmt.Errorf("unsupported curve %q", jwk.Curve)
	}
	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode key x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode key y: %w", err)
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("verification key is not on P-256")
	}
	return pub, nil
}
