package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

type staticKeyProvider struct {
	key *rsa.PrivateKey
	kid string
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, ErrKeyNotFound
	}
	return &p.key.PublicKey, nil
}

func newTestIssuer(t *testing.T, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	issuer, err := NewTokenIssuer(&staticKeyProvider{key: key, kid: "test"}, "test", "account-service", accessTTL, refreshTTL)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, time.Hour)

	pair, err := issuer.Issue("acct-1", "expert")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if pair.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in: %d", pair.ExpiresIn)
	}

	claims, err := issuer.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess returned error: %v", err)
	}
	if claims.AccountID != "acct-1" || claims.AccountType != "expert" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	refreshClaims, err := issuer.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh returned error: %v", err)
	}
	if refreshClaims.AccountID != "acct-1" {
		t.Fatalf("unexpected refresh claims: %+v", refreshClaims)
	}
}

func TestTokenIssuerRejectsCrossTypeTokens(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, time.Hour)

	pair, err := issuer.Issue("acct-1", "user")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := issuer.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh-as-access, got %v", err)
	}
	if _, err := issuer.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access-as-refresh, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	past := time.Now().Add(-2 * time.Hour)
	issuer.WithClock(func() time.Time { return past })

	pair, err := issuer.Issue("acct-1", "user")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	issuer.WithClock(time.Now)
	if _, err := issuer.ParseAccess(pair.AccessToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenIssuerRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	pair, err := issuer.Issue("acct-1", "user")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := issuer.ParseAccess(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}
