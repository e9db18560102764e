package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken indicates a token is malformed, has a bad signature, or
	// carries the wrong token type.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates the token's validity window has passed.
	ErrExpiredToken = errors.New("token expired")
)

// TokenClaims augments registered claims with account context.
type TokenClaims struct {
	AccountID   string `json:"aid"`
	AccountType string `json:"atp"`
	TokenType   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair bundles the stateless credentials issued on successful authentication.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// TokenIssuer signs stateless access/refresh token pairs. No server-side
// session record backs them; revocation happens only through expiry.
type TokenIssuer struct {
	keyProvider KeyProvider
	kid         string
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer signing with the provider's key under the supplied kid.
func NewTokenIssuer(provider KeyProvider, kid, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if provider == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if strings.TrimSpace(kid) == "" {
		return nil, fmt.Errorf("kid is required")
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenIssuer{
		keyProvider: provider,
		kid:         kid,
		issuer:      issuer,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}, nil
}

// WithClock overrides the issuer clock, used in tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// Issue signs a fresh access/refresh pair for the account.
func (t *TokenIssuer) Issue(accountID, accountType string) (TokenPair, error) {
	if accountID == "" {
		return TokenPair{}, fmt.Errorf("account id is required")
	}

	access, err := t.sign(accountID, accountType, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := t.sign(accountID, accountType, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(t.accessTTL.Seconds()),
	}, nil
}

// ParseAccess validates an access token and returns its claims.
func (t *TokenIssuer) ParseAccess(token string) (*TokenClaims, error) {
	return t.parse(token, tokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (t *TokenIssuer) ParseRefresh(token string) (*TokenClaims, error) {
	return t.parse(token, tokenTypeRefresh)
}

func (t *TokenIssuer) sign(accountID, accountType, tokenType string, ttl time.Duration) (string, error) {
	now := t.now().UTC()

	claims := TokenClaims{
		AccountID:   accountID,
		AccountType: accountType,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = t.kid

	signingKey, err := t.keyProvider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (t *TokenIssuer) parse(token, wantType string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}

		kid, ok := tok.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return t.keyProvider.GetVerificationKey(kid)
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
