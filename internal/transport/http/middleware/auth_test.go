package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/infra/security"
)

type staticKeyProvider struct {
	key *rsa.PrivateKey
	kid string
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) { return p.key, nil }
func (p *staticKeyProvider) SigningKID() string                      { return p.kid }
func (p *staticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, security.ErrKeyNotFound
	}
	return &p.key.PublicKey, nil
}

func newTestIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	issuer, err := security.NewTokenIssuer(&staticKeyProvider{key: key, kid: "test"}, "test", "account-service-test", 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("init token issuer: %v", err)
	}
	return issuer
}

func authRouter(issuer *security.TokenIssuer) *gin.Engine {
	router := gin.New()
	router.GET("/me", RequireAuth(issuer), RequireAccountType(domain.AccountTypeExpert), func(c *gin.Context) {
		id, _ := GetAuthenticatedAccountID(c)
		c.JSON(http.StatusOK, gin.H{"account_id": id})
	})
	return router
}

func TestRequireAuthAcceptsValidAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := newTestIssuer(t)
	pair, err := issuer.Issue("acc-1", string(domain.AccountTypeExpert))
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rr := httptest.NewRecorder()

	authRouter(issuer).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rr := httptest.NewRecorder()

	authRouter(newTestIssuer(t)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := newTestIssuer(t)
	pair, err := issuer.Issue("acc-1", string(domain.AccountTypeExpert))
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rr := httptest.NewRecorder()

	authRouter(issuer).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token on access route, got %d", rr.Code)
	}
}

func TestRequireAccountTypeRejectsMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := newTestIssuer(t)
	pair, err := issuer.Issue("acc-2", string(domain.AccountTypeUser))
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rr := httptest.NewRecorder()

	authRouter(issuer).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong account type, got %d", rr.Code)
	}
}
