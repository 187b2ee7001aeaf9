package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rbac "github.com/bohemiyan/insights-rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)

	i, err := NewIssuer("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, i.ttl)
}

func TestIssueAndParseToken(t *testing.T) {
	i, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := i.IssueToken(42, "bob@example.com")
	require.NoError(t, err)

	claims, err := i.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "insights-rbac", claims.Issuer)

	id, err := claims.EmployeeID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestParseToken_Rejects(t *testing.T) {
	i, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	other, err := NewIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, err := other.IssueToken(1, "")
	require.NoError(t, err)

	expiredIssuer, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.IssueToken(1, "")
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", Subject: "1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"wrong alg":    hs512,
		"wrong issuer": wrongIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := i.ParseToken(token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestClaimsEmployeeID(t *testing.T) {
	for _, sub := range []string{"", "0", "abc", "-1"} {
		c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
		_, err := c.EmployeeID()
		assert.ErrorIs(t, err, ErrTokenInvalid, "subject %q", sub)
	}
}

func TestMiddleware(t *testing.T) {
	i, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)
	token, err := i.IssueToken(7, "gus@example.com")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", i.Middleware(zap.NewNop().Sugar()), func(c *fiber.Ctx) error {
		id, ok := rbac.ActorFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
