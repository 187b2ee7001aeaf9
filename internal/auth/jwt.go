package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	rbac "github.com/bohemiyan/insights-rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const issuer = "insights-rbac"

var (
	ErrTokenMissing = errors.New("authorization token is missing")
	ErrTokenFormat  = errors.New("authorization header must be \"Bearer <token>\"")
	ErrTokenInvalid = errors.New("authorization token is invalid")
)

// Claims carries the acting employee in the subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// EmployeeID parses the subject as an employee id.
func (c *Claims) EmployeeID() (uint, error) {
	id, err := cast.ToUintE(c.Subject)
	if err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// Issuer signs HS256 tokens for employees.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an issuer; an empty secret is rejected.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// IssueToken signs a token for the employee.
func (i *Issuer) IssueToken(employeeID uint, email string) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cast.ToString(employeeID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseToken validates signature, issuer and expiry.
func (i *Issuer) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrTokenMissing
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrTokenFormat
	}
	return strings.TrimPrefix(header, "Bearer "), nil
}

// Middleware authenticates the bearer token and stores the employee id under
// rbac.LocalsEmployeeID for the authorization layer.
func (i *Issuer) Middleware(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		claims, err := i.ParseToken(token)
		if err != nil {
			log.Infow("rejected bearer token", "path", c.Path(), "error", err)
			return fiber.NewError(fiber.StatusUnauthorized, ErrTokenInvalid.Error())
		}
		empID, err := claims.EmployeeID()
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(rbac.LocalsEmployeeID, empID)
		return c.Next()
	}
}
