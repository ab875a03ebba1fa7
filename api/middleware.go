package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ManagementAuth guards the management endpoints with an HS256 bearer
// token signed with the configured secret key. With no secret configured
// the management surface is disabled outright.
type ManagementAuth struct {
	secret []byte
}

func NewManagementAuth(secret string) *ManagementAuth {
	if secret == "" {
		return &ManagementAuth{}
	}
	return &ManagementAuth{secret: []byte(secret)}
}

// IssueToken mints a management token for the subject, valid for ttl.
func (a *ManagementAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("management secret key not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid management bearer token.
func (a *ManagementAuth) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(a.secret) == 0 {
			return echo.NewHTTPError(http.StatusForbidden, "management api disabled")
		}

		header := c.Request().Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
		}

		if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok {
			c.Set("management_subject", claims.Subject)
		}
		return next(c)
	}
}
