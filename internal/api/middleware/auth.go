package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// Context keys set by Auth.
const (
	ClaimsKey = "claims"
	RoleKey   = "role"
)

// ErrMissingToken is returned by ParseToken for an empty credential.
var ErrMissingToken = errors.New("no token provided")

// tokenClaims mirrors the credential issued by the school-transport admin API.
type tokenClaims struct {
	Role     string   `json:"role"`
	ID       string   `json:"id,omitempty"`
	Branches []string `json:"branches,omitempty"`
	Parent   string   `json:"parent,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 credential and returns the viewer identity it
// carries. Expiry is enforced when the token sets exp.
func ParseToken(raw, secret string) (domain.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Claims{}, ErrMissingToken
	}

	var tc tokenClaims
	tkn, err := jwt.ParseWithClaims(raw, &tc, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return domain.Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if tc.Role == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing role", domain.ErrInvalidToken)
	}

	return domain.Claims{
		Role:     domain.Role(tc.Role),
		ID:       tc.ID,
		Branches: tc.Branches,
		ParentID: tc.Parent,
	}, nil
}

// Auth validates the bearer JWT and injects the claims into context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := ParseToken(parts[1], jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ClaimsKey, claims)
			c.Set(RoleKey, string(claims.Role))

			return next(c)
		}
	}
}
