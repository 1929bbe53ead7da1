package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schooltrack/alert-engine/internal/api/middleware"
	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// ctxClaims extracts the viewer claims injected by the Auth middleware and
// fails fast before any lookup:
//   - role must be non-empty (presence proves the middleware ran).
//   - branch role requires its branch id; without it the JWT is structurally
//     valid but cannot be scoped, so reject with 401.
func ctxClaims(c echo.Context) (domain.Claims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(domain.Claims)
	if !ok || claims.Role == "" {
		return domain.Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	if claims.Role == domain.RoleBranch && claims.ID == "" {
		return domain.Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "token missing branch identity")
	}
	return claims, nil
}
