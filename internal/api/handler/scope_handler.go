package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schooltrack/alert-engine/internal/core/service"
)

// ScopeHandler exposes the device scope of the calling viewer.
type ScopeHandler struct {
	resolver service.ScopeResolver
}

func NewScopeHandler(resolver service.ScopeResolver) *ScopeHandler {
	return &ScopeHandler{resolver: resolver}
}

type scopeResponse struct {
	Role    string   `json:"role"`
	Devices []string `json:"devices"`
}

// Get godoc
// @Summary      Devices visible to the caller
// @Description  Resolves the caller's credential to the device ids whose alerts it may receive.
// @Tags         scope
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  scopeResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /v1/scope [get]
func (h *ScopeHandler) Get(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	set, err := h.resolver.Resolve(c.Request().Context(), claims)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, scopeResponse{Role: string(claims.Role), Devices: set.IDs()})
}
