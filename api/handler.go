// Package api exposes the credential and translation engine over HTTP:
// an open authentication surface and a token-guarded management surface.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/modelgate/modelgate/auth"
	"github.com/modelgate/modelgate/translator"
	"github.com/modelgate/modelgate/upstream"
)

type Handler struct {
	manager   *auth.Manager
	registry  *translator.Registry
	upstreams *upstream.Registry
	mgmt      *ManagementAuth
}

func NewHandler(manager *auth.Manager, registry *translator.Registry, upstreams *upstream.Registry, mgmt *ManagementAuth) *Handler {
	return &Handler{manager: manager, registry: registry, upstreams: upstreams, mgmt: mgmt}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.HandleHealth)
	g.GET("/providers", h.HandleProviders)

	g.POST("/auth/:provider", h.HandleAuthenticate)
	g.GET("/auth/:provider/url", h.HandleAuthURL)
	g.POST("/auth/:provider/exchange", h.HandleExchangeCode)
	g.POST("/auth/:provider/:key_id/logout", h.HandleLogout)

	g.POST("/translate", h.HandleTranslate)

	// Management routes
	protected := g.Group("", h.mgmt.Middleware)
	protected.GET("/tokens", h.HandleListTokens)
	protected.GET("/tokens/stats", h.HandleTokenStats)
	protected.DELETE("/tokens/:provider/:key_id", h.HandleDeleteToken)
	protected.POST("/tokens/cleanup", h.HandleCleanup)
	protected.GET("/upstreams", h.HandleUpstreams)
	protected.POST("/upstreams/health", h.HandleUpstreamHealth)
}

func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"providers":   h.manager.Providers(),
		"conversions": h.registry.Conversions(),
	})
}

func (h *Handler) HandleAuthenticate(c echo.Context) error {
	var body struct {
		KeyID  string `json:"key_id"`
		APIKey string `json:"api_key"`
		Cookie string `json:"cookie"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.KeyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key_id is required")
	}

	res := h.manager.Authenticate(c.Request().Context(), c.Param("provider"), body.KeyID, auth.Credentials{
		APIKey: body.APIKey,
		Cookie: body.Cookie,
	})
	return c.JSON(authStatus(res), res)
}

func (h *Handler) HandleAuthURL(c echo.Context) error {
	res := h.manager.GetAuthURL(c.Request().Context(), c.Param("provider"))
	return c.JSON(authStatus(res), res)
}

func (h *Handler) HandleExchangeCode(c echo.Context) error {
	var body struct {
		KeyID        string `json:"key_id"`
		Code         string `json:"code"`
		State        string `json:"state"`
		CodeVerifier string `json:"code_verifier"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.KeyID == "" || body.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key_id and code are required")
	}

	res := h.manager.ExchangeCode(c.Request().Context(), c.Param("provider"), body.KeyID, body.Code, body.CodeVerifier)
	return c.JSON(authStatus(res), res)
}

func (h *Handler) HandleLogout(c echo.Context) error {
	ok := h.manager.Logout(c.Request().Context(), c.Param("provider"), c.Param("key_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "token not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *Handler) HandleTranslate(c echo.Context) error {
	var body struct {
		SourceFormat string         `json:"source_format"`
		TargetFormat string         `json:"target_format"`
		Direction    string         `json:"direction"`
		Payload      map[string]any `json:"payload"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.SourceFormat == "" || body.TargetFormat == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_format and target_format are required")
	}

	var res *translator.Result
	if body.Direction == "response" {
		res = h.registry.TranslateResponse(body.SourceFormat, body.TargetFormat, body.Payload)
	} else {
		res = h.registry.TranslateRequest(body.SourceFormat, body.TargetFormat, body.Payload)
	}
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleListTokens(c echo.Context) error {
	entries, err := h.manager.ListTokens(c.Request().Context(), c.QueryParam("provider"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list tokens")
	}

	// Credentials never leave the store through the listing.
	type tokenInfo struct {
		Provider  string         `json:"provider"`
		KeyID     string         `json:"key_id"`
		TokenType string         `json:"token_type,omitempty"`
		ExpiresAt any            `json:"expires_at,omitempty"`
		IsExpired bool           `json:"is_expired"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}
	out := make([]tokenInfo, 0, len(entries))
	for _, e := range entries {
		info := tokenInfo{Provider: e.Provider, KeyID: e.KeyID, Metadata: e.Metadata}
		if e.Token != nil {
			info.TokenType = e.Token.TokenType
			info.IsExpired = e.Token.IsExpired()
			if e.Token.ExpiresAt != nil {
				info.ExpiresAt = e.Token.ExpiresAt
			}
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) HandleTokenStats(c echo.Context) error {
	stats, err := h.manager.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) HandleDeleteToken(c echo.Context) error {
	if err := h.manager.DeleteToken(c.Request().Context(), c.Param("provider"), c.Param("key_id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete token")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleCleanup(c echo.Context) error {
	count, err := h.manager.CleanupExpired(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cleanup failed")
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": count})
}

func (h *Handler) HandleUpstreams(c echo.Context) error {
	return c.JSON(http.StatusOK, h.upstreams.OverallStats())
}

func (h *Handler) HandleUpstreamHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, h.upstreams.HealthCheck(c.Request().Context()))
}

// authStatus maps an auth outcome to an HTTP status: missing credentials
// are the caller's fault, rejected credentials are unauthorized, unknown
// providers are not found, transport failures are upstream errors.
func authStatus(res *auth.AuthResult) int {
	if res.Success || res.Pending() {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case auth.ErrCodeMissingAPIKey, auth.ErrCodeMissingCookies, auth.ErrCodeOAuthNotConfigured:
		return http.StatusBadRequest
	case auth.ErrCodeProviderNotFound:
		return http.StatusNotFound
	case auth.ErrCodeConnectionTimeout, auth.ErrCodeConnectionError:
		return http.StatusBadGateway
	default:
		return http.StatusUnauthorized
	}
}
