package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vividly/identity-service/internal/dto"
	"github.com/vividly/identity-service/internal/service"
)

// OAuthHandler handles federated login requests
type OAuthHandler struct {
	authService service.AuthService
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(authService service.AuthService) *OAuthHandler {
	return &OAuthHandler{
		authService: authService,
	}
}

// Authorize issues a one-time state token and returns the provider's
// authorization URL for the client to redirect to
// @Summary Begin federated login
// @Tags oauth
// @Produce json
// @Param provider path string true "Provider name"
// @Success 200 {object} dto.AuthorizeURLResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/authorize [get]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	authorizeURL, err := h.authService.BeginFederated(c.Request.Context(), c.Param("provider"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthorizeURLResponse{
		AuthorizeURL: authorizeURL,
	})
}

// Callback completes federated login: the state token is consumed, the
// code exchanged, the profile resolved to an account, and a session opened
// @Summary Complete federated login
// @Tags oauth
// @Produce json
// @Param provider path string true "Provider name"
// @Param code query string true "Authorization code"
// @Param state query string true "State token"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "code and state query parameters are required",
		})
		return
	}

	result, err := h.authService.CompleteFederated(
		c.Request.Context(),
		c.Param("provider"),
		code,
		state,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}
