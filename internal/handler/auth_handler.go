package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vividly/identity-service/internal/dto"
	"github.com/vividly/identity-service/internal/service"
)

const refreshCookiePath = "/api/v1/auth/refresh"

// AuthHandler handles local authentication and account requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register handles account registration
// @Summary Register a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	setRefreshCookie(c, result)
	c.JSON(http.StatusCreated, result.AuthResponse)
}

// Login handles local login
// @Summary Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Refresh handles token rotation. The refresh token arrives in the
// httpOnly cookie, with a JSON body fallback for non-browser clients.
// @Summary Rotate access and refresh tokens
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		var req dto.RefreshRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Refresh token not found in cookie or body",
		})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		clearRefreshCookie(c)
		respondError(c, err)
		return
	}

	setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Logout revokes the caller's session
// @Summary Logout the current session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	accountID, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), accountID, sessionID); err != nil {
		respondError(c, err)
		return
	}

	clearRefreshCookie(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// LogoutAll revokes every session of the caller's account
// @Summary Logout everywhere
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.authService.LogoutAll(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}

	clearRefreshCookie(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out everywhere",
	})
}

// GetMe returns the caller's account
// @Summary Get current account
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.AccountResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	account, err := h.authService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// UpdateMe updates the caller's profile
// @Summary Update profile fields
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} dto.AccountResponse
// @Router /auth/me [patch]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	account, err := h.authService.UpdateProfile(c.Request.Context(), accountID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// ChangeEmail sets a new email and drops the account's provider links
// @Summary Change account email
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} dto.AccountResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/me/email [put]
func (h *AuthHandler) ChangeEmail(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req dto.ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	account, err := h.authService.ChangeEmail(c.Request.Context(), accountID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// ChangePassword changes the password and revokes all sessions
// @Summary Change password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), accountID, &req); err != nil {
		respondError(c, err)
		return
	}

	clearRefreshCookie(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password changed; all sessions revoked",
	})
}

// DeactivateMe logically disables the caller's account
// @Summary Deactivate account
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/me [delete]
func (h *AuthHandler) DeactivateMe(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.authService.Deactivate(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}

	clearRefreshCookie(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Account deactivated",
	})
}

// ListSessions enumerates the caller's sessions, most recent first
// @Summary List sessions
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {array} dto.SessionResponse
// @Router /auth/sessions [get]
func (h *AuthHandler) ListSessions(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	sessions, err := h.authService.ListSessions(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// RevokeSession revokes one of the caller's sessions
// @Summary Revoke a session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/sessions/{id} [delete]
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	accountID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), accountID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Session revoked",
	})
}

// callerIdentity reads the account and session ids placed in the context
// by AuthMiddleware.
func callerIdentity(c *gin.Context) (string, string, bool) {
	accountID, exists := c.Get("account_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Account ID not found in context",
		})
		return "", "", false
	}

	sessionID, _ := c.Get("session_id")
	sid, _ := sessionID.(string)

	return accountID.(string), sid, true
}

func setRefreshCookie(c *gin.Context, result *service.AuthResult) {
	c.SetCookie("refresh_token", result.RefreshToken, result.ExpiresIn, refreshCookiePath, "", true, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetCookie("refresh_token", "", -1, refreshCookiePath, "", true, true)
}
