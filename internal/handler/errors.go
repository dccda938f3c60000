package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vividly/identity-service/internal/dto"
	"github.com/vividly/identity-service/internal/service"
)

// respondError maps the service failure taxonomy to HTTP statuses. The
// service returns typed sentinels, so no message inspection happens here.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrSessionRevokedOrExpired),
		errors.Is(err, service.ErrRefreshReuseDetected),
		errors.Is(err, service.ErrPasswordIncorrect):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrUnknownProvider),
		errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrStateInvalid),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrPasswordUnset),
		errors.Is(err, service.ErrEmailUnavailable):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrProviderExchangeFailed):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "Bad gateway",
			Message: err.Error(),
		})

	case errors.Is(err, service.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "Service unavailable",
			Message: err.Error(),
		})

	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "something went wrong",
		})
	}
}
