package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/auth"
	"storefront-api/internal/models"
	"storefront-api/internal/services"
	"storefront-api/internal/woocommerce"
)

// statusFor maps a service error onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid_credential"
	case errors.Is(err, auth.ErrVerificationFailed):
		return http.StatusUnauthorized, "verification_failed"
	case errors.Is(err, auth.ErrNotSignedIn):
		return http.StatusUnauthorized, "not_signed_in"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	}

	switch woocommerce.KindOf(err) {
	case woocommerce.KindServer:
		if status, _ := woocommerce.StatusCode(err); status == http.StatusNotFound {
			return http.StatusNotFound, "not_found"
		}
		return http.StatusBadGateway, "upstream_error"
	case woocommerce.KindNetwork:
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case woocommerce.KindMapping:
		return http.StatusBadGateway, "upstream_bad_response"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Code:    status,
		Message: err.Error(),
	})
}

func badRequest(c *gin.Context, message string, details error) {
	res := models.ErrorResponse{
		Error:   "invalid_request",
		Code:    http.StatusBadRequest,
		Message: message,
	}
	if details != nil {
		res.Details = details.Error()
	}
	c.JSON(http.StatusBadRequest, res)
}

func notFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   code,
		Code:    http.StatusNotFound,
		Message: message,
	})
}
