package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/callsync/internal/callsync"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports a single invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// AbortWithError maps err onto a status code and writes an error envelope.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func errorResponse(err error) (int, errorBody) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorBody{Code: verr.Code, Message: verr.Message, Field: verr.Field}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Code: ErrUnauthorized.Error(), Message: "missing or invalid token"}
	case errors.Is(err, tenantdomain.ErrTenantNotFound):
		return http.StatusNotFound, errorBody{Code: tenantdomain.ErrTenantNotFound.Error(), Message: "tenant not found"}
	case errors.Is(err, tenantdomain.ErrInvalidTenant):
		return http.StatusBadRequest, errorBody{Code: tenantdomain.ErrInvalidTenant.Error(), Message: err.Error()}
	case errors.Is(err, callsync.ErrInvalidNotification):
		return http.StatusBadRequest, errorBody{Code: callsync.ErrInvalidNotification.Error(), Message: err.Error()}
	case errors.Is(err, tenantdomain.ErrVersionConflict), errors.Is(err, callsync.ErrLockTimeout):
		return http.StatusConflict, errorBody{Code: "sync_in_progress", Message: "tenant is being synchronized, retry later"}
	case errors.Is(err, providerdomain.ErrRequestFailed), errors.Is(err, providerdomain.ErrRetentionLimit):
		return http.StatusBadGateway, errorBody{Code: "provider_unavailable", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal error"}
	}
}
