package server

import (
	"errors"
	"net/http"

	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	invoicedomain "github.com/adlens/campledger/internal/invoice/domain"
	notificationdomain "github.com/adlens/campledger/internal/notification/domain"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string                            `json:"type"`
	Message string                            `json:"message"`
	Errors  []ValidationError                 `json:"errors,omitempty"`
	Invalid []invoicedomain.InvalidAdjustment `json:"invalid,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var batchErr *invoicedomain.BatchValidationError
	if errors.As(err, &batchErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: batchErr.Error(),
			Invalid: batchErr.Invalid,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    err.Error(),
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidCredentials),
		errors.Is(err, userdomain.ErrInvalidToken),
		errors.Is(err, userdomain.ErrInactiveUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	// Replying to a reply is refused as forbidden rather than invalid input:
	// the parent exists, the caller just may not thread under it.
	case errors.Is(err, ErrForbidden),
		errors.Is(err, commentdomain.ErrForbidden),
		errors.Is(err, commentdomain.ErrNestedReply),
		errors.Is(err, notificationdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, invoicedomain.ErrBatchOwnership):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, campaigndomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrEmptyBatch),
		errors.Is(err, commentdomain.ErrInvalidID),
		errors.Is(err, commentdomain.ErrEmptyContent),
		errors.Is(err, commentdomain.ErrParentMismatch),
		errors.Is(err, notificationdomain.ErrInvalidID),
		errors.Is(err, historydomain.ErrInvalidEntity):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, campaigndomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, commentdomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog names the error class and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
