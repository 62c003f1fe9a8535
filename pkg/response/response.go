package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/apperr"
)

// Standard client-server error codes.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeMissingToken  = "M_MISSING_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeUserInUse     = "M_USER_IN_USE"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeInvalidParam  = "M_INVALID_PARAM"
	ErrCodeBadJSON       = "M_BAD_JSON"
	ErrCodeNotJSON       = "M_NOT_JSON"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Errcode      string `json:"errcode"`
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// AppError represents a structured error with HTTP status and error code.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 403, 429, 500)
	Errcode    string // Machine-readable code, e.g. M_FORBIDDEN
	Message    string // Human-readable error message
}

func (e *AppError) Error() string {
	return e.Errcode + ": " + e.Message
}

// FromError maps a classified error to its wire representation. Unclassified
// and storage failures become a generic server error without internals.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var coreErr *apperr.Error
	if !errors.As(err, &coreErr) {
		return &AppError{HTTPStatus: http.StatusInternalServerError, Errcode: ErrCodeUnknown, Message: "Internal server error."}
	}

	switch coreErr.Kind {
	case apperr.KindForbidden:
		return &AppError{HTTPStatus: http.StatusForbidden, Errcode: ErrCodeForbidden, Message: coreErr.Message}
	case apperr.KindRateLimited:
		return &AppError{HTTPStatus: http.StatusTooManyRequests, Errcode: ErrCodeLimitExceeded, Message: coreErr.Message}
	case apperr.KindNotFound:
		return &AppError{HTTPStatus: http.StatusNotFound, Errcode: ErrCodeNotFound, Message: coreErr.Message}
	case apperr.KindUnauthorized:
		return &AppError{HTTPStatus: http.StatusForbidden, Errcode: ErrCodeForbidden, Message: coreErr.Message}
	case apperr.KindMissingToken:
		return &AppError{HTTPStatus: http.StatusUnauthorized, Errcode: ErrCodeMissingToken, Message: coreErr.Message}
	case apperr.KindUnknownToken:
		return &AppError{HTTPStatus: http.StatusUnauthorized, Errcode: ErrCodeUnknownToken, Message: coreErr.Message}
	case apperr.KindBadJSON:
		return &AppError{HTTPStatus: http.StatusBadRequest, Errcode: ErrCodeBadJSON, Message: coreErr.Message}
	case apperr.KindNotJSON:
		return &AppError{HTTPStatus: http.StatusBadRequest, Errcode: ErrCodeNotJSON, Message: coreErr.Message}
	case apperr.KindInvalidParam:
		return &AppError{HTTPStatus: http.StatusBadRequest, Errcode: ErrCodeInvalidParam, Message: coreErr.Message}
	case apperr.KindUserInUse:
		return &AppError{HTTPStatus: http.StatusBadRequest, Errcode: ErrCodeUserInUse, Message: coreErr.Message}
	default:
		// Storage, PoolExhausted, Connectivity
		return &AppError{HTTPStatus: http.StatusInternalServerError, Errcode: ErrCodeUnknown, Message: coreErr.Message}
	}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data as the body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Empty sends a 200 OK response with an empty JSON object.
func Empty(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

// Error sends an error response and records the error on the context so the
// request logger can pick it up.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	appErr := FromError(err)
	c.JSON(appErr.HTTPStatus, ErrorBody{Errcode: appErr.Errcode, Error: appErr.Message})
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// LimitExceeded sends a 429 with a retry hint.
func LimitExceeded(c *gin.Context, msg string, retryAfterMs int64) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{
		Errcode:      ErrCodeLimitExceeded,
		Error:        msg,
		RetryAfterMs: retryAfterMs,
	})
}
