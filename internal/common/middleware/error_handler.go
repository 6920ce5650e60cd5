package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/logger"
)

// RequestID assigns an identifier to every request, honoring an incoming
// X-Request-ID header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Recovery converts panics into a logged 500 JSON envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"code":       apperrors.ErrCodeInternal,
			"request_id": GetRequestID(c),
		})
	})
}

// RespondError writes the JSON error envelope for err and aborts the request.
// Internal errors are logged with their cause and masked with a generic
// message; everything else is surfaced as-is.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "Internal server error")
	}

	requestID := GetRequestID(c)
	event := logger.Warn()
	message := appErr.Message
	if appErr.IsInternal() {
		event = logger.Error()
		message = "Internal server error"
	}
	event.
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("code", string(appErr.Code)).
		Err(appErr).
		Msg("Request failed")

	body := gin.H{
		"error":      message,
		"code":       appErr.Code,
		"request_id": requestID,
	}
	if len(appErr.Details) > 0 && !appErr.IsInternal() {
		body["details"] = appErr.Details
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus(), body)
}

// GetRequestID returns the request identifier set by RequestID.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
