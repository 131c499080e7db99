package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondBadRequestCode(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusBadRequest, code, message, nil)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// respondAccountError maps account errors onto the HTTP contract. Anything
// unrecognised is a storage failure: logged, never echoed.
func respondAccountError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		RespondBadRequestCode(ctx, "email_taken", "User already exists")
	case errors.Is(err, user.ErrWeakPassword):
		RespondBadRequestCode(ctx, "weak_password", user.ErrWeakPassword.Error())
	case errors.Is(err, user.ErrInvalidFullName):
		RespondBadRequestCode(ctx, "invalid_fullname", user.ErrInvalidFullName.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, user.ErrIncorrectPassword):
		RespondUnAuthorized(ctx, "incorrect_password", "Current password is incorrect")
	case errors.Is(err, user.ErrUnauthenticated):
		RespondUnAuthorized(ctx, "unauthorized", "Access denied. No token provided.")
	case errors.Is(err, user.ErrForbidden):
		RespondError(ctx, http.StatusForbidden, "forbidden", "Invalid or expired token.", nil)
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "account_operation_failed",
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
		RespondInternal(ctx, fallback)
	}
}
