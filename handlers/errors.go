package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-service/internal/auth"
	"storefront-service/internal/orders"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// statusOf maps the order domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		vErr     *orders.ValidationError
		nfErr    *orders.NotFoundError
		stockErr *orders.InsufficientStockError
		authErr  *orders.AuthorizationError
		stateErr *orders.InvalidStateError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &stockErr), errors.As(err, &stateErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &authErr):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// abortWithError logs err and writes {"message"}. Internal errors are not shown to the caller.
func abortWithError(c *gin.Context, msg string, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(status, gin.H{"message": msg})
		return
	}
	slog.Warn(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

func badRequest(c *gin.Context, msg string, err error) {
	attrs := []any{slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c))}
	if err != nil {
		attrs = append(attrs, slog.String(logkey.ERROR, err.Error()))
	}
	slog.Warn(msg, attrs...)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}

func claimsOf(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": http.StatusText(http.StatusUnauthorized)})
	}
	return claims, ok
}

// validationMessage turns the first validator failure into a readable message.
func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		vErr := vErrs[0]
		switch vErr.Tag() {
		case "required":
			return vErr.Field() + " value missing"
		case "min":
			return vErr.Field() + " value is less than " + vErr.Param()
		case "email":
			return vErr.Field() + " is not a valid email"
		}
		return vErr.Field() + " is invalid"
	}
	return http.StatusText(http.StatusBadRequest)
}
