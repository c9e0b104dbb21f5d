package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

// TraceIdKey is the request-context key the Logger middleware stores the trace id under.
const TraceIdKey ctxKey = 1

// GetTraceIdOfRequest returns the trace id attached to the request, or "Unknown".
func GetTraceIdOfRequest(c *gin.Context) string {
	return TraceIdFromContext(c.Request.Context())
}

func TraceIdFromContext(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		return "Unknown"
	}
	return traceId
}

func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}
