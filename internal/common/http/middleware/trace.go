package middleware

import (
	"context"
	"strings"

	"codearena/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
)

// TraceContextMiddleware propagates trace and request ids from the
// incoming headers into the request context and echoes them back in the
// response. Missing ids are minted so every log line has one.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ensureID(c, traceIDHeader, traceIDContextKey, contextkey.TraceID)
		ensureID(c, requestIDHeader, requestIDContextKey, contextkey.RequestID)
		c.Next()
	}
}

func ensureID(c *gin.Context, header, ginKey string, ctxKey interface{}) {
	id := strings.TrimSpace(c.GetHeader(header))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(ginKey, id)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey, id))
	c.Writer.Header().Set(header, id)
}
