package observability

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware deja en el contexto de cada request un logger hijo con su request id y
// registra el request al terminar.
func GinMiddleware(logger *ZerologLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := logger.base.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, child))

		c.Next()

		child.Debug().
			Int("status", c.Writer.Status()).
			Float64("latency_ms", float64(time.Since(start).Milliseconds())).
			Msg("request completed")
	}
}
