package middleware

import (
	"github.com/ErlanBelekov/tourbook/internal/reqctx"
	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-ID"

// RequestID injects a request ID into the context and response header.
// If the incoming request already carries X-Request-ID, it is preserved;
// otherwise a new UUID v4 is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = reqctx.NewRequestID()
		}

		ctx := reqctx.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
