package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Redirect is returned by a gate check to end the request with a 302.
type Redirect struct {
	Location string
}

func (r *Redirect) Error() string { return "redirect to " + r.Location }

// Gate adapts a check into middleware with exactly one outcome per request:
// nil continues the chain, *Redirect redirects, and any other error is
// recorded on the context for the error normalizer and aborts the chain.
func Gate(check func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := check(c)
		if err == nil {
			c.Next()
			return
		}

		var redirect *Redirect
		if errors.As(err, &redirect) {
			c.Redirect(http.StatusFound, redirect.Location)
			c.Abort()
			return
		}

		_ = c.Error(err)
		c.Abort()
	}
}
