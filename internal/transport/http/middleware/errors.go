package middleware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/token"
	"github.com/gin-gonic/gin"
)

const (
	msgGeneric        = "Something went very wrong!"
	msgTryAgainLater  = "Please try again later."
	msgPageErrorTitle = "Something went wrong!"
	msgTokenInvalid   = "Invalid token. Please log in again!"
	msgTokenExpired   = "Your token has expired! Please log in again."

	// ErrorTemplate is rendered for failed page requests.
	ErrorTemplate = "error.tmpl"

	apiPrefix = "/api"
)

// Normalized is the client-facing shape of any failure.
type Normalized struct {
	StatusCode  int
	Status      string
	Message     string
	Operational bool
	Kind        string
	Stack       string
	Err         error
}

type stacker interface {
	Stack() string
}

// Normalizer maps every failure to a Normalized response. Outside production
// it reports the underlying error and stack; in production only operational
// messages reach the client.
type Normalizer struct {
	production bool
	logger     *slog.Logger
}

func NewNormalizer(env string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		production: env == "production",
		logger:     logger.With("component", "errors"),
	}
}

func (n *Normalizer) Normalize(err error) Normalized {
	out := classify(err)
	out.Err = err
	if out.StatusCode >= 400 && out.StatusCode < 500 {
		out.Status = "fail"
	} else {
		out.Status = "error"
	}

	if !n.production {
		out.Message = err.Error()
		out.Stack = stackOf(err)
	}
	return out
}

// classify assigns the production status and message. The outermost
// recognized error in the chain wins.
func classify(err error) Normalized {
	var (
		appErr  *apperr.Error
		castErr *apperr.CastError
		dupErr  *apperr.DuplicateKeyError
		valErr  *apperr.ValidationError
	)

	switch {
	case errors.As(err, &appErr):
		return Normalized{
			StatusCode:  appErr.StatusCode(),
			Message:     appErr.Message,
			Operational: true,
			Kind:        appErr.Kind.String(),
		}
	case errors.Is(err, token.ErrExpired):
		return operational(apperr.KindUnauthorized, msgTokenExpired)
	case errors.Is(err, token.ErrInvalid):
		return operational(apperr.KindUnauthorized, msgTokenInvalid)
	case errors.As(err, &castErr):
		return operational(apperr.KindBadRequest, fmt.Sprintf("Invalid %s: %s.", castErr.Field, castErr.Value))
	case errors.As(err, &dupErr):
		return operational(apperr.KindBadRequest,
			fmt.Sprintf("Duplicate field value for '%s': '%s'. Please use another value!", dupErr.Field, dupErr.Value))
	case errors.As(err, &valErr):
		return operational(apperr.KindBadRequest, "Invalid input data. "+strings.Join(valErr.Messages(), ". "))
	default:
		return Normalized{
			StatusCode: http.StatusInternalServerError,
			Message:    msgGeneric,
			Kind:       apperr.KindInternal.String(),
		}
	}
}

func operational(kind apperr.Kind, msg string) Normalized {
	return Normalized{
		StatusCode:  kind.StatusCode(),
		Message:     msg,
		Operational: true,
		Kind:        kind.String(),
	}
}

func stackOf(err error) string {
	var s stacker
	if errors.As(err, &s) {
		return s.Stack()
	}
	return string(debug.Stack())
}

// Handler must wrap every middleware that can fail. It writes the response
// for the last error recorded on the context, unless a response was already
// written.
func (n *Normalizer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		res := n.Normalize(c.Errors.Last().Err)
		n.log(c, res)

		if c.Writer.Written() {
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, apiPrefix) {
			c.JSON(res.StatusCode, n.apiBody(res))
			return
		}
		c.HTML(res.StatusCode, ErrorTemplate, gin.H{
			"title": msgPageErrorTitle,
			"msg":   n.pageMessage(res),
		})
	}
}

func (n *Normalizer) apiBody(res Normalized) gin.H {
	if n.production {
		return gin.H{"status": res.Status, "message": res.Message}
	}
	return gin.H{
		"status":  res.Status,
		"message": res.Message,
		"error": gin.H{
			"kind":        res.Kind,
			"statusCode":  res.StatusCode,
			"operational": res.Operational,
		},
		"stack": res.Stack,
	}
}

func (n *Normalizer) pageMessage(res Normalized) string {
	if n.production && !res.Operational {
		return msgTryAgainLater
	}
	return res.Message
}

func (n *Normalizer) log(c *gin.Context, res Normalized) {
	ctx := c.Request.Context()
	attrs := []any{
		"status", res.StatusCode,
		"kind", res.Kind,
		"route", routeOf(c),
		"error", res.Err,
	}
	switch {
	case !res.Operational:
		n.logger.ErrorContext(ctx, "unexpected error", attrs...)
	case res.StatusCode >= http.StatusInternalServerError:
		n.logger.ErrorContext(ctx, "request failed", attrs...)
	default:
		n.logger.DebugContext(ctx, "request rejected", attrs...)
	}
}

// routeOf names the matched route pattern rather than the raw path, which
// may carry a secret such as a reset token. Unmatched paths are logged as is.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

// Recovery turns a panic into a non-operational error for Handler, so a bug
// in one request never takes the process down.
func (n *Normalizer) Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		_ = c.Error(&panicError{value: rec, stack: string(debug.Stack())})
		c.Abort()
	})
}

// NotFound reports an unmatched route through the normalizer.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.Path)))
	}
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

func (e *panicError) Stack() string { return e.stack }
