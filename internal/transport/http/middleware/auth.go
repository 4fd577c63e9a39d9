package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/ErlanBelekov/tourbook/internal/reqctx"
	"github.com/ErlanBelekov/tourbook/internal/token"
	"github.com/gin-gonic/gin"
)

const (
	// CookieName is the session cookie carrying the token for browsers.
	CookieName = "jwt"
	// LoggedOutMarker replaces the token in the cookie on logout. It never
	// verifies.
	LoggedOutMarker = "loggedout"

	currentUserKey = "currentUser"
)

const (
	msgNotLoggedIn      = "You are not logged in! Please log in to get access."
	msgUserGone         = "The user belonging to this token no longer exists."
	msgPasswordChanged  = "User recently changed password! Please log in again."
	msgPermissionDenied = "You do not have permission to perform this action"
)

type tokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Authenticator resolves session tokens to users.
type Authenticator struct {
	tokens tokenVerifier
	users  userFinder
	logger *slog.Logger
}

func NewAuthenticator(tokens tokenVerifier, users userFinder, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger.With("component", "auth"),
	}
}

// Protect requires a valid token from the Authorization header or the
// session cookie, and attaches the user it belongs to.
func (a *Authenticator) Protect() gin.HandlerFunc {
	return Gate(a.protect)
}

func (a *Authenticator) protect(c *gin.Context) error {
	raw := extractToken(c)
	if raw == "" {
		metrics.AuthRejectionsTotal.WithLabelValues("missing_token").Inc()
		return apperr.Unauthorized(msgNotLoggedIn)
	}
	if raw == LoggedOutMarker {
		return &Redirect{Location: "/"}
	}

	user, reason, err := a.resolve(c.Request.Context(), raw)
	if err != nil {
		metrics.AuthRejectionsTotal.WithLabelValues(reason).Inc()
		return err
	}

	attach(c, user)
	return nil
}

// IsLoggedIn attaches the user behind the session cookie when there is a
// valid one and never fails the request. Tokens revoked by a password change
// are ignored the same way Protect rejects them.
func (a *Authenticator) IsLoggedIn() gin.HandlerFunc {
	return Gate(func(c *gin.Context) error {
		raw, err := c.Cookie(CookieName)
		if err != nil || raw == "" || raw == LoggedOutMarker {
			return nil
		}

		user, reason, err := a.resolve(c.Request.Context(), raw)
		if err != nil {
			a.logger.DebugContext(c.Request.Context(), "session cookie ignored", "reason", reason, "error", err)
			return nil
		}

		attach(c, user)
		return nil
	})
}

// resolve verifies raw, loads its subject and checks the token was issued
// after the last password change. reason labels the failure for metrics.
func (a *Authenticator) resolve(ctx context.Context, raw string) (*domain.User, string, error) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, "expired_token", err
		}
		return nil, "invalid_token", err
	}

	user, err := a.users.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "user_gone", apperr.Wrap(apperr.KindUnauthorized, msgUserGone, err)
		}
		return nil, "store_error", fmt.Errorf("load token subject: %w", err)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, "password_changed", apperr.Unauthorized(msgPasswordChanged)
	}

	return user, "", nil
}

// RestrictTo only lets users with one of roles through. It must run after
// Protect.
func RestrictTo(roles ...domain.Role) gin.HandlerFunc {
	return Gate(func(c *gin.Context) error {
		user, ok := CurrentUser(c)
		if !ok {
			return apperr.Unauthorized(msgNotLoggedIn)
		}
		if !slices.Contains(roles, user.Role) {
			metrics.AuthRejectionsTotal.WithLabelValues("forbidden_role").Inc()
			return apperr.Forbidden(msgPermissionDenied)
		}
		return nil
	})
}

// CurrentUser returns the user attached by Protect or IsLoggedIn.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func attach(c *gin.Context, user *domain.User) {
	c.Set(currentUserKey, user)
	c.Request = c.Request.WithContext(reqctx.WithUserID(c.Request.Context(), user.ID))
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	raw, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return raw
}
