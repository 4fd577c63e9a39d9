package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/ErlanBelekov/tourbook/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// CookieConfig controls the session cookie set on successful auth.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

type userResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Photo string      `json:"photo,omitempty"`
	Role  domain.Role `json:"role"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Photo: u.Photo,
		Role:  u.Role,
	}
}

// sendSession sets the session cookie and returns the token with the user.
func sendSession(c *gin.Context, status int, cookie CookieConfig, sess *usecase.Session) {
	setSessionCookie(c, sess.Token, int(cookie.TTL.Seconds()), cookie.Secure)
	c.JSON(status, gin.H{
		"status": statusSuccess,
		"token":  sess.Token,
		"data":   gin.H{"user": toUserResponse(sess.User)},
	})
}

func setSessionCookie(c *gin.Context, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, value, maxAge, "/", "", secure, true)
}

// requireUser returns the user attached by Protect, recording an error
// when the route was wired without it.
func requireUser(c *gin.Context) (*domain.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperr.Unauthorized(errNotLoggedIn))
		return nil, false
	}
	return user, true
}

// badBody reports a request body that failed to decode or bind.
func badBody(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(usecase.FromValidator(verrs))
		return
	}
	_ = c.Error(apperr.Wrap(apperr.KindBadRequest, errInvalidBody, err))
}

// publicBaseURL prefers the configured base and falls back to the host the
// request came in on.
func publicBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
