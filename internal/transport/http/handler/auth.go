package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/ErlanBelekov/tourbook/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Signup(ctx context.Context, in usecase.SignupInput) (*usecase.Session, error)
	Login(ctx context.Context, email, password string) (*usecase.Session, error)
	RequestPasswordReset(ctx context.Context, email, resetURLBase string) error
	ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*usecase.Session, error)
	UpdatePassword(ctx context.Context, userID, current, password, passwordConfirm string) (*usecase.Session, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	cookie      CookieConfig
	baseURL     string
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, cookie CookieConfig, baseURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		cookie:      cookie,
		baseURL:     baseURL,
		logger:      logger.With("component", "auth_handler"),
	}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// POST /api/v1/users/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	sess, err := h.authUsecase.Signup(c.Request.Context(), usecase.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		WelcomeURL:      publicBaseURL(c, h.baseURL) + "/me",
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendSession(c, http.StatusCreated, h.cookie, sess)
}

// POST /api/v1/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	sess, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendSession(c, http.StatusOK, h.cookie, sess)
}

// GET /api/v1/users/logout
// Overwrites the session cookie with a marker that expires in 10 seconds.
func (h *AuthHandler) Logout(c *gin.Context) {
	setSessionCookie(c, middleware.LoggedOutMarker, 10, h.cookie.Secure)
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess})
}

// POST /api/v1/users/forgotPassword
// Answers the same way whether or not the email belongs to an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	resetBase := publicBaseURL(c, h.baseURL) + resetPathSuffix
	if err := h.authUsecase.RequestPasswordReset(c.Request.Context(), req.Email, resetBase); err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			_ = c.Error(err)
			return
		}
		h.logger.InfoContext(c.Request.Context(), "password reset for unknown email")
	}

	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "message": msgTokenSent})
}

// PATCH /api/v1/users/resetPassword/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	sess, err := h.authUsecase.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendSession(c, http.StatusOK, h.cookie, sess)
}

// PATCH /api/v1/users/updateMyPassword
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	sess, err := h.authUsecase.UpdatePassword(c.Request.Context(), user.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendSession(c, http.StatusOK, h.cookie, sess)
}
