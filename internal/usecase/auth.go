package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/email"
	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/ErlanBelekov/tourbook/internal/repository"
)

const (
	defaultResetTTL = 10 * time.Minute
	rollbackTimeout = 5 * time.Second
)

const (
	msgMissingCredentials = "Please provide email and password!"
	msgIncorrectLogin     = "Incorrect email or password"
	msgNoUserWithEmail    = "There is no user with that email address."
	msgEmailFailed        = "There was an error sending the email. Try again later!"
	msgResetTokenInvalid  = "Token is invalid or has expired"
	msgWrongPassword      = "Your current password is wrong."
	msgUserNotFound       = "No user found with that ID"
)

type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) (bool, error)
}

type AuthUsecase struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	hasher   PasswordHasher
	email    email.Sender
	resetTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type AuthOption func(*AuthUsecase)

func WithResetTTL(ttl time.Duration) AuthOption {
	return func(u *AuthUsecase) { u.resetTTL = ttl }
}

func WithClock(now func() time.Time) AuthOption {
	return func(u *AuthUsecase) { u.now = now }
}

func NewAuthUsecase(
	users repository.UserRepository,
	tokens TokenIssuer,
	hasher PasswordHasher,
	emailSender email.Sender,
	logger *slog.Logger,
	opts ...AuthOption,
) *AuthUsecase {
	u := &AuthUsecase{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		email:    emailSender,
		resetTTL: defaultResetTTL,
		now:      time.Now,
		logger:   logger.With("component", "auth_usecase"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Session is an authenticated user together with a freshly issued token.
type Session struct {
	User  *domain.User
	Token string
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	// WelcomeURL is linked from the welcome email.
	WelcomeURL string
}

func (u *AuthUsecase) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := validateStruct(signupSchema{
		Name:            in.Name,
		Email:           in.Email,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
	}); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	created, err := u.users.Create(ctx, &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// The account exists at this point; a lost welcome email is not fatal.
	if err := u.notify(ctx, email.TemplateWelcome, created, in.WelcomeURL); err != nil {
		u.logger.WarnContext(ctx, "welcome email not sent", "user_id", created.ID, "error", err)
	}

	return u.session(created)
}

func (u *AuthUsecase) Login(ctx context.Context, emailAddr, password string) (*Session, error) {
	if strings.TrimSpace(emailAddr) == "" || password == "" {
		return nil, apperr.BadRequest(msgMissingCredentials)
	}

	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			return nil, apperr.Unauthorized(msgIncorrectLogin)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := u.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.Active {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.Unauthorized(msgIncorrectLogin)
	}

	metrics.LoginsTotal.WithLabelValues("accepted").Inc()
	return u.session(user)
}

// RequestPasswordReset issues a one-time reset token and emails it. Only the
// token's digest is stored. If the email cannot be sent the digest is
// rolled back so no unusable token is left behind.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, emailAddr, resetURLBase string) error {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("request", "unknown_email").Inc()
			return apperr.Wrap(apperr.KindNotFound, msgNoUserWithEmail, err)
		}
		return fmt.Errorf("find user: %w", err)
	}

	rawToken, err := user.NewPasswordReset(u.now(), u.resetTTL)
	if err != nil {
		return err
	}

	// Legacy records may not pass validation; that must not block a reset.
	if err := u.save(ctx, user, false); err != nil {
		return err
	}

	sendErr := u.notify(ctx, email.TemplatePasswordReset, user, strings.TrimRight(resetURLBase, "/")+"/"+rawToken)
	if sendErr == nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", "sent").Inc()
		return nil
	}

	metrics.PasswordResetsTotal.WithLabelValues("request", "email_failed").Inc()
	// ctx may already be cancelled here.
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	user.ClearPasswordReset()
	if rbErr := u.save(rbCtx, user, false); rbErr != nil {
		u.logger.ErrorContext(ctx, "roll back reset token", "user_id", user.ID, "error", rbErr)
		sendErr = errors.Join(sendErr, rbErr)
	}
	return apperr.Internal(msgEmailFailed, sendErr)
}

// ResetPassword consumes a reset token. Wrong and expired tokens fail the
// same way so callers cannot tell them apart, and a token wins at most once
// even under concurrent use.
func (u *AuthUsecase) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*Session, error) {
	now := u.now()
	digest := domain.HashResetToken(rawToken)

	user, err := u.users.FindByResetToken(ctx, digest, now)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, u.invalidResetToken()
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	if !user.ResetValidAt(now) {
		return nil, u.invalidResetToken()
	}

	if err := u.changePassword(user, password, passwordConfirm, now); err != nil {
		return nil, err
	}
	if err := validateStruct(userSchema{Name: user.Name, Email: user.Email, Role: string(user.Role)}); err != nil {
		return nil, err
	}

	if err := u.users.ConsumePasswordReset(ctx, user, digest, now); err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			return nil, u.invalidResetToken()
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	user.ClearPasswordReset()

	metrics.PasswordResetsTotal.WithLabelValues("consume", "success").Inc()
	return u.session(user)
}

func (u *AuthUsecase) invalidResetToken() error {
	metrics.PasswordResetsTotal.WithLabelValues("consume", "invalid_token").Inc()
	return apperr.Wrap(apperr.KindBadRequest, msgResetTokenInvalid, domain.ErrTokenInvalid)
}

// UpdatePassword changes the password of an authenticated user after
// checking the current one, then issues a new token.
func (u *AuthUsecase) UpdatePassword(ctx context.Context, userID, current, password, passwordConfirm string) (*Session, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, "The user belonging to this token no longer exists.", err)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := u.hasher.Compare(user.PasswordHash, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthorized(msgWrongPassword)
	}

	if err := u.changePassword(user, password, passwordConfirm, u.now()); err != nil {
		return nil, err
	}
	if err := u.save(ctx, user, true); err != nil {
		return nil, err
	}
	return u.session(user)
}

func (u *AuthUsecase) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (u *AuthUsecase) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := u.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (u *AuthUsecase) DeleteUser(ctx context.Context, userID string) error {
	if err := u.users.Deactivate(ctx, userID); err != nil {
		return notFound(err)
	}
	return nil
}

func (u *AuthUsecase) changePassword(user *domain.User, password, passwordConfirm string, now time.Time) error {
	if err := validateStruct(passwordSchema{Password: password, PasswordConfirm: passwordConfirm}); err != nil {
		return err
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return err
	}
	user.SetPassword(hash, now)
	return nil
}

// save persists user, optionally running schema validation first.
func (u *AuthUsecase) save(ctx context.Context, user *domain.User, validate bool) error {
	if validate {
		if err := validateStruct(userSchema{
			Name:  user.Name,
			Email: user.Email,
			Role:  string(user.Role),
		}); err != nil {
			return err
		}
	}
	if err := u.users.Update(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (u *AuthUsecase) notify(ctx context.Context, tmpl email.Template, user *domain.User, url string) error {
	msg, err := email.Compose(tmpl, email.Recipient{Name: user.Name, Email: user.Email}, url)
	if err != nil {
		return err
	}
	if err := u.email.Send(ctx, msg); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(string(tmpl), "failed").Inc()
		return err
	}
	metrics.EmailsSentTotal.WithLabelValues(string(tmpl), "sent").Inc()
	return nil
}

func (u *AuthUsecase) session(user *domain.User) (*Session, error) {
	signed, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: signed}, nil
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperr.Wrap(apperr.KindNotFound, msgUserNotFound, err)
	}
	return err
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
